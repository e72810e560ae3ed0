package sorgu

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustJay7/uyap-extractor/internal/browser"
	"github.com/JustJay7/uyap-extractor/internal/browser/browsertest"
	"github.com/JustJay7/uyap-extractor/internal/interaction"
	"github.com/JustJay7/uyap-extractor/pkg/logger"
)

func newTestController(t *testing.T) (*interaction.Controller, *browsertest.Page) {
	t.Helper()
	opts := interaction.DefaultOptions()
	opts.ElementTimeout = 100 * time.Millisecond
	opts.ShortTimeout = 50 * time.Millisecond
	opts.PollInterval = 5 * time.Millisecond
	opts.ClickBackoff = time.Millisecond
	page := browsertest.NewPage()
	return interaction.New(page, opts, logger.NewNop()), page
}

// armQuery registers the query-type and execute buttons; show runs when
// the query is executed.
func armQuery(page *browsertest.Page, label string, show func()) {
	exec := browsertest.NewElement("sorgula", "Sorgula")
	exec.OnClick = show
	page.Set(MenuButton(label), browsertest.NewElement("menu", label))
	page.Set(ExecuteButton, exec)
}

func showDialog(page *browsertest.Page, opts interaction.Options, message string) {
	ack := browsertest.NewElement("tamam", "Tamam")
	dialog := browsertest.NewElement("dialog", message).
		SetChildren(opts.FailureDialog.Message, browsertest.NewElement("message", message)).
		SetChildren(opts.FailureDialog.Acknowledge, ack)
	ack.OnClick = func() { page.Remove(opts.FailureDialog.Container) }
	page.Set(opts.FailureDialog.Container, dialog)
}

func TestScalarQueryReadsText(t *testing.T) {
	ctl, page := newTestController(t)
	q := scalar(TypeDisIsleri, "Dış İşleri")
	armQuery(page, "Dış İşleri", func() {
		page.Set(scalarText(TypeDisIsleri), browsertest.NewElement("sonuc", "\n  Yurt dışı adres kaydı yok  \n"))
	})

	res := q.Execute(context.Background(), ctl)

	assert.Equal(t, StatusData, res.Status)
	assert.Equal(t, "Yurt dışı adres kaydı yok", res.Payload)
}

func TestScalarQueryStoresDialogText(t *testing.T) {
	ctl, page := newTestController(t)
	q := scalar(TypeGIB, "GİB")
	armQuery(page, "GİB", func() { showDialog(page, ctl.Options(), "Borçluya ait GİB kaydı bulunamadı.") })

	res := q.Execute(context.Background(), ctl)

	assert.Equal(t, StatusNoData, res.Status)
	assert.Equal(t, "Borçluya ait GİB kaydı bulunamadı.", res.Payload)
	assert.Equal(t, "Borçluya ait GİB kaydı bulunamadı.", res.Message)
}

func TestScalarQueryFailsWithoutOutcome(t *testing.T) {
	ctl, page := newTestController(t)
	q := scalar(TypePostaCeki, "Posta Çeki")
	armQuery(page, "Posta Çeki", func() {})

	res := q.Execute(context.Background(), ctl)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "", res.Payload)
}

func TestTableQueryFailsWhenMenuButtonMissing(t *testing.T) {
	ctl, _ := newTestController(t)
	q := table(TypeGSM, "GSM", cols("operator", "numara"))

	res := q.Execute(context.Background(), ctl)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, []Row{}, res.Payload)
}

func TestTableQueryReadsRows(t *testing.T) {
	ctl, page := newTestController(t)
	q := table(TypeGSM, "GSM", cols("operator", "numara", "abone_durumu"))
	armQuery(page, "GSM", func() {
		page.Set(resultGrid(TypeGSM), browsertest.Table("gsm",
			[]string{"Turkcell", "5321234567", "Aktif"},
			[]string{"", "", ""},
			[]string{"Vodafone", "5429876543", "Pasif"},
		))
	})

	res := q.Execute(context.Background(), ctl)

	require.Equal(t, StatusData, res.Status)
	assert.Equal(t, []Row{
		{"operator": "Turkcell", "numara": "5321234567", "abone_durumu": "Aktif"},
		{"operator": "Vodafone", "numara": "5429876543", "abone_durumu": "Pasif"},
	}, res.Payload)
}

func TestTableQueryExpandsBeforeReading(t *testing.T) {
	ctl, page := newTestController(t)
	q := table(TypeBanka, "Banka", cols("banka", "sube")).expandable()
	armQuery(page, "Banka", func() {
		page.Set(resultGrid(TypeBanka), browsertest.Table("collapsed", []string{"Ziraat", "Kadıköy"}))
		expand := browsertest.NewElement("genislet", "Genişlet")
		expand.OnClick = func() {
			page.Remove(resultGrid(TypeBanka))
			page.Set(resultGrid(TypeBanka), browsertest.Table("expanded",
				[]string{"Ziraat", "Kadıköy"},
				[]string{"Halkbank", "Üsküdar"},
			))
		}
		page.Set(expandControl(TypeBanka), expand)
	})

	res := q.Execute(context.Background(), ctl)

	require.Equal(t, StatusData, res.Status)
	assert.Len(t, res.Payload, 2)
}

func TestTableQueryWithoutExpandControlReadsCollapsed(t *testing.T) {
	ctl, page := newTestController(t)
	q := table(TypeBanka, "Banka", cols("banka", "sube")).expandable()
	armQuery(page, "Banka", func() {
		page.Set(resultGrid(TypeBanka), browsertest.Table("collapsed", []string{"Ziraat", "Kadıköy"}))
	})

	res := q.Execute(context.Background(), ctl)

	require.Equal(t, StatusData, res.Status)
	assert.Equal(t, []Row{{"banka": "Ziraat", "sube": "Kadıköy"}}, res.Payload)
}

func TestTableQueryWalksPages(t *testing.T) {
	ctl, page := newTestController(t)
	q := table(TypeSGK, "SGK", cols("tescil_tipi", "isyeri_adi")).paginated()
	grid := resultGrid(TypeSGK)

	armQuery(page, "SGK", func() {
		pager := browsertest.NewElement("pager", "Sayfa 1 / 2 (3 Kayıt)")
		page.Set(resultPager(TypeSGK), pager)
		page.Set(grid, browsertest.Table("p1", []string{"4A", "Acme"}, []string{"4A", "Beta"}))

		next := browsertest.NewElement("page2", "2")
		next.OnClick = func() {
			page.Remove(grid)
			page.Set(grid, browsertest.Table("p2", []string{"4B", "Gama"}))
			pager.SetText("Sayfa 2 / 2 (3 Kayıt)")
		}
		page.Set(browser.CSS(`[aria-label="Page 2"]`), next)
	})

	res := q.Execute(context.Background(), ctl)

	require.Equal(t, StatusData, res.Status)
	assert.Equal(t, []Row{
		{"tescil_tipi": "4A", "isyeri_adi": "Acme"},
		{"tescil_tipi": "4A", "isyeri_adi": "Beta"},
		{"tescil_tipi": "4B", "isyeri_adi": "Gama"},
	}, res.Payload)
}
