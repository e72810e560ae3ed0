package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustJay7/uyap-extractor/internal/browser/browsertest"
	"github.com/JustJay7/uyap-extractor/internal/database"
	"github.com/JustJay7/uyap-extractor/internal/interaction"
	"github.com/JustJay7/uyap-extractor/internal/persistence"
	"github.com/JustJay7/uyap-extractor/internal/sorgu"
	"github.com/JustJay7/uyap-extractor/pkg/logger"
)

// portal scripts the case search, case popup and party dropdown.
type portal struct {
	page     *browsertest.Page
	loc      Locators
	year     *browsertest.Element
	seq      *browsertest.Element
	closeBtn *browsertest.Element

	mu       sync.Mutex
	selected string
}

func newPortal(page *browsertest.Page, opts interaction.Options, found bool, parties ...string) *portal {
	loc := DefaultLocators()
	p := &portal{
		page: page,
		loc:  loc,
		year: browsertest.NewElement("yil", ""),
		seq:  browsertest.NewElement("sira", ""),
	}
	page.Set(loc.Menu, browsertest.NewElement("menu", "Dosya İşlemleri"))
	page.Set(loc.SearchMenu, browsertest.NewElement("sorgulama", "Dosya Sorgulama"))
	page.Set(loc.YearInput, p.year)
	page.Set(loc.NumberInput, p.seq)

	dropdown := browsertest.NewElement("taraf-secimi", "")
	dropdown.OnClick = func() {
		var options []*browsertest.Element
		for _, name := range parties {
			name := name
			o := browsertest.NewElement(name, name)
			o.OnClick = func() {
				p.mu.Lock()
				p.selected = name
				p.mu.Unlock()
				page.Remove(loc.PartyOptions)
			}
			options = append(options, o)
		}
		page.Set(loc.PartyOptions, options...)
	}

	detail := browsertest.NewElement("detay", "Detay")
	detail.OnClick = func() {
		popup := browsertest.NewElement("dosya-detay", "")
		p.closeBtn = browsertest.NewElement("kapat", "×")
		p.closeBtn.OnClick = func() {
			popup.Detach()
			p.closeBtn.Detach()
		}
		page.Add(loc.CasePopup, popup)
		page.Add(opts.CloseControl, p.closeBtn)
		page.Set(loc.Office, browsertest.NewElement("birim", "İstanbul 5. İcra Dairesi"))
		page.Set(loc.PartiesTab, browsertest.NewElement("taraflar", "Taraf Bilgileri"))
		page.Set(loc.PartySelect, dropdown)
	}

	search := browsertest.NewElement("sorgula", "Sorgula")
	search.OnClick = func() {
		if found {
			page.Set(loc.ResultDetail, detail)
		}
	}
	page.Set(loc.SearchButton, search)
	return p
}

func (p *portal) party() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

// recordingExecutor notes which party was selected when it ran.
type recordingExecutor struct {
	t      sorgu.Type
	portal *portal
	calls  *[]string
	panics bool
}

func (e recordingExecutor) Type() sorgu.Type { return e.t }
func (e recordingExecutor) Empty() any       { return []sorgu.Row{} }

func (e recordingExecutor) Execute(context.Context, *interaction.Controller) sorgu.Result {
	party := e.portal.party()
	*e.calls = append(*e.calls, party+":"+string(e.t))
	if e.panics {
		panic("unexpected grid layout")
	}
	return sorgu.Result{Type: e.t, Status: sorgu.StatusData, Payload: []sorgu.Row{{"party": party}}}
}

type capturingPersister struct {
	docs []persistence.Document
}

func (c *capturingPersister) Persist(_ context.Context, docs ...persistence.Document) bool {
	c.docs = append(c.docs, docs...)
	return true
}

func newTestHandle(t *testing.T, page *browsertest.Page) *Handle {
	t.Helper()
	l := &fakeLauncher{newPage: func() *browsertest.Page { return page }}
	m := NewManager(l, testOptions(), logger.NewNop())
	h, err := m.Acquire(context.Background(), DefaultKey)
	require.NoError(t, err)
	return h
}

func recordingRegistry(t *testing.T, p *portal, calls *[]string, panicking sorgu.Type, types ...sorgu.Type) *sorgu.Registry {
	t.Helper()
	var execs []sorgu.Executor
	for _, typ := range types {
		execs = append(execs, recordingExecutor{t: typ, portal: p, calls: calls, panics: typ == panicking})
	}
	reg, err := sorgu.NewRegistry(logger.NewNop(), execs...)
	require.NoError(t, err)
	return reg
}

func TestParseCaseNumber(t *testing.T) {
	year, seq, err := ParseCaseNumber(" 2024 / 141 ")
	require.NoError(t, err)
	assert.Equal(t, "2024", year)
	assert.Equal(t, "141", seq)

	for _, bad := range []string{"", "141", "24/141", "2024-141", "2024/abc"} {
		_, _, err := ParseCaseNumber(bad)
		assert.ErrorIs(t, err, ErrInvalidCaseNumber, bad)
	}
}

func TestPerformQueryRunsEnabledTypesPerParty(t *testing.T) {
	page := browsertest.NewPage()
	h := newTestHandle(t, page)
	p := newPortal(page, testOptions(), true, "AHMET YILMAZ (Borçlu)", "AYŞE KAYA (Borçlu)")

	var calls []string
	reg := recordingRegistry(t, p, &calls, "", sorgu.TypeGSM, sorgu.TypeBanka, sorgu.TypeEGM)
	store := &capturingPersister{}
	d := NewDispatcher(reg, store, DispatcherOptions{}, logger.NewNop())

	report, err := d.PerformQuery(context.Background(), h, "2024/141", map[sorgu.Type]bool{
		sorgu.TypeBanka: true,
		sorgu.TypeGSM:   true,
		"UNKNOWN":       true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"AHMET YILMAZ (Borçlu):GSM",
		"AHMET YILMAZ (Borçlu):BANKA",
		"AYŞE KAYA (Borçlu):GSM",
		"AYŞE KAYA (Borçlu):BANKA",
	}, calls)
	assert.Equal(t, "2024/141", report.CaseNumber)
	assert.Equal(t, "İstanbul 5. İcra Dairesi", report.Office)
	require.Len(t, report.Parties, 2)
	assert.Equal(t, 4, report.Results())
	assert.True(t, report.Persisted)

	assert.Equal(t, []string{"2024"}, p.year.Inputs())
	assert.Equal(t, []string{"141"}, p.seq.Inputs())
	assert.True(t, p.closeBtn.Stale(), "case popup closed")
	assert.Zero(t, h.Controller().Depth())

	require.Len(t, store.docs, 1)
	doc := store.docs[0]
	assert.Equal(t, "2024/141", doc.CaseNumber)
	require.Len(t, doc.Parties, 2)
	assert.Equal(t, "AYŞE KAYA (Borçlu)", doc.Parties[1].Label)
	assert.Equal(t, "BANKA", doc.Parties[1].Results[1].Type)
}

func TestPerformQueryRecoversExecutorPanic(t *testing.T) {
	page := browsertest.NewPage()
	h := newTestHandle(t, page)
	p := newPortal(page, testOptions(), true, "AHMET YILMAZ")

	var calls []string
	reg := recordingRegistry(t, p, &calls, sorgu.TypeBanka, sorgu.TypeBanka, sorgu.TypeGSM)
	d := NewDispatcher(reg, nil, DispatcherOptions{}, logger.NewNop())

	report, err := d.PerformQuery(context.Background(), h, "2024/141", map[sorgu.Type]bool{
		sorgu.TypeBanka: true,
		sorgu.TypeGSM:   true,
	})
	require.NoError(t, err)

	require.Len(t, report.Parties, 1)
	results := report.Parties[0].Results
	require.Len(t, results, 2)
	assert.Equal(t, sorgu.StatusFailed, results[0].Status)
	assert.Equal(t, []sorgu.Row{}, results[0].Payload)
	assert.Equal(t, "unexpected grid layout", results[0].Message)
	assert.Equal(t, sorgu.StatusData, results[1].Status)
	assert.False(t, report.Persisted)
}

func TestPerformQueryCaseNotFound(t *testing.T) {
	page := browsertest.NewPage()
	h := newTestHandle(t, page)
	p := newPortal(page, testOptions(), false, "AHMET YILMAZ")

	var calls []string
	reg := recordingRegistry(t, p, &calls, "", sorgu.TypeGSM)
	store := &capturingPersister{}
	d := NewDispatcher(reg, store, DispatcherOptions{}, logger.NewNop())

	_, err := d.PerformQuery(context.Background(), h, "2024/999", map[sorgu.Type]bool{sorgu.TypeGSM: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2024/999 not found")
	assert.Empty(t, calls)
	assert.Empty(t, store.docs)
	assert.Zero(t, h.Controller().Depth())
}

func TestPerformQueryRejectsBadInput(t *testing.T) {
	page := browsertest.NewPage()
	h := newTestHandle(t, page)
	reg, err := sorgu.NewRegistry(nil)
	require.NoError(t, err)
	d := NewDispatcher(reg, nil, DispatcherOptions{}, logger.NewNop())

	_, err = d.PerformQuery(context.Background(), h, "141", map[sorgu.Type]bool{sorgu.TypeGSM: true})
	assert.ErrorIs(t, err, ErrInvalidCaseNumber)

	_, err = d.PerformQuery(context.Background(), h, "2024/141", map[sorgu.Type]bool{sorgu.TypeGSM: true})
	assert.EqualError(t, err, "no query type enabled")
}

func TestPerformBatchSkipsFailingCases(t *testing.T) {
	page := browsertest.NewPage()
	h := newTestHandle(t, page)
	p := newPortal(page, testOptions(), true, "AHMET YILMAZ")

	var calls []string
	reg := recordingRegistry(t, p, &calls, "", sorgu.TypeGSM)
	d := NewDispatcher(reg, nil, DispatcherOptions{}, logger.NewNop())

	reports, failures := d.PerformBatch(context.Background(), h, []string{"2024/141", "bozuk"}, map[sorgu.Type]bool{sorgu.TypeGSM: true})

	require.Len(t, reports, 1)
	assert.Equal(t, "2024/141", reports[0].CaseNumber)
	require.Contains(t, failures, "bozuk")
	assert.ErrorIs(t, failures["bozuk"], ErrInvalidCaseNumber)
}

func TestPerformQueryPersistsTableResults(t *testing.T) {
	page := browsertest.NewPage()
	h := newTestHandle(t, page)
	newPortal(page, testOptions(), true, "AHMET YILMAZ (Borçlu)")

	var gsm *sorgu.TableQuery
	for _, e := range sorgu.Definitions() {
		if e.Type() == sorgu.TypeGSM {
			gsm = e.(*sorgu.TableQuery)
		}
	}
	require.NotNil(t, gsm)
	exec := browsertest.NewElement("sorgula", "Sorgula")
	exec.OnClick = func() {
		page.Set(gsm.Result, browsertest.Table("gsm",
			[]string{"Turkcell", "5321234567", "Aktif", "Kadıköy İstanbul"},
		))
	}
	page.Set(sorgu.MenuButton(gsm.Label), browsertest.NewElement("gsm", gsm.Label))
	page.Set(sorgu.ExecuteButton, exec)

	reg, err := sorgu.NewRegistry(logger.NewNop(), gsm)
	require.NoError(t, err)

	db, err := database.Initialize("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	backupPath := filepath.Join(t.TempDir(), "sorgu_sonuclari.json")
	store := persistence.NewStore(db, persistence.NewBackup(backupPath), logger.NewNop())
	d := NewDispatcher(reg, store, DispatcherOptions{}, logger.NewNop())

	report, err := d.PerformQuery(context.Background(), h, "2024/141", map[sorgu.Type]bool{sorgu.TypeGSM: true})
	require.NoError(t, err)
	require.True(t, report.Persisted)

	want := []map[string]string{{
		"operator":     "Turkcell",
		"numara":       "5321234567",
		"abone_durumu": "Aktif",
		"adres":        "Kadıköy İstanbul",
	}}

	data, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	var tree map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &tree))
	var byType map[string][]map[string]string
	require.NoError(t, json.Unmarshal(tree["2024/141"]["AHMET YILMAZ (Borçlu)"], &byType))
	assert.Equal(t, want, byType["GSM"])

	fileID := persistence.FileID("2024/141", "İstanbul 5. İcra Dairesi")
	debtors, err := store.DebtorsOf(context.Background(), fileID)
	require.NoError(t, err)
	require.Len(t, debtors, 1)
	assert.Equal(t, "AHMET YILMAZ", debtors[0].Ad)

	stored, err := store.QueryResult(context.Background(), debtors[0].BorcluID, "GSM")
	require.NoError(t, err)
	var rows []map[string]string
	require.NoError(t, json.Unmarshal(stored.Payload, &rows))
	assert.Equal(t, want, rows)
}
