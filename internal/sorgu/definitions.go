package sorgu

import (
	"fmt"
	"time"

	"github.com/JustJay7/uyap-extractor/internal/browser"
	"github.com/JustJay7/uyap-extractor/pkg/logger"
)

var (
	// PopupContent matches the content pane of every open popup.
	PopupContent = browser.CSS(".dx-popup-wrapper .dx-overlay-content")

	dataRows      = browser.CSS(".dx-datagrid-rowsview tr.dx-data-row")
	rowDetailLink = browser.CSS("td.dx-command-edit .dx-link-detay")
)

func scalarText(t Type) browser.Locator {
	return browser.CSS(fmt.Sprintf("#sorguSonuc_%s .sorgu-sonuc-metin", t))
}

func resultGrid(t Type) browser.Locator {
	return browser.CSS(fmt.Sprintf("#sorguSonuc_%s .dx-datagrid-rowsview table", t))
}

func resultDataGrid(t Type) browser.Locator {
	return browser.CSS(fmt.Sprintf("#sorguSonuc_%s .dx-datagrid", t))
}

func resultPager(t Type) browser.Locator {
	return browser.CSS(fmt.Sprintf("#sorguSonuc_%s .dx-info", t))
}

func expandControl(t Type) browser.Locator {
	return browser.CSS(fmt.Sprintf("#sorguSonuc_%s .sonuc-genislet", t))
}

func scalar(t Type, label string) *ScalarQuery {
	return &ScalarQuery{Definition: Definition{Type: t, Label: label, Result: scalarText(t)}}
}

func table(t Type, label string, columns []Column) *TableQuery {
	return &TableQuery{
		Definition: Definition{Type: t, Label: label, Result: resultGrid(t)},
		Columns:    columns,
	}
}

func (q *TableQuery) expandable() *TableQuery {
	q.Expand = expandControl(q.Definition.Type)
	return q
}

func (q *TableQuery) paginated() *TableQuery {
	q.PageInfo = resultPager(q.Definition.Type)
	return q
}

func (q *TableQuery) slow(d time.Duration) *TableQuery {
	q.Definition.Timeout = d
	return q
}

// Definitions returns one executor per query type, in the order the portal
// lists them.
func Definitions() []Executor {
	return []Executor{
		scalar(TypeMernis, "MERNİS"),
		scalar(TypeDisIsleri, "Dış İşleri"),
		scalar(TypeGIB, "GİB"),
		scalar(TypePostaCeki, "Posta Çeki"),

		table(TypeBanka, "Banka",
			cols("banka", "sube", "hesap_no", "hesap_turu", "doviz", "bakiye")).expandable(),
		table(TypeGSM, "GSM",
			cols("operator", "numara", "abone_durumu", "adres")),
		table(TypeSGK, "SGK",
			cols("tescil_tipi", "isyeri_adi", "isyeri_sicil", "baslangic", "bitis", "durum")).paginated().slow(30 * time.Second),
		table(TypeSGKHaciz, "SGK Haciz",
			cols("kurum", "dosya_no", "haciz_tarihi", "tutar", "durum")),
		table(TypeISKI, "İSKİ",
			cols("abone_no", "adres", "durum", "baslangic_tarihi")),
		table(TypeDenizcilik, "Denizcilik",
			cols("gemi_adi", "bayrak", "tonaj", "kayit_limani", "hisse")),
		table(TypeIcraDosyasi, "İcra Dosyası",
			cols("icra_dairesi", "dosya_no", "alacakli", "durum", "takip_tarihi")).expandable().paginated().slow(30 * time.Second),
		table(TypeTarim, "Tarım",
			cols("kayit_no", "il", "ilce", "arazi_alani", "urun")),
		table(TypeSGKIsyeri, "SGK İşyeri",
			cols("sicil_no", "unvan", "adres", "il", "durum")),

		&DrillDownQuery{
			Definition: Definition{Type: TypeEGM, Label: "EGM", Result: resultDataGrid(TypeEGM), Timeout: 30 * time.Second},
			Root: Level{
				Rows:     dataRows,
				Columns:  cols("plaka", "marka", "model", "yil", "renk", "sasi_no"),
				Action:   rowDetailLink,
				Popup:    PopupContent,
				ChildKey: "takyidat",
				Child: &Level{
					Rows:    dataRows,
					Columns: cols("tur", "kurum", "tarih", "aciklama"),
				},
			},
		},
		&DrillDownQuery{
			Definition: Definition{Type: TypeTAKBIS, Label: "TAKBİS", Result: resultDataGrid(TypeTAKBIS), Timeout: 40 * time.Second},
			Root: Level{
				Rows:     dataRows,
				Columns:  cols("il", "ilce", "mahalle", "ada", "parsel", "nitelik"),
				Action:   rowDetailLink,
				Popup:    PopupContent,
				ChildKey: "hisse_bilgisi",
				Child: &Level{
					Rows:     dataRows,
					Columns:  cols("malik", "hisse_orani", "edinme_tarihi"),
					Action:   rowDetailLink,
					Popup:    PopupContent,
					ChildKey: "takdiyat_bilgisi",
					Child: &Level{
						Rows:    dataRows,
						Columns: cols("tur", "alacakli", "tarih", "aciklama"),
					},
				},
			},
		},
	}
}

// DefaultRegistry registers every query type.
func DefaultRegistry(log *logger.Logger) *Registry {
	r, err := NewRegistry(log, Definitions()...)
	if err != nil {
		panic(err)
	}
	return r
}
