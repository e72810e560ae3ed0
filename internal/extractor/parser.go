package extractor

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/JustJay7/uyap-extractor/internal/database"
	"github.com/JustJay7/uyap-extractor/internal/session"
	"github.com/JustJay7/uyap-extractor/internal/sorgu"
)

// Case list columns, in grid order.
const (
	colKlasor = iota
	colDosyaNo
	colIcraMudurlugu
	colBorcluAdi
	colAlacakliAdi
	colFoyTuru
	colDurum
	colTakipTarihi
)

// Party table columns, in grid order.
const (
	colRol = iota
	colAd
	colTCKimlik
	colVekil
	colAdres
	colTelefon
)

func cellAt(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}

// lower lowercases with Turkish rules, so "İ" becomes "i" and "I" "ı".
func lower(s string) string {
	return strings.ToLowerSpecial(unicode.TurkishCase, s)
}

// parseFiles reads case list rows. Rows without a case number are skipped.
func parseFiles(fragment string) ([]database.File, error) {
	rows, err := sorgu.TableCells(fragment, false)
	if err != nil {
		return nil, err
	}

	files := make([]database.File, 0, len(rows))
	for _, c := range rows {
		f := database.File{
			Klasor:        cellAt(c, colKlasor),
			DosyaNo:       cellAt(c, colDosyaNo),
			IcraMudurlugu: cellAt(c, colIcraMudurlugu),
			BorcluAdi:     cellAt(c, colBorcluAdi),
			AlacakliAdi:   cellAt(c, colAlacakliAdi),
			FoyTuru:       cellAt(c, colFoyTuru),
			Durum:         cellAt(c, colDurum),
			TakipTarihi:   normalizeDate(cellAt(c, colTakipTarihi)),
		}
		if f.DosyaNo == "" {
			continue
		}
		if year, seq, err := session.ParseCaseNumber(f.DosyaNo); err == nil {
			f.DosyaNo = year + "/" + seq
			f.EYil, f.ENo = year, seq
		}
		files = append(files, f)
	}
	return files, nil
}

// parseDetail reads the label/value table of the case detail popup. ok is
// false when no known label was found.
func parseDetail(fragment string) (detail database.FileDetail, ok bool, err error) {
	rows, err := sorgu.TableCells(fragment, true)
	if err != nil {
		return detail, false, err
	}

	for _, c := range rows {
		if len(c) < 2 {
			continue
		}
		label := strings.TrimSuffix(lower(c[0]), ":")
		value := c[1]
		if value == "" {
			continue
		}

		switch {
		case strings.Contains(label, "takip şekli"):
			detail.TakipSekli = value
		case strings.Contains(label, "takip yolu"):
			detail.TakipYolu = value
		case strings.Contains(label, "takip türü"):
			detail.TakipTuru = value
		case strings.Contains(label, "alacaklı vekili"):
			detail.AlacakliVekili = value
		case strings.Contains(label, "borç miktarı"), strings.Contains(label, "asıl alacak"):
			detail.BorcMiktari = value
		case strings.Contains(label, "faiz oranı"):
			detail.FaizOrani = value
		case strings.Contains(label, "güncel borç"), strings.Contains(label, "toplam borç"):
			detail.GuncelBorc = value
		case strings.Contains(label, "son ödeme"):
			detail.SonOdeme = normalizeDate(value)
		default:
			continue
		}
		ok = true
	}
	return detail, ok, nil
}

// Parties is the party table of a case split by role.
type Parties struct {
	Debtors        []database.Borclu
	Creditor       string
	CreditorLawyer string
}

// parseParties reads the party table. Only debtors (borçlu) become
// database rows; the first creditor (alacaklı) fills in case fields.
func parseParties(fragment string) (Parties, error) {
	rows, err := sorgu.TableCells(fragment, false)
	if err != nil {
		return Parties{}, err
	}

	var p Parties
	for _, c := range rows {
		name := cellAt(c, colAd)
		if name == "" {
			continue
		}
		role := lower(cellAt(c, colRol))
		switch {
		case strings.Contains(role, "borçlu"):
			p.Debtors = append(p.Debtors, database.Borclu{
				Ad:       name,
				TCKimlik: tcKimlik(cellAt(c, colTCKimlik)),
				Vekil:    cellAt(c, colVekil),
				Adres:    cellAt(c, colAdres),
				Telefon:  cellAt(c, colTelefon),
			})
		case strings.Contains(role, "alacaklı") && p.Creditor == "":
			p.Creditor = name
			p.CreditorLawyer = cellAt(c, colVekil)
		}
	}
	return p, nil
}

var tcPattern = regexp.MustCompile(`\b\d{11}\b`)

// tcKimlik keeps the cell only when it holds an 11-digit national id; the
// portal masks ids it does not disclose.
func tcKimlik(s string) string {
	return tcPattern.FindString(s)
}

var dateFormats = []string{
	"02.01.2006",
	"02.01.2006 15:04",
	"02.01.2006 15:04:05",
	"02/01/2006",
	"2006-01-02",
	"02-01-2006",
}

// parseDate parses the date formats the portal grids use.
func parseDate(s string) (time.Time, error) {
	s = strings.Join(strings.Fields(s), " ")
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

// normalizeDate renders a portal date as YYYY-MM-DD, or returns s as is
// when it is not a date.
func normalizeDate(s string) string {
	t, err := parseDate(s)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02")
}
