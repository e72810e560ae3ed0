// Package persistence turns extracted case documents into rows and keeps a
// JSON backup of every query payload next to the database.
package persistence

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/JustJay7/uyap-extractor/internal/database"
)

// Document is what one portal run extracted for one case. Case, Detail and
// Debtors come from case extraction; Parties from the query dispatcher.
// Either side may be empty.
type Document struct {
	CaseNumber string
	// Office is the issuing office (icra müdürlüğü) when known.
	Office string

	Case    *database.File
	Detail  *database.FileDetail
	Debtors []database.Borclu

	Parties []Party
}

// Party holds the query results gathered for one party label.
type Party struct {
	Label   string
	Results []Record
}

// Record is one query result. Status is "data", "no_data" or "failed".
type Record struct {
	Type    string
	Status  string
	Payload any
}

// IdentityQuery is the query type whose payload backfills debtor identity.
const IdentityQuery = "MERNIS"

var idNamespace = uuid.MustParse("6f1c2a9e-3b7d-4c58-9a0e-2d4b8e7f1c35")

// FileID derives a case id from its natural key.
func FileID(dosyaNo, icraMudurlugu string) string {
	return uuid.NewSHA1(idNamespace, []byte(strings.TrimSpace(dosyaNo)+"|"+strings.TrimSpace(icraMudurlugu))).String()
}

// BorcluID derives a debtor id from its case and name.
func BorcluID(fileID, ad string) string {
	return uuid.NewSHA1(idNamespace, []byte(fileID+"|"+normalizeName(ad))).String()
}

var roleSuffix = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]\s*$`)

// PartyName strips the role annotation the party dropdown appends, e.g.
// "AHMET YILMAZ (Borçlu)".
func PartyName(label string) string {
	name := strings.TrimSpace(label)
	for {
		stripped := roleSuffix.ReplaceAllString(name, "")
		if stripped == name || stripped == "" {
			return name
		}
		name = stripped
	}
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
