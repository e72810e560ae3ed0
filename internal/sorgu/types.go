// Package sorgu holds the per-query-type executors run against a selected
// debtor (borçlu) in the portal's query panel.
package sorgu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JustJay7/uyap-extractor/internal/interaction"
)

// Type is a query type. The set is closed; see DefaultRegistry.
type Type string

const (
	TypeMernis      Type = "MERNIS"
	TypeDisIsleri   Type = "DIS_ISLERI"
	TypeGIB         Type = "GIB"
	TypePostaCeki   Type = "POSTA_CEKI"
	TypeBanka       Type = "BANKA"
	TypeGSM         Type = "GSM"
	TypeSGK         Type = "SGK"
	TypeSGKHaciz    Type = "SGK_HACIZ"
	TypeISKI        Type = "ISKI"
	TypeDenizcilik  Type = "DENIZCILIK"
	TypeIcraDosyasi Type = "ICRA_DOSYASI"
	TypeTarim       Type = "TARIM"
	TypeSGKIsyeri   Type = "SGK_ISYERI"
	TypeEGM         Type = "EGM"
	TypeTAKBIS      Type = "TAKBIS"
)

// ErrUnknownType is returned for query types without an executor.
var ErrUnknownType = errors.New("unknown query type")

// ParseType accepts a query type code in any case.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range allTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

var allTypes = []Type{
	TypeMernis, TypeDisIsleri, TypeGIB, TypePostaCeki,
	TypeBanka, TypeGSM, TypeSGK, TypeSGKHaciz, TypeISKI,
	TypeDenizcilik, TypeIcraDosyasi, TypeTarim, TypeSGKIsyeri,
	TypeEGM, TypeTAKBIS,
}

// Status classifies how a query ended.
type Status string

const (
	// StatusData means the portal returned a result.
	StatusData Status = "data"
	// StatusNoData means the portal answered with a dialog; the dialog text
	// is the payload.
	StatusNoData Status = "no_data"
	// StatusFailed means the query could not be completed; the payload is
	// the empty value for the query's shape.
	StatusFailed Status = "failed"
)

// Row is one extracted table row. Drill-down rows carry their child rows
// under a named key as []Row.
type Row map[string]any

// Column maps a cell index to a payload key.
type Column struct {
	Index int
	Key   string
}

// Result is what an executor produced for one debtor.
type Result struct {
	Type     Type          `json:"type"`
	Status   Status        `json:"status"`
	Payload  any           `json:"payload"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"-"`
}

// Executor runs one query type against the currently selected debtor.
// Executors never return transient UI errors; failures are folded into
// the Result.
type Executor interface {
	Type() Type
	// Empty is the payload recorded when the query fails: "" for scalar
	// queries, an empty row list for tables.
	Empty() any
	Execute(ctx context.Context, ctl *interaction.Controller) Result
}
