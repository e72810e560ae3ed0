package sorgu

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JustJay7/uyap-extractor/internal/browser"
	"github.com/JustJay7/uyap-extractor/internal/interaction"
)

// ExecuteButton is the query panel's "Sorgula" button.
var ExecuteButton = browser.XPath(`//div[@id="sorguPaneli"]//div[@role="button"][normalize-space(.)="Sorgula"]`)

// MenuButton locates a query-type button in the query panel by its caption.
func MenuButton(label string) browser.Locator {
	return browser.XPath(fmt.Sprintf(`//div[@id="sorguTurleri"]//div[@role="button"][normalize-space(.)="%s"]`, label))
}

// Definition is the part every executor shares: which button selects the
// query type and where its result shows up.
type Definition struct {
	Type  Type
	Label string
	// Result is raced against the failure dialog once the query runs.
	Result browser.Locator
	// Timeout bounds the race; zero means the controller's element timeout.
	Timeout time.Duration
}

func (d Definition) button() browser.Locator {
	return MenuButton(d.Label)
}

// trigger selects the query type, runs it and waits for its outcome. A nil
// Result means the result element is ready in out.
func (d Definition) trigger(ctx context.Context, ctl *interaction.Controller, empty any) (interaction.Outcome, *Result) {
	if !ctl.Click(ctx, d.button()) {
		return interaction.Outcome{}, d.failed(empty, "sorgu türü seçilemedi")
	}
	if !ctl.Click(ctx, ExecuteButton, interaction.WithJSFallback()) {
		return interaction.Outcome{}, d.failed(empty, "sorgula butonu tıklanamadı")
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = ctl.Options().ElementTimeout
	}
	out, err := ctl.AwaitOutcome(ctx, d.Result, timeout)
	if err != nil {
		ctl.Logger().Warn("Query produced no outcome", "query", d.Type, "error", err)
		return interaction.Outcome{}, d.failed(empty, err.Error())
	}
	if out.Failed() {
		return out, &Result{Type: d.Type, Status: StatusNoData, Payload: out.FailureText, Message: out.FailureText}
	}
	return out, nil
}

func (d Definition) failed(empty any, msg string) *Result {
	return &Result{Type: d.Type, Status: StatusFailed, Payload: empty, Message: msg}
}

func (d Definition) data(payload any) Result {
	return Result{Type: d.Type, Status: StatusData, Payload: payload}
}

// ScalarQuery reads the result element's text as a single value.
type ScalarQuery struct {
	Definition
}

func (q *ScalarQuery) Type() Type { return q.Definition.Type }
func (q *ScalarQuery) Empty() any { return "" }

func (q *ScalarQuery) Execute(ctx context.Context, ctl *interaction.Controller) Result {
	out, res := q.trigger(ctx, ctl, "")
	if res != nil {
		return *res
	}
	text, err := out.Element.Text()
	if err != nil {
		ctl.Logger().Warn("Failed to read scalar result", "query", q.Definition.Type, "error", err)
		return *q.failed("", err.Error())
	}
	return q.data(strings.TrimSpace(text))
}
