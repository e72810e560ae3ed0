package persistence

import (
	"fmt"
	"regexp"
	"strings"
)

// Identity is what an identity (MERNİS) payload reveals about a debtor.
type Identity struct {
	TCKimlik string
	Adres    string
}

func (i Identity) empty() bool {
	return i.TCKimlik == "" && i.Adres == ""
}

var (
	tcPattern   = regexp.MustCompile(`(?:^|\D)(\d{11})(?:\D|$)`)
	adresLine   = regexp.MustCompile(`(?im)^\s*adres\s*:\s*(.+?)\s*$`)
	addressPart = []struct {
		pattern *regexp.Regexp
		format  string
	}{
		{regexp.MustCompile(`(?im)^\s*mahalle\s*:\s*(.+?)\s*$`), "%s"},
		{regexp.MustCompile(`(?im)^\s*(?:cadde\s*/\s*sokak|cadde|sokak)\s*:\s*(.+?)\s*$`), "%s"},
		{regexp.MustCompile(`(?im)^\s*dış\s*kapı(?:\s*no)?\s*:\s*(.+?)\s*$`), "No:%s"},
		{regexp.MustCompile(`(?im)^\s*(?:iç|İç)\s*kapı(?:\s*no)?\s*:\s*(.+?)\s*$`), "İç Kapı:%s"},
		{regexp.MustCompile(`(?im)^\s*(?:ilçe|İlçe)\s*:\s*(.+?)\s*$`), "%s"},
		{regexp.MustCompile(`(?im)^\s*(?:il|İl)\s*:\s*(.+?)\s*$`), "%s"},
	}
)

// ParseIdentity extracts the 11-digit national id and the address from an
// identity payload. The address is taken from an "Adres:" line, or else
// composed from the labelled address fields in order.
func ParseIdentity(text string) Identity {
	var id Identity
	if m := tcPattern.FindStringSubmatch(text); m != nil {
		id.TCKimlik = m[1]
	}

	if m := adresLine.FindStringSubmatch(text); m != nil {
		id.Adres = m[1]
		return id
	}

	var parts []string
	for _, p := range addressPart {
		if m := p.pattern.FindStringSubmatch(text); m != nil {
			parts = append(parts, fmt.Sprintf(p.format, m[1]))
		}
	}
	id.Adres = strings.Join(parts, " ")
	return id
}
