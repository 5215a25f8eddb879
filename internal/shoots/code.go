package shoots

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// sanitizeCode strips accents and everything non-alphanumeric from text and
// uppercases the rest, producing a URL- and filename-safe token.
func sanitizeCode(text string) string {
	if text == "" {
		return ""
	}
	stripped, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), text)
	if err != nil {
		stripped = text
	}
	var b strings.Builder
	for _, r := range stripped {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(b.String())
}

// BuildSessionCode derives the unique session code from the shoot date, the
// client's name, the type abbreviation and the session id, e.g.
// 240115_MARIASILVA_NB_42.
func BuildSessionCode(date time.Time, clientName, typeAbbreviation string, sessionID int64) string {
	name := sanitizeCode(clientName)
	if name == "" {
		name = fmt.Sprintf("CLI%d", sessionID)
	}
	return fmt.Sprintf("%s_%s_%s_%d", date.Format("060102"), name, strings.ToUpper(typeAbbreviation), sessionID)
}
