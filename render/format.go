package render

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tabancura/frontdesk/catalog"
	"golang.org/x/text/encoding/charmap"
)

// TruncationMarker is appended to labels cut at a document's limit.
const TruncationMarker = "..."

var rutPattern = regexp.MustCompile(`^(\d{1,9})-([0-9kK])$`)

// FormatCLP renders whole pesos with '.' as thousands separator and no
// decimals: 15000 -> "$15.000".
func FormatCLP(amount int64) string {
	if amount < 0 {
		return "-$" + groupThousands(strconv.FormatUint(uint64(-(amount+1))+1, 10))
	}
	return "$" + groupThousands(strconv.FormatInt(amount, 10))
}

// FormatCLPText coerces free text before formatting; anything unparsable is
// rendered as "$0".
func FormatCLPText(raw string) string {
	return FormatCLP(catalog.ParseAmount(raw))
}

// FormatRUT formats a national ID written as body-checkdigit, e.g.
// "12345678-5" -> "12.345.678-5". Anything else is returned unchanged.
func FormatRUT(raw string) string {
	m := rutPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return raw
	}
	body := strings.TrimLeft(m[1], "0")
	if body == "" {
		body = "0"
	}
	return groupThousands(body) + "-" + strings.ToUpper(m[2])
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// Truncate cuts s to limit runes and appends TruncationMarker when it does.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + TruncationMarker
}

// latin1 converts s to the single-byte encoding the core PDF fonts use.
// Runes outside ISO-8859-1 become '?'.
func latin1(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.ISO8859_1.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return string(out)
}
