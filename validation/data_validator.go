// Package validation checks operator input and reports catalog quality.
package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tabancura/frontdesk/entities"
	"github.com/tabancura/frontdesk/interfaces"
	"github.com/tabancura/frontdesk/logging"
)

// Lookup kinds accepted by ValidateLookupKey.
const (
	LookupByRUT   = "rut"
	LookupByFolio = "folio"
)

const (
	maxDocumentIDLength = 20
	maxFolioLength      = 20
	maxQueryLength      = 60
	maxQueryWords       = 8
)

var (
	folioRegex = regexp.MustCompile(`^[A-Za-z0-9\-]+$`)

	// markupPatterns are rejected in every free-text input.
	markupPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"eval(", "expression(", "@import",
	}

	// keyPatterns are also rejected in lookup keys, which end up in the
	// order service's URL path.
	keyPatterns = []string{
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"--", "/*", "*/",
		"`", "$(", "${",
		"../", "..\\", "%2e%2e", "file://",
	}
)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct{}

// NewDataValidator creates a new data validator
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{}
}

// ValidateLookupKey checks a patient lookup key and returns it trimmed.
func (v *DataValidatorImpl) ValidateLookupKey(by, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("lookup value cannot be empty")
	}

	switch strings.ToLower(strings.TrimSpace(by)) {
	case LookupByRUT:
		// Any spelling is sent as typed: RUTs with spaces, passports and
		// other foreign IDs fall back to a manual order when unknown.
		if utf8.RuneCountInString(value) > maxDocumentIDLength {
			return "", fmt.Errorf("document ID too long: maximum %d characters", maxDocumentIDLength)
		}
		if containsDangerousPatterns(value, markupPatterns, keyPatterns) {
			return "", fmt.Errorf("document ID contains potentially dangerous content")
		}
	case LookupByFolio:
		if len(value) > maxFolioLength {
			return "", fmt.Errorf("folio too long: maximum %d characters", maxFolioLength)
		}
		if !folioRegex.MatchString(value) {
			return "", fmt.Errorf("folio contains invalid characters. Only letters, digits and hyphens are allowed")
		}
	default:
		return "", fmt.Errorf("lookup must be by %q or %q, got %q", LookupByRUT, LookupByFolio, by)
	}

	return value, nil
}

// ValidateSearchQuery checks catalog search text. An empty query is valid
// and lists the whole catalog. The text only feeds a substring match, so
// catalog punctuation such as ":", "&", ";" or "--" is allowed.
func (v *DataValidatorImpl) ValidateSearchQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", nil
	}

	if !utf8.ValidString(q) {
		return "", fmt.Errorf("search query is not valid UTF-8")
	}
	if utf8.RuneCountInString(q) > maxQueryLength {
		return "", fmt.Errorf("search query too long: maximum %d characters", maxQueryLength)
	}
	if len(strings.Fields(q)) > maxQueryWords {
		return "", fmt.Errorf("search query too complex: maximum %d words allowed", maxQueryWords)
	}

	if containsDangerousPatterns(q, markupPatterns) {
		return "", fmt.Errorf("search query contains potentially dangerous content")
	}

	if strings.IndexFunc(q, unicode.IsControl) >= 0 {
		return "", fmt.Errorf("search query contains invalid characters")
	}

	if hasExcessiveRepetition(q) {
		return "", fmt.Errorf("search query contains excessive character repetition")
	}

	return q, nil
}

// ReportCatalogQuality counts duplicate codes, rows without code or label,
// and entries whose four amounts are all zero.
func (v *DataValidatorImpl) ReportCatalogQuality(entries []entities.CatalogEntry) *interfaces.CatalogQualityReport {
	report := &interfaces.CatalogQualityReport{
		Entries:        len(entries),
		DuplicateCodes: []string{},
	}

	seen := make(map[string]int, len(entries))
	for _, e := range entries {
		if e.Code == "" {
			report.EntriesWithoutCode++
		} else {
			seen[e.Code]++
		}
		if strings.TrimSpace(e.Label) == "" {
			report.EntriesWithoutLabel++
		}
		if e.Fonasa == 0 && e.Copay == 0 && e.GeneralPrivate == 0 && e.PreferentialPrivate == 0 {
			report.EntriesWithoutPrices++
		}
	}

	for code, n := range seen {
		if n > 1 {
			report.DuplicateCodes = append(report.DuplicateCodes, code)
		}
	}
	sort.Strings(report.DuplicateCodes)

	if len(report.DuplicateCodes) > 0 {
		logging.Warn("Duplicate codes in catalog, first entry wins",
			"count", len(report.DuplicateCodes),
			"codes", report.DuplicateCodes,
		)
	}

	return report
}

// containsDangerousPatterns reports whether input holds any of the patterns,
// ignoring case.
func containsDangerousPatterns(input string, lists ...[]string) bool {
	lower := strings.ToLower(input)
	for _, patterns := range lists {
		for _, pattern := range patterns {
			if strings.Contains(lower, pattern) {
				return true
			}
		}
	}
	return false
}

// hasExcessiveRepetition reports a rune repeated more than 10 times in a row.
func hasExcessiveRepetition(input string) bool {
	var prev rune
	run := 0
	for _, r := range input {
		if r == prev {
			run++
			if run > 10 {
				return true
			}
			continue
		}
		prev = r
		run = 1
	}
	return false
}
