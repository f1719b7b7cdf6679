package catalog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/tabancura/frontdesk/entities"
	"github.com/tabancura/frontdesk/logging"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// Source column headers, compared after trimming.
const (
	ColumnLabel               = "Nombre prestación en Fonasa o Particular"
	ColumnCode                = "Codigo Ingreso"
	ColumnFonasa              = "Bono Fonasa"
	ColumnCopay               = "Copago"
	ColumnGeneralPrivate      = "Particular General"
	ColumnPreferentialPrivate = "Particular Preferencial"
)

// FileLoader reads the fee schedule from an .xlsx or .csv file.
type FileLoader struct {
	path string
}

// NewFileLoader creates a loader for path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// Path returns the configured source path.
func (l *FileLoader) Path() string {
	return l.path
}

// Load reads and parses the source. It always returns a usable catalog; on
// failure the catalog is empty and the error says why, so callers can log it
// and keep serving.
func (l *FileLoader) Load() (*Catalog, error) {
	entries, err := ReadFile(l.path)
	if err != nil {
		return Empty(), err
	}
	return New(entries), nil
}

// Load is the fail-soft entry point: any problem with the source yields an
// empty catalog and a warning in the log.
func Load(path string) *Catalog {
	c, err := NewFileLoader(path).Load()
	if err != nil {
		logging.Warn("Fee schedule unavailable, continuing with an empty catalog", "path", path, "error", err)
	}
	return c
}

// ReadFile parses the source file into entries.
func ReadFile(path string) ([]entities.CatalogEntry, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("catalog source not found: %w", err)
	}

	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readSpreadsheet(path)
	case ".csv", ".txt":
		rows, err = readDelimited(path)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	return ParseRows(rows)
}

// readSpreadsheet returns the raw cell values of the first sheet.
func readSpreadsheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet %s: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("Failed to close spreadsheet", "path", path, "error", err)
		}
	}()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("spreadsheet %s has no sheets", path)
	}

	// Raw values keep amounts free of display formatting like "$ 15.000".
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// readDelimited reads a ';' or ',' separated export, decoding ISO-8859-1 when
// the bytes are not valid UTF-8.
func readDelimited(path string) ([][]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	var reader io.Reader
	if utf8.Valid(content) {
		reader = bytes.NewReader(content)
	} else {
		reader = charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(content))
	}

	r := csv.NewReader(reader)
	r.Comma = detectDelimiter(content)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return rows, nil
}

func detectDelimiter(content []byte) rune {
	header := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		header = content[:i]
	}
	if bytes.Count(header, []byte(";")) >= bytes.Count(header, []byte(",")) {
		return ';'
	}
	return ','
}

// ParseRows maps a header row plus data rows into entries. The code column is
// required; every other column may be absent.
func ParseRows(rows [][]string) ([]entities.CatalogEntry, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("catalog source is empty")
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		name = strings.TrimSpace(name)
		if _, exists := columns[name]; !exists {
			columns[name] = i
		}
	}

	if _, ok := columns[ColumnCode]; !ok {
		return nil, fmt.Errorf("catalog source has no %q column", ColumnCode)
	}

	cell := func(row []string, column string) string {
		i, ok := columns[column]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	entries := make([]entities.CatalogEntry, 0, len(rows)-1)
	skippedBlank := 0
	for _, row := range rows[1:] {
		if isBlank(row) {
			skippedBlank++
			continue
		}
		entries = append(entries, entities.NewCatalogEntry(
			cell(row, ColumnCode),
			strings.TrimSpace(cell(row, ColumnLabel)),
			ParseAmount(cell(row, ColumnFonasa)),
			ParseAmount(cell(row, ColumnCopay)),
			ParseAmount(cell(row, ColumnGeneralPrivate)),
			ParseAmount(cell(row, ColumnPreferentialPrivate)),
		))
	}

	if skippedBlank > 0 {
		logging.Debug("Skipped blank catalog rows", "count", skippedBlank)
	}
	return entries, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
