package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// ColumnType is the semantic type inferred for a source column
type ColumnType string

// Inferred column types
const (
	ColumnString  ColumnType = "string"
	ColumnNumber  ColumnType = "number"
	ColumnDate    ColumnType = "date"
	ColumnBoolean ColumnType = "boolean"
)

// Label returns a human-readable label for the type
func (t ColumnType) Label() string {
	switch t {
	case ColumnString:
		return "Text"
	case ColumnNumber:
		return "Number"
	case ColumnDate:
		return "Date"
	case ColumnBoolean:
		return "Boolean"
	default:
		return "Unknown"
	}
}

// Column represents a column from a CSV or Excel file
type Column struct {
	Name         string     `json:"name"`
	Index        int        `json:"index"`
	SampleValues []string   `json:"sampleValues"` // First values retained for display
	InferredType ColumnType `json:"inferredType"`
	NullCount    int        `json:"nullCount"`
}

// File is metadata about an imported CSV or Excel file
type File struct {
	Path      string   `json:"path"`
	FileType  string   `json:"fileType"` // "csv" or "excel"
	TotalRows int      `json:"totalRows"`
	Columns   []Column `json:"columns"`
	Encoding  string   `json:"encoding"`
	SheetName string   `json:"sheetName,omitempty"` // For Excel files
}

// ColumnNames returns the ordered list of column names
func (f *File) ColumnNames() []string {
	names := make([]string, len(f.Columns))
	for i, col := range f.Columns {
		names[i] = col.Name
	}
	return names
}

// ColumnByName returns the column with the given name, or nil
func (f *File) ColumnByName(name string) *Column {
	for i := range f.Columns {
		if f.Columns[i].Name == name {
			return &f.Columns[i]
		}
	}
	return nil
}

// Signature returns a stable hash of the ordered column names, used as the
// key for reloading saved mappings on a similarly-shaped file
func (f *File) Signature() string {
	return Signature(f.ColumnNames())
}

// Signature hashes an ordered list of column names
func Signature(columns []string) string {
	h := sha256.Sum256([]byte(strings.Join(columns, "\x1f")))
	return hex.EncodeToString(h[:16])
}

// RowReader reads data rows one at a time. Next returns nil when the file is
// exhausted.
type RowReader interface {
	Next() (map[string]string, error)
	Close() error
}

// DetectFileType detects "csv" or "excel" from the file extension
func DetectFileType(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv", nil
	case ".xlsx", ".xlsm":
		return "excel", nil
	default:
		return "", fmt.Errorf("unsupported file extension: %s", filepath.Ext(path))
	}
}

// ImportFile imports and analyzes a CSV or Excel file, sampling up to
// sampleSize rows for type inference
func ImportFile(path string, sampleSize int, sheetName string) (*File, error) {
	fileType, err := DetectFileType(path)
	if err != nil {
		return nil, err
	}

	if sampleSize <= 0 {
		sampleSize = 100
	}

	switch fileType {
	case "csv":
		return importCSV(path, sampleSize)
	default:
		return importExcel(path, sampleSize, sheetName)
	}
}

// OpenRows opens a streaming row reader over the file's data rows
func OpenRows(path, sheetName string) (RowReader, error) {
	fileType, err := DetectFileType(path)
	if err != nil {
		return nil, err
	}

	switch fileType {
	case "csv":
		return openCSVRows(path)
	default:
		return openExcelRows(path, sheetName)
	}
}

// Preview returns up to limit data rows without full analysis
func Preview(path, sheetName string, limit int) ([]map[string]string, error) {
	reader, err := OpenRows(path, sheetName)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var rows []map[string]string
	for len(rows) < limit {
		row, err := reader.Next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// buildColumns analyzes sampled rows into column metadata
func buildColumns(header []string, sampled [][]string) []Column {
	const displaySamples = 10

	columns := make([]Column, len(header))
	for idx, name := range header {
		values := make([]string, 0, len(sampled))
		nullCount := 0
		for _, row := range sampled {
			v := ""
			if idx < len(row) {
				v = row[idx]
			}
			values = append(values, v)
			if strings.TrimSpace(v) == "" {
				nullCount++
			}
		}

		display := values
		if len(display) > displaySamples {
			display = display[:displaySamples]
		}

		columns[idx] = Column{
			Name:         name,
			Index:        idx,
			SampleValues: append([]string(nil), display...),
			InferredType: InferType(values),
			NullCount:    nullCount,
		}
	}
	return columns
}
