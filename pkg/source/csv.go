package source

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeCSVBytes decodes raw file content, falling back from UTF-8 to Latin-1
// for files exported by older spreadsheet tools. Returns the decoded content
// and the encoding name.
func decodeCSVBytes(data []byte) ([]byte, string, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		return data[len(utf8BOM):], "utf-8-sig", nil
	}
	if utf8.Valid(data) {
		return data, "utf-8", nil
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, "", fmt.Errorf("unable to decode file with supported encodings: %w", err)
	}
	return decoded, "latin-1", nil
}

// importCSV imports a CSV file, sampling rows for type inference
func importCSV(path string, sampleSize int) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading CSV file: %w", err)
	}

	decoded, encoding, err := decodeCSVBytes(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1 // Tolerate ragged rows; short rows read as empty cells

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV file has no headers")
	}
	if err != nil {
		return nil, fmt.Errorf("error reading CSV header: %w", err)
	}

	var sampled [][]string
	totalRows := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV row %d: %w", totalRows+2, err)
		}
		totalRows++
		if len(sampled) < sampleSize {
			sampled = append(sampled, row)
		}
	}

	return &File{
		Path:      path,
		FileType:  "csv",
		TotalRows: totalRows,
		Columns:   buildColumns(header, sampled),
		Encoding:  encoding,
	}, nil
}

// csvRowReader streams data rows from a decoded CSV
type csvRowReader struct {
	reader *csv.Reader
	header []string
}

// openCSVRows opens a streaming reader over a CSV file's data rows
func openCSVRows(path string) (RowReader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading CSV file: %w", err)
	}

	decoded, _, err := decodeCSVBytes(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV file has no headers")
	}
	if err != nil {
		return nil, fmt.Errorf("error reading CSV header: %w", err)
	}

	return &csvRowReader{reader: reader, header: header}, nil
}

// Next returns the next data row keyed by column name, or nil at end of file
func (r *csvRowReader) Next() (map[string]string, error) {
	record, err := r.reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading CSV row: %w", err)
	}

	row := make(map[string]string, len(r.header))
	for i, name := range r.header {
		if i < len(record) {
			row[name] = record[i]
		} else {
			row[name] = ""
		}
	}
	return row, nil
}

// Close releases the reader. The underlying buffer needs no cleanup.
func (r *csvRowReader) Close() error {
	return nil
}
