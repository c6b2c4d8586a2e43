package sheet

import (
	"encoding/csv"
	"fmt"
	"io"

	"protodash/internal/metrics"
)

func ReadCSV(r io.Reader) ([]metrics.RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return ParseRows(rows)
}

func WriteCSV(w io.Writer, ds metrics.Dataset) error {
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(Rows(ds)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
