// Package sheet imports protocol exports from CSV/XLSX spreadsheets and writes
// datasets back in the same column layout.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"protodash/internal/metrics"
)

const (
	ColProtocol  = "Protocolo"
	ColUser      = "Usuário"
	ColStatus    = "Status"
	ColDuration  = "Tempo de Análise"
	ColScheduled = "Próximo"
	ColPortfolio = "Carteira"
)

var (
	ErrMissingColumn     = errors.New("missing required column")
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
)

// Columns is the export column order.
var Columns = []string{ColProtocol, ColUser, ColStatus, ColDuration, ColScheduled, ColPortfolio}

var requiredColumns = []string{ColProtocol, ColUser, ColStatus, ColDuration, ColScheduled}

var accentReplacer = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
)

func headerKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = accentReplacer.Replace(strings.ToLower(strings.TrimSpace(h)))
	return strings.Join(strings.Fields(h), " ")
}

// ParseRows maps a header row plus data rows onto RawRows. Unknown columns
// are ignored and fully blank rows are skipped.
func ParseRows(rows [][]string) ([]metrics.RawRow, error) {
	return parseRows(rows, nil)
}

// cellHook may replace the text of the cell at rows[row][col] with a typed
// value read from the source spreadsheet.
type cellHook func(row, col int, name, text string) any

func parseRows(rows [][]string, hook cellHook) ([]metrics.RawRow, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet is empty", ErrMissingColumn)
	}

	index := make(map[string]int)
	for i, h := range rows[0] {
		key := headerKey(h)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[headerKey(col)]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	out := make([]metrics.RawRow, 0, len(rows)-1)
	for n, row := range rows {
		if n == 0 || blankRow(row) {
			continue
		}
		cell := func(col string) any {
			i, ok := index[headerKey(col)]
			if !ok || i >= len(row) {
				return nil
			}
			if hook != nil {
				return hook(n, i, col, row[i])
			}
			return row[i]
		}
		out = append(out, metrics.RawRow{
			Protocol:         cell(ColProtocol),
			User:             cell(ColUser),
			Status:           cell(ColStatus),
			AnalysisDuration: cell(ColDuration),
			ScheduledAt:      cell(ColScheduled),
			Portfolio:        cell(ColPortfolio),
		})
	}
	return out, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Rows renders ds as a header row followed by one row per record. Durations
// are written as H:MM:SS so they parse back through metrics.ParseDuration.
func Rows(ds metrics.Dataset) [][]string {
	out := make([][]string, 0, len(ds)+1)
	out = append(out, append([]string(nil), Columns...))
	for _, r := range ds {
		var dur, at string
		if r.AnalysisDuration != nil {
			dur = metrics.FormatClock(*r.AnalysisDuration)
		}
		if r.ScheduledAt != nil {
			at = metrics.FormatTimestamp(*r.ScheduledAt)
		}
		out = append(out, []string{r.Protocol, r.User, string(r.Status), dur, at, r.Portfolio})
	}
	return out
}

func ReadFile(path string) ([]metrics.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(f)
	case ".xlsx", ".xlsm":
		return ReadXLSX(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ReadFiles parses several uploads concurrently and returns their rows
// concatenated in argument order.
func ReadFiles(ctx context.Context, paths []string) ([]metrics.RawRow, error) {
	results := make([][]metrics.RawRow, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows, err := ReadFile(path)
			if err != nil {
				return fmt.Errorf("import %s: %w", path, err)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []metrics.RawRow
	for _, rows := range results {
		out = append(out, rows...)
	}
	return out, nil
}

func WriteFile(path string, ds metrics.Dataset) error {
	var write func(io.Writer, metrics.Dataset) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		write = WriteCSV
	case ".xlsx":
		write = WriteXLSX
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = write(f, ds)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}
