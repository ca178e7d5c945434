package readers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/docker/go-units"
	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"

	"github.com/ChamsBouzaiene/rferag/internal/engine"
	"github.com/ChamsBouzaiene/rferag/internal/prompts"
)

// DefaultPreviewRows is how many rows a data preview shows.
const DefaultPreviewRows = 20

// DataReader shows the model a preview of a tabular file: columns, row count,
// the first rows and the file size.
type DataReader struct {
	Agent
	PreviewRows int // <= 0: DefaultPreviewRows
}

// tablePreview is a preview of one table (a csv file, a sheet, a parquet file).
type tablePreview struct {
	Name    string // sheet name; empty for single-table formats
	Columns []string
	NumRows int64 // data rows, header excluded
	Rows    [][]string
}

// Read implements engine.Reader.
func (r *DataReader) Read(ctx context.Context, subPrompt, filePath string, st *engine.State) (string, error) {
	preview, err := PreviewData(filePath, r.previewRows())
	if err != nil {
		return "", err
	}
	vars := baseVars(subPrompt, filePath, st)
	vars["data_preview"] = preview
	return r.ask(ctx, prompts.ContextFromDataframe, vars)
}

func (r *DataReader) previewRows() int {
	if r.PreviewRows <= 0 {
		return DefaultPreviewRows
	}
	return r.PreviewRows
}

// PreviewData renders a text preview of a csv, xlsx or parquet file.
func PreviewData(filePath string, rows int) (string, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return "", fmt.Errorf("stat data file: %w", err)
	}

	var tables []tablePreview
	switch ext := Extension(filePath); ext {
	case "csv":
		tables, err = previewCSV(filePath, rows)
	case "xlsx":
		tables, err = previewXLSX(filePath, rows)
	case "parquet":
		tables, err = previewParquet(filePath, info.Size(), rows)
	default:
		return "", fmt.Errorf("unsupported data file type: %s", ext)
	}
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "File size: %s\n", units.HumanSize(float64(info.Size())))
	for _, t := range tables {
		b.WriteString("\n")
		writeTablePreview(&b, t)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func writeTablePreview(b *strings.Builder, t tablePreview) {
	if t.Name != "" {
		fmt.Fprintf(b, "Sheet: %s\n", t.Name)
	}
	fmt.Fprintf(b, "Columns (%d): %s\n", len(t.Columns), strings.Join(t.Columns, ", "))
	fmt.Fprintf(b, "Rows: %d\n", t.NumRows)
	if len(t.Rows) == 0 {
		return
	}
	fmt.Fprintf(b, "First %d rows:\n", len(t.Rows))

	w := csv.NewWriter(b)
	_ = w.Write(t.Columns)
	_ = w.WriteAll(t.Rows) // WriteAll flushes
}

func previewCSV(filePath string, limit int) ([]tablePreview, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var t tablePreview
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []tablePreview{t}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	t.Columns = header

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", t.NumRows+1, err)
		}
		if len(t.Rows) < limit {
			t.Rows = append(t.Rows, rec)
		}
		t.NumRows++
	}
	return []tablePreview{t}, nil
}

func previewXLSX(filePath string, limit int) ([]tablePreview, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var tables []tablePreview
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		t := tablePreview{Name: sheet}
		if len(rows) > 0 {
			t.Columns = rows[0]
			data := rows[1:]
			t.NumRows = int64(len(data))
			if len(data) > limit {
				data = data[:limit]
			}
			t.Rows = data
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func previewParquet(filePath string, size int64, limit int) ([]tablePreview, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer f.Close()

	pf, err := parquet.OpenFile(f, size)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}

	var t tablePreview
	for _, path := range pf.Schema().Columns() {
		t.Columns = append(t.Columns, strings.Join(path, "."))
	}
	t.NumRows = pf.NumRows()

	buf := make([]parquet.Row, limit)
	for _, rg := range pf.RowGroups() {
		if len(t.Rows) >= limit {
			break
		}
		rows, err := readRowGroup(rg, buf[:limit-len(t.Rows)], len(t.Columns))
		if err != nil {
			return nil, err
		}
		t.Rows = append(t.Rows, rows...)
	}
	return []tablePreview{t}, nil
}

// readRowGroup reads up to len(buf) rows, rendering values by leaf column.
func readRowGroup(rg parquet.RowGroup, buf []parquet.Row, width int) ([][]string, error) {
	rows := rg.Rows()
	defer rows.Close()

	var out [][]string
	for len(out) < len(buf) {
		n, err := rows.ReadRows(buf[:len(buf)-len(out)])
		for _, row := range buf[:n] {
			rec := make([]string, width)
			for _, v := range row {
				if c := v.Column(); c >= 0 && c < width && !v.IsNull() {
					if rec[c] != "" {
						rec[c] += ";"
					}
					rec[c] += v.String()
				}
			}
			out = append(out, rec)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return out, nil
}
