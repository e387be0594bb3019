// Package facts loads the county fact table. Rows keep their raw cells;
// numeric parsing happens per cell at join time so one bad value never
// rejects a row.
package facts

import (
	"context"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/config"
	"github.com/sells-group/choropleth/internal/fetcher"
	"github.com/sells-group/choropleth/internal/model"
)

// DefaultKeyColumn is the county-name column of the shipped table.
const DefaultKeyColumn = "California_County"

// Options configures header resolution and parsing.
type Options struct {
	KeyColumn string
	Delimiter rune
	Sheet     string // XLSX only; empty = first sheet
}

func (o Options) keyColumn() string {
	if o.KeyColumn == "" {
		return DefaultKeyColumn
	}
	return o.KeyColumn
}

// Load opens the configured source and parses it as CSV or XLSX, chosen by
// Format or by extension.
func Load(ctx context.Context, opener *fetcher.Opener, src config.FactsSource) ([]model.FactRow, error) {
	start := time.Now()
	opts := Options{KeyColumn: src.KeyColumn, Sheet: src.Sheet}
	if r, _ := utf8.DecodeRuneInString(src.Delimiter); r != utf8.RuneError {
		opts.Delimiter = r
	}

	rc, err := opener.Open(ctx, src.Location)
	if err != nil {
		return nil, eris.Wrap(err, "facts: open")
	}
	defer rc.Close() //nolint:errcheck

	format := strings.ToLower(src.Format)
	if format == "" {
		switch fetcher.Ext(src.Location) {
		case ".xlsx":
			format = "xlsx"
		case ".tsv":
			format = "csv"
			if src.Delimiter == "" || src.Delimiter == "," {
				opts.Delimiter = '\t'
			}
		default:
			format = "csv"
		}
	}

	var rows []model.FactRow
	switch format {
	case "csv":
		rows, err = LoadCSV(ctx, rc, opts)
	case "xlsx":
		rows, err = LoadXLSX(rc, opts)
	default:
		return nil, eris.Errorf("facts: unsupported format %q", src.Format)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Debug("fact table loaded",
		zap.String("component", "facts"),
		zap.String("location", src.Location),
		zap.String("format", format),
		zap.Int("rows", len(rows)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rows, nil
}

// LoadCSV parses a delimited table with a header row.
func LoadCSV(ctx context.Context, r io.Reader, opts Options) ([]model.FactRow, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		Delimiter: opts.Delimiter,
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var raw [][]string
	for row := range rowCh {
		raw = append(raw, row)
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrap(err, "facts: read csv")
		}
	}

	var header []string
	select {
	case header = <-headerCh:
	default:
		return nil, eris.New("facts: table has no header row")
	}

	return buildRows(header, raw, opts)
}

// LoadXLSX parses the first (or named) worksheet; its first row is the header.
func LoadXLSX(r io.Reader, opts Options) ([]model.FactRow, error) {
	rows, err := fetcher.ReadXLSX(r, fetcher.XLSXOptions{SheetName: opts.Sheet})
	if err != nil {
		return nil, eris.Wrap(err, "facts: read xlsx")
	}
	if len(rows) == 0 {
		return nil, eris.New("facts: table has no header row")
	}
	for _, row := range rows {
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
	}
	return buildRows(rows[0], rows[1:], opts)
}

// buildRows resolves the key and attribute columns by exact header name.
func buildRows(header []string, raw [][]string, opts Options) ([]model.FactRow, error) {
	log := zap.L().With(zap.String("component", "facts"))

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}

	keyCol := opts.keyColumn()
	keyIdx, ok := cols[keyCol]
	if !ok {
		return nil, eris.Errorf("facts: key column %q not found in header %v", keyCol, header)
	}

	attrIdx := make(map[model.AttributeName]int, len(model.Attributes()))
	for _, attr := range model.Attributes() {
		idx, ok := cols[string(attr)]
		if !ok {
			log.Warn("attribute column missing; values will be absent", zap.String("attribute", string(attr)))
			continue
		}
		attrIdx[attr] = idx
	}

	rows := make([]model.FactRow, 0, len(raw))
	var skipped int
	for n, cells := range raw {
		if keyIdx >= len(cells) || cells[keyIdx] == "" {
			skipped++
			log.Debug("skipping row without key", zap.Int("row", n+2))
			continue
		}
		row := model.FactRow{Key: cells[keyIdx], Values: make(map[model.AttributeName]string, len(attrIdx))}
		for attr, idx := range attrIdx {
			if idx < len(cells) {
				row.Values[attr] = cells[idx]
			}
		}
		rows = append(rows, row)
	}
	if skipped > 0 {
		log.Debug("rows skipped", zap.Int("count", skipped))
	}
	return rows, nil
}
