package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures StreamCSV.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // 0 = none
	LazyQuotes bool
	TrimSpace  bool
	// Required columns must all appear in the header row.
	Required []string
	// OnParseError, when set, receives each malformed data row and the row is
	// skipped. When nil a malformed row ends the stream with an error.
	OnParseError func(line int, err error)
}

// Record is one data row addressed by header column name.
type Record struct {
	// Line is the 1-based line number of the row in the input.
	Line   int
	index  map[string]int
	fields []string
}

// Get returns the named column, or "" when the column is absent or the row
// is short.
func (r Record) Get(column string) string {
	i, ok := r.index[column]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

// Fields returns the raw row.
func (r Record) Fields() []string { return r.fields }

// StreamCSV reads a header row and then sends each data row on the record
// channel. A missing required column fails before any row is sent. Both
// channels close when the input is exhausted or an error is reported.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Record, <-chan error) {
	recCh := make(chan Record, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(recCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.Comment = opts.Comment
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		header, err := reader.Read()
		if err == io.EOF {
			errCh <- eris.New("csv: missing header row")
			return
		}
		if err != nil {
			errCh <- eris.Wrap(err, "csv: read header")
			return
		}

		index := make(map[string]int, len(header))
		for i, col := range header {
			col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
			if _, dup := index[col]; !dup {
				index[col] = i
			}
		}
		var missing []string
		for _, col := range opts.Required {
			if _, ok := index[col]; !ok {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			errCh <- eris.Errorf("csv: missing required columns: %s", strings.Join(missing, ", "))
			return
		}

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			fields, err := reader.Read()
			if err == io.EOF {
				return
			}
			var perr *csv.ParseError
			if err != nil && opts.OnParseError != nil && errors.As(err, &perr) {
				opts.OnParseError(perr.StartLine, err)
				continue
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			if opts.TrimSpace {
				for i := range fields {
					fields[i] = strings.TrimSpace(fields[i])
				}
			}
			line, _ := reader.FieldPos(0)

			select {
			case recCh <- Record{Line: line, index: index, fields: fields}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return recCh, errCh
}
