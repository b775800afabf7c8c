package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ridoystarlord/casemigrate/format"
	"github.com/ridoystarlord/casemigrate/source"
	"github.com/ridoystarlord/casemigrate/xmlparser"
)

// RunParser normalizes the XML documents of one parser into its staging
// tables and returns the number of records written. A document that fails
// to parse is left out and the rest of its page is still written; the
// failures are returned together once every page has been committed.
func (e *Engine) RunParser(ctx context.Context, p xmlparser.Parser) (int64, error) {
	var keys xmlparser.KeySource
	if a := e.Keys[ProcessKeySpace]; a != nil {
		keys = a
	}

	var (
		total     int64
		malformed []error
	)
	err := source.Drain(ctx, e.Store, p.Query(), e.batchSize(), func(rows []source.Row) error {
		page := xmlparser.NewBatch(ctx, keys)
		scratch := xmlparser.NewBatch(ctx, keys)

		for _, row := range rows {
			in, ok := p.InputOf(row)
			if !ok {
				continue
			}
			scratch.Reset()
			if err := p.Parse(scratch, in); err != nil {
				if !errors.Is(err, xmlparser.ErrMalformedDocument) {
					return err
				}
				e.Log.Warn().Err(err).Str("parser", p.Name).Int64("key", in.Key).Msg("document skipped")
				malformed = append(malformed, err)
				continue
			}
			page.Merge(scratch)
		}

		for _, table := range page.Tables() {
			n, err := e.insertRecords(ctx, table, format.KeyColumn, page.Records(table))
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("parse %s: %w", p.Name, err)
	}
	return total, errors.Join(malformed...)
}
