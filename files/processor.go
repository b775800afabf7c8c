package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/go-units"
	"github.com/rs/zerolog"

	"github.com/ridoystarlord/casemigrate/generator"
	"github.com/ridoystarlord/casemigrate/logging"
	"github.com/ridoystarlord/casemigrate/pipeline"
	"github.com/ridoystarlord/casemigrate/source"
	"github.com/ridoystarlord/casemigrate/storage"
)

const (
	DefaultRunBatchSize = 100
	DefaultPageSize     = 10000
)

// Columns every file query returns.
const (
	ColumnPath     = "path"
	ColumnBlob     = "blob_data"
	ColumnFileSize = "file_size"
)

type Options struct {
	// Limit caps the rows fetched per query; 0 means no cap.
	Limit int
	// IgnoreLastRun rescans from the query's default parameters.
	IgnoreLastRun bool
	// CountOnly reports counts and sizes without uploading.
	CountOnly bool
	// RunBatchSize is the checkpoint cadence in items.
	RunBatchSize int64
	// PageSize is the legacy cursor fetch size.
	PageSize int
	// Prefix is prepended to every object path as a folder.
	Prefix string
	// Overrides are merged over each query's default parameters.
	Overrides map[string]map[string]any
}

// Processor uploads the blobs selected by file queries.
type Processor struct {
	Legacy  source.Source
	Objects storage.Storage
	Opts    Options
	Log     zerolog.Logger
	// Out receives the operator report.
	Out io.Writer
	Now func() time.Time
}

func NewProcessor(legacy source.Source, objects storage.Storage, opts Options, log zerolog.Logger, out io.Writer) *Processor {
	if opts.RunBatchSize < 1 {
		opts.RunBatchSize = DefaultRunBatchSize
	}
	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}
	return &Processor{Legacy: legacy, Objects: objects, Opts: opts, Log: log, Out: out, Now: time.Now}
}

// QueryResult summarises one query of a run.
type QueryResult struct {
	Name      string
	Count     int64
	Size      int64
	Processed int64
}

// Summary totals a run.
type Summary struct {
	Queries []QueryResult
	Count   int64
	Size    int64
}

// Run counts then uploads each query in order, stopping at the first error.
func (p *Processor) Run(ctx context.Context, queries []pipeline.QueryDescriptor) (Summary, error) {
	var sum Summary
	timer := logging.NewTimer(p.Log)

	for _, q := range queries {
		params, err := p.parameters(ctx, q)
		if err != nil {
			return sum, err
		}

		count, size, err := p.Count(ctx, q, params)
		if err != nil {
			return sum, err
		}
		res := QueryResult{Name: q.Name, Count: count, Size: size}
		sum.Count += count
		sum.Size += size
		p.printf("%s: %d files (%s)\n", q.Name, count, PrettySize(size))

		if !p.Opts.CountOnly && count > 0 {
			cp, err := p.upload(ctx, q, params, count)
			res.Processed = cp.Processed
			sum.Queries = append(sum.Queries, res)
			if err != nil {
				return sum, err
			}
			timer.Step(q.Name)
			continue
		}
		sum.Queries = append(sum.Queries, res)
	}

	p.printf("\nTotal number of files to be uploaded: %d (%s)\n", sum.Count, PrettySize(sum.Size))
	return sum, nil
}

// Count returns the number of rows q selects and the sum of their sizes.
func (p *Processor) Count(ctx context.Context, q pipeline.QueryDescriptor, params map[string]any) (count, size int64, err error) {
	cq := source.Query{Name: CountQueryName(q.Name), SQL: generator.WithCount(q.SQL), Args: params}
	var rows []source.Row
	err = source.Drain(ctx, p.Legacy, cq, 1, func(page []source.Row) error {
		rows = append(rows, page...)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("count %s: %w", q.Name, err)
	}
	if len(rows) == 0 {
		return 0, 0, nil
	}
	count, _ = rows[0].Int64("count")
	size, _ = rows[0].Int64(ColumnFileSize)
	return count, size, nil
}

// CountQueryName names the count query issued for a file query.
func CountQueryName(name string) string {
	return name + " (count)"
}

// parameters binds q's defaults, operator overrides and, unless ignored, the
// limit-by value of the last checkpoint.
func (p *Processor) parameters(ctx context.Context, q pipeline.QueryDescriptor) (map[string]any, error) {
	params := q.Query(p.Opts.Overrides[q.Name]).Args
	if p.Opts.IgnoreLastRun {
		return params, nil
	}
	cp, found, err := ReadCheckpoint(ctx, p.Objects, q.Name)
	if err != nil {
		return nil, err
	}
	if v, ok := cp.LastValue(); found && ok {
		p.Log.Info().Str("query", q.Name).Interface("after", v).Msg("resuming from checkpoint")
	}
	return resumeParameters(params, q.LimitBy, cp, found), nil
}

func (p *Processor) upload(ctx context.Context, q pipeline.QueryDescriptor, params map[string]any, count int64) (Checkpoint, error) {
	total := count
	if p.Opts.Limit > 0 && int64(p.Opts.Limit) < total {
		total = int64(p.Opts.Limit)
	}

	cp := Checkpoint{
		QueryName:     q.Name,
		FilePrefix:    p.Opts.Prefix,
		ToBeProcessed: total,
		StartedAt:     p.Now().Format(TimeLayout),
		LimitBy:       q.LimitBy,
		Parameters:    resumeParameters(params, "", Checkpoint{}, false),
	}
	var written int64

	sel := source.Query{
		Name: q.Name,
		SQL:  generator.WithSelect(generator.WithLimit(q.SQL, p.Opts.Limit)),
		Args: params,
	}
	err := source.Drain(ctx, p.Legacy, sel, p.Opts.PageSize, func(page []source.Row) error {
		for _, row := range page {
			path := row.String(ColumnPath)
			if path == "" {
				return fmt.Errorf("%s: row %d has no %s", q.Name, cp.Processed+1, ColumnPath)
			}
			body := blob(row)
			size, ok := row.Int64(ColumnFileSize)
			if !ok {
				size = int64(len(body))
			}
			if err := storage.Upload(ctx, p.Objects, storage.JoinPrefix(p.Opts.Prefix, path), body, size); err != nil {
				return fmt.Errorf("upload %s: %w", path, err)
			}

			cp.Processed++
			if q.LimitBy != "" {
				if v, ok := row.Get(q.LimitBy); ok {
					cp.Parameters[q.LimitBy] = limitValue(v)
				}
			}
			if ShouldCheckpoint(cp.Processed, total, p.Opts.RunBatchSize) {
				if cp.Processed == total {
					cp.FinishedAt = p.Now().Format(TimeLayout)
				}
				if err := WriteCheckpoint(ctx, p.Objects, cp); err != nil {
					return err
				}
				written = cp.Processed
			}
		}
		p.Log.Debug().Str("query", q.Name).Int64("processed", cp.Processed).Int64("total", total).Msg("page uploaded")
		return nil
	})
	if err != nil {
		return cp, err
	}

	// The stream may end short of the counted total.
	if cp.Processed > 0 && written != cp.Processed {
		cp.FinishedAt = p.Now().Format(TimeLayout)
		if err := WriteCheckpoint(ctx, p.Objects, cp); err != nil {
			return cp, err
		}
	}
	p.Log.Info().Str("query", q.Name).Int64("processed", cp.Processed).Msg("files uploaded")
	return cp, nil
}

func (p *Processor) printf(format string, args ...any) {
	if p.Out != nil {
		fmt.Fprintf(p.Out, format, args...)
	}
}

func blob(row source.Row) []byte {
	v, _ := row.Get(ColumnBlob)
	switch b := v.(type) {
	case []byte:
		return b
	case string:
		return []byte(b)
	}
	return nil
}

func limitValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Format(TimeLayout)
	}
	return v
}

// PrettySize renders a byte count with binary units.
func PrettySize(n int64) string {
	return units.BytesSize(float64(n))
}

// ErrUnknownQuery is returned by SelectQueries for names that are neither a
// query nor a group.
var ErrUnknownQuery = errors.New("unknown file query")
