package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ridoystarlord/casemigrate/logging"
)

// Start is a resume position: the 1-based index of the first descriptor to
// run within Domain. With M2M set the load stage of Domain is skipped and
// Index counts relationship descriptors instead.
type Start struct {
	Domain Domain
	Index  int
	M2M    bool
}

// ParseStart reads "domain.index" or "domain-m2m.index". An empty string
// means no resume position.
func ParseStart(s string) (*Start, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	name, idx, ok := strings.Cut(s, ".")
	if !ok {
		return nil, fmt.Errorf("%w: start %q must look like domain.index", ErrConfig, s)
	}

	start := &Start{}
	if trimmed, found := strings.CutSuffix(name, "-m2m"); found {
		start.M2M = true
		name = trimmed
	}

	d, err := ParseDomain(name)
	if err != nil {
		return nil, err
	}
	start.Domain = d

	start.Index, err = strconv.Atoi(idx)
	if err != nil || start.Index < 1 {
		return nil, fmt.Errorf("%w: start index %q must be a positive integer", ErrConfig, idx)
	}
	return start, nil
}

func (s *Start) String() string {
	if s == nil {
		return ""
	}
	name := s.Domain.String()
	if s.M2M {
		name += "-m2m"
	}
	return fmt.Sprintf("%s.%d", name, s.Index)
}

// Options select what a run covers.
type Options struct {
	Skip      map[Domain]bool
	SkipXML   bool
	SkipM2M   bool
	SkipTasks bool
	Start     *Start
}

// Step describes one finished descriptor run.
type Step struct {
	Stage    string
	Domain   Domain
	Index    int
	Name     string
	Rows     int64
	Duration time.Duration
	Err      error
}

// StepRecorder receives every finished step.
type StepRecorder interface {
	RecordStep(ctx context.Context, step Step) error
}

// Controller walks the domains in order and runs their descriptors.
type Controller struct {
	Engine   *Engine
	Plans    Plans
	Recorder StepRecorder
	Log      zerolog.Logger
}

func NewController(engine *Engine, plans Plans, log zerolog.Logger) *Controller {
	return &Controller{Engine: engine, Plans: plans, Log: log}
}

// resume tracks the remembered start position across domains. Domains before
// the start domain are skipped; the start domain is sliced at the start
// index; everything after runs in full.
type resume struct {
	start *Start
}

// enter reports whether d runs at all and the offset of its first
// descriptor. m2m reports whether the load stage of d is skipped.
func (r *resume) enter(d Domain) (run bool, offset int, m2m bool) {
	if r.start == nil {
		return true, 1, false
	}
	if r.start.Domain != d {
		return false, 0, false
	}
	offset, m2m = r.start.Index, r.start.M2M
	r.start = nil
	return true, offset, m2m
}

func sliceFrom[T any](list []T, offset int) []T {
	if offset <= 1 {
		return list
	}
	if offset > len(list) {
		return nil
	}
	return list[offset-1:]
}

// Export runs extraction for every domain.
func (c *Controller) Export(ctx context.Context, opts Options) error {
	timer := logging.NewTimer(c.Log)
	r := &resume{start: opts.Start}

	for _, d := range Domains {
		run, offset, _ := r.enter(d)
		if !run {
			c.Log.Info().Str("domain", d.String()).Msg("before start position, skipping export")
			continue
		}
		if opts.Skip[d] {
			c.Log.Info().Str("domain", d.String()).Msg("skipping export")
			continue
		}

		c.Log.Info().Str("domain", d.String()).Msg("exporting")
		for i, q := range sliceFrom(c.Plans[d].Queries, offset) {
			err := c.step(ctx, timer, "export", d, offset+i, q.Name, func() (int64, error) {
				return c.Engine.Extract(ctx, q)
			})
			if err != nil {
				return err
			}
		}
	}

	c.Log.Info().Dur("elapsed", timer.Total().Round(time.Millisecond)).Msg("export complete")
	return nil
}

// Import runs, per domain, XML normalization, transform and load, the
// relationship stage, backfills and task derivation.
func (c *Controller) Import(ctx context.Context, opts Options) error {
	timer := logging.NewTimer(c.Log)
	r := &resume{start: opts.Start}

	for _, d := range Domains {
		run, offset, m2m := r.enter(d)
		if !run {
			c.Log.Info().Str("domain", d.String()).Msg("before start position, skipping import")
			continue
		}
		if opts.Skip[d] {
			c.Log.Info().Str("domain", d.String()).Msg("skipping import")
			continue
		}
		plan := c.Plans[d]
		c.Log.Info().Str("domain", d.String()).Msg("importing")

		// XML output is staging data; resuming past the first load would
		// write it twice.
		if !opts.SkipXML && offset == 1 && !m2m {
			for i, p := range plan.Parsers {
				err := c.step(ctx, timer, "xml", d, i+1, p.Name, func() (int64, error) {
					return c.Engine.RunParser(ctx, p)
				})
				if err != nil {
					return err
				}
			}
		}

		relOffset := 1
		if m2m {
			relOffset = offset
		} else {
			for i, st := range sliceFrom(plan.Loads, offset) {
				err := c.step(ctx, timer, "load", d, offset+i, st.Name(), func() (int64, error) {
					return c.Engine.Load(ctx, st)
				})
				if err != nil {
					return err
				}
			}
		}

		if !opts.SkipM2M {
			for i, rel := range sliceFrom(plan.Relations, relOffset) {
				err := c.step(ctx, timer, "m2m", d, relOffset+i, rel.Name(), func() (int64, error) {
					return c.Engine.Relate(ctx, rel)
				})
				if err != nil {
					return err
				}
			}
		}

		for i, b := range plan.Backfills {
			err := c.step(ctx, timer, "backfill", d, i+1, b.Name, func() (int64, error) {
				return c.Engine.Backfill(ctx, b)
			})
			if err != nil {
				return err
			}
		}

		if !opts.SkipTasks {
			for i, t := range plan.Tasks {
				err := c.step(ctx, timer, "tasks", d, i+1, t.Name, func() (int64, error) {
					return c.Engine.DeriveTasks(ctx, t)
				})
				if err != nil {
					return err
				}
			}
		}
	}

	c.Log.Info().Dur("elapsed", timer.Total().Round(time.Millisecond)).Msg("import complete")
	return nil
}

func (c *Controller) step(ctx context.Context, timer *logging.Timer, stage string, d Domain, index int, name string, fn func() (int64, error)) error {
	c.Log.Info().
		Str("stage", stage).
		Str("domain", d.String()).
		Int("index", index).
		Str("name", name).
		Msg("running")

	started := time.Now()
	rows, err := fn()
	step := Step{
		Stage:    stage,
		Domain:   d,
		Index:    index,
		Name:     name,
		Rows:     rows,
		Duration: time.Since(started),
		Err:      err,
	}

	if c.Recorder != nil {
		if recErr := c.Recorder.RecordStep(ctx, step); recErr != nil {
			c.Log.Warn().Err(recErr).Str("name", name).Msg("could not record step")
		}
	}
	if err != nil {
		c.Log.Error().Err(err).
			Str("stage", stage).
			Str("domain", d.String()).
			Int("index", index).
			Str("resume", step.Resume()).
			Msg("step failed")
		return err
	}

	c.Log.Info().Int64("rows", rows).Str("name", name).Msg("done")
	timer.Step(name)
	return nil
}

// Resume is the start position that re-runs the step.
func (s Step) Resume() string {
	switch s.Stage {
	case "export", "load":
		return (&Start{Domain: s.Domain, Index: s.Index}).String()
	case "m2m":
		return (&Start{Domain: s.Domain, Index: s.Index, M2M: true}).String()
	}
	return (&Start{Domain: s.Domain, Index: 1}).String()
}
