package logging

import (
	"time"

	"github.com/rs/zerolog"
)

// Timer tracks the elapsed time of a whole run and of the current step.
type Timer struct {
	log   zerolog.Logger
	start time.Time
	step  time.Time
	now   func() time.Time
}

func NewTimer(log zerolog.Logger) *Timer {
	t := &Timer{log: log, now: time.Now}
	t.start = t.now()
	t.step = t.start
	return t
}

// Step logs the time since the previous step and the total run time, then
// starts a new step.
func (t *Timer) Step(name string) time.Duration {
	now := t.now()
	elapsed := now.Sub(t.step)
	t.log.Info().
		Str("step", name).
		Dur("step_elapsed", elapsed.Round(time.Millisecond)).
		Dur("run_elapsed", now.Sub(t.start).Round(time.Millisecond)).
		Msg("step complete")
	t.step = now
	return elapsed
}

// Total returns the time since the timer was created.
func (t *Timer) Total() time.Duration {
	return t.now().Sub(t.start)
}
