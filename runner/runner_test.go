package runner

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridoystarlord/casemigrate/pipeline"
)

func TestStepLog(t *testing.T) {
	ok := pipeline.Step{Stage: "load", Domain: pipeline.User, Index: 3, Name: "dm_user -> web_user", Rows: 12, Duration: 1500 * time.Millisecond}
	level, message, details := StepLog(ok)
	assert.Equal(t, "SUCCESS", level)
	assert.Equal(t, "Step completed: load user.3 dm_user -> web_user", message)
	assert.Equal(t, "12 rows in 1.5s", details)
	assert.Equal(t, "success", StepStatus(ok))

	failed := ok
	failed.Stage = "m2m"
	failed.Err = errors.New("duplicate key")
	level, message, details = StepLog(failed)
	assert.Equal(t, "ERROR", level)
	assert.Contains(t, message, "Step failed")
	assert.Equal(t, "duplicate key (resume with --start user-m2m.3)", details)
	assert.Equal(t, "failed", StepStatus(failed))
}

func TestSummarise(t *testing.T) {
	assert.Nil(t, Summarise(nil))

	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sum := Summarise([]RunRecord{
		{RunID: "r1", Command: "import", ExecutedAt: t0.Add(time.Minute), Rows: 10, Status: "success"},
		{RunID: "r1", Command: "import", ExecutedAt: t0, Rows: 5, Status: "success"},
		{RunID: "r1", Command: "import", ExecutedAt: t0.Add(2 * time.Minute), Status: "failed", Resume: "import_application.4"},
	})
	require.NotNil(t, sum)
	assert.Equal(t, "r1", sum.RunID)
	assert.Equal(t, 3, sum.Steps)
	assert.Equal(t, int64(15), sum.Rows)
	assert.Equal(t, t0, sum.StartedAt)
	require.Len(t, sum.Failed, 1)
	assert.Equal(t, "import_application.4", sum.Failed[0].Resume)
}

func TestNewRecorderAssignsRunID(t *testing.T) {
	a := NewRecorder(nil, "import")
	b := NewRecorder(nil, "import")
	assert.NotEmpty(t, a.RunID)
	assert.NotEqual(t, a.RunID, b.RunID)
	assert.NotEmpty(t, a.User)
}
