package files

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridoystarlord/casemigrate/logging"
	"github.com/ridoystarlord/casemigrate/memstore"
	"github.com/ridoystarlord/casemigrate/pipeline"
	"github.com/ridoystarlord/casemigrate/source"
	"github.com/ridoystarlord/casemigrate/storage"
)

var fileQuery = pipeline.QueryDescriptor{
	Name:       "Case Note Files",
	SQL:        "SELECT path, blob_data, file_size, created_datetime FROM files WHERE created_datetime > @created_datetime",
	Parameters: map[string]any{"created_datetime": "2013-01-01 01:00:00", "folder_type": "CASE_NOTE"},
	LimitBy:    "created_datetime",
}

func fileRow(i int, size int64) source.Row {
	return source.RowOf(
		"PATH", "case_note/"+string(rune('a'+i))+".pdf",
		"BLOB_DATA", []byte{byte(i)},
		"FILE_SIZE", size,
		"CREATED_DATETIME", time.Date(2020, 1, i+1, 9, 30, 0, 0, time.UTC),
	)
}

func scriptedLegacy(rows ...source.Row) (*memstore.Store, *[]source.Query) {
	var selects []source.Query
	legacy := memstore.New().
		ScriptFunc(CountQueryName(fileQuery.Name), func(source.Query) []source.Row {
			var size int64
			for _, r := range rows {
				n, _ := r.Int64("file_size")
				size += n
			}
			return []source.Row{source.RowOf("COUNT", int64(len(rows)), "FILE_SIZE", size)}
		}).
		ScriptFunc(fileQuery.Name, func(q source.Query) []source.Row {
			selects = append(selects, q)
			return rows
		})
	return legacy, &selects
}

func newProcessor(legacy source.Source, objects storage.Storage, opts Options) (*Processor, *bytes.Buffer) {
	out := &bytes.Buffer{}
	p := NewProcessor(legacy, objects, opts, logging.Nop(), out)
	p.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return p, out
}

func TestShouldCheckpoint(t *testing.T) {
	var due []int64
	for i := int64(0); i <= 7; i++ {
		if ShouldCheckpoint(i, 7, 3) {
			due = append(due, i)
		}
	}
	assert.Equal(t, []int64{3, 6, 7}, due)

	assert.False(t, ShouldCheckpoint(0, 0, 3))
	assert.True(t, ShouldCheckpoint(1, 1, 100))
	assert.True(t, ShouldCheckpoint(4, 8, 2))
	assert.False(t, ShouldCheckpoint(5, 8, 2))
}

func TestRunUploadsAndCheckpoints(t *testing.T) {
	var rows []source.Row
	for i := range 5 {
		rows = append(rows, fileRow(i, 10))
	}
	legacy, _ := scriptedLegacy(rows...)
	objects := memstore.NewObjects()

	p, out := newProcessor(legacy, objects, Options{RunBatchSize: 2, PageSize: 2})
	sum, err := p.Run(context.Background(), []pipeline.QueryDescriptor{fileQuery})
	require.NoError(t, err)

	assert.Equal(t, int64(5), sum.Count)
	assert.Equal(t, int64(50), sum.Size)
	require.Len(t, sum.Queries, 1)
	assert.Equal(t, int64(5), sum.Queries[0].Processed)

	for i := range 5 {
		data, err := objects.Get(context.Background(), "case_note/"+string(rune('a'+i))+".pdf")
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(i)}, data)
	}
	assert.Equal(t, 3, objects.PutCount(CheckpointKey(fileQuery.Name)))

	cp, found, err := ReadCheckpoint(context.Background(), objects, fileQuery.Name)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(5), cp.Processed)
	assert.Equal(t, int64(5), cp.ToBeProcessed)
	assert.Equal(t, "2024-05-01 12:00:00", cp.FinishedAt)
	assert.Equal(t, "2020-01-05 09:30:00", cp.Parameters["created_datetime"])
	assert.Equal(t, "CASE_NOTE", cp.Parameters["folder_type"])

	assert.Contains(t, out.String(), "Case Note Files: 5 files (50B)")
	assert.Contains(t, out.String(), "Total number of files to be uploaded: 5")
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	legacy, selects := scriptedLegacy(fileRow(0, 10))
	objects := memstore.NewObjects()
	require.NoError(t, WriteCheckpoint(context.Background(), objects, Checkpoint{
		QueryName:  fileQuery.Name,
		LimitBy:    "created_datetime",
		Processed:  40,
		Parameters: map[string]any{"created_datetime": "2019-12-31 23:00:00", "folder_type": "CASE_NOTE"},
	}))

	p, _ := newProcessor(legacy, objects, Options{})
	_, err := p.Run(context.Background(), []pipeline.QueryDescriptor{fileQuery})
	require.NoError(t, err)

	require.Len(t, *selects, 1)
	args := (*selects)[0].Args
	assert.Equal(t, "2019-12-31 23:00:00", args["created_datetime"])
	assert.Equal(t, "CASE_NOTE", args["folder_type"])
}

func TestRunIgnoreLastRunUsesDefaults(t *testing.T) {
	legacy, selects := scriptedLegacy(fileRow(0, 10))
	objects := memstore.NewObjects()
	require.NoError(t, WriteCheckpoint(context.Background(), objects, Checkpoint{
		QueryName:  fileQuery.Name,
		LimitBy:    "created_datetime",
		Parameters: map[string]any{"created_datetime": "2019-12-31 23:00:00"},
	}))

	p, _ := newProcessor(legacy, objects, Options{IgnoreLastRun: true})
	_, err := p.Run(context.Background(), []pipeline.QueryDescriptor{fileQuery})
	require.NoError(t, err)

	require.Len(t, *selects, 1)
	assert.Equal(t, "2013-01-01 01:00:00", (*selects)[0].Args["created_datetime"])
}

func TestReadCheckpointMissingIsEmpty(t *testing.T) {
	cp, found, err := ReadCheckpoint(context.Background(), memstore.NewObjects(), "nothing yet")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, cp.QueryName)
}

func TestRunFailsOnCheckpointReadError(t *testing.T) {
	legacy, selects := scriptedLegacy(fileRow(0, 10))
	objects := memstore.NewObjects()
	boom := errors.New("access denied")
	objects.FailGet = boom

	p, _ := newProcessor(legacy, objects, Options{})
	_, err := p.Run(context.Background(), []pipeline.QueryDescriptor{fileQuery})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, *selects)
	assert.Empty(t, legacy.Opened)
}

func TestRunCountOnly(t *testing.T) {
	legacy, selects := scriptedLegacy(fileRow(0, 2048), fileRow(1, 1024))
	objects := memstore.NewObjects()

	p, out := newProcessor(legacy, objects, Options{CountOnly: true})
	sum, err := p.Run(context.Background(), []pipeline.QueryDescriptor{fileQuery})
	require.NoError(t, err)

	assert.Equal(t, int64(2), sum.Count)
	assert.Equal(t, int64(3072), sum.Size)
	assert.Empty(t, *selects)
	assert.Empty(t, objects.Puts)
	assert.Contains(t, out.String(), "Case Note Files: 2 files (3KiB)")
}

func TestRunUsesMultipartForLargeFiles(t *testing.T) {
	legacy, _ := scriptedLegacy(
		fileRow(0, storage.MultipartThreshold+1),
		fileRow(1, storage.MultipartThreshold),
	)
	objects := memstore.NewObjects()

	p, _ := newProcessor(legacy, objects, Options{Prefix: "v1"})
	_, err := p.Run(context.Background(), []pipeline.QueryDescriptor{fileQuery})
	require.NoError(t, err)

	assert.Equal(t, []string{"v1/case_note/a.pdf"}, objects.Multipart)
	assert.Contains(t, objects.Puts, "v1/case_note/b.pdf")
}

func TestRunStopsOnUploadError(t *testing.T) {
	legacy, _ := scriptedLegacy(fileRow(0, 10), fileRow(1, 10), fileRow(2, 10))
	objects := memstore.NewObjects()
	boom := errors.New("slow down")
	objects.FailPut["case_note/b.pdf"] = boom

	p, _ := newProcessor(legacy, objects, Options{RunBatchSize: 1})
	sum, err := p.Run(context.Background(), []pipeline.QueryDescriptor{fileQuery})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), sum.Queries[0].Processed)

	cp, found, err := ReadCheckpoint(context.Background(), objects, fileQuery.Name)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(1), cp.Processed)
	assert.Equal(t, "2020-01-01 09:30:00", cp.Parameters["created_datetime"])
	assert.Empty(t, cp.FinishedAt)
}

func TestSelectQueries(t *testing.T) {
	catalogue := []pipeline.QueryDescriptor{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	groups := map[string][]string{"large": {"c", "a"}}

	all, err := SelectQueries(catalogue, groups, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	got, err := SelectQueries(catalogue, groups, []string{"large", "a"})
	require.NoError(t, err)
	assert.Equal(t, []pipeline.QueryDescriptor{{Name: "a"}, {Name: "c"}}, got)

	_, err = SelectQueries(catalogue, groups, []string{"d"})
	assert.ErrorIs(t, err, ErrUnknownQuery)
}

func TestPrettySize(t *testing.T) {
	assert.Equal(t, "0B", PrettySize(0))
	assert.Equal(t, "1.5KiB", PrettySize(1536))
	assert.Equal(t, "5MiB", PrettySize(storage.MultipartThreshold))
}
