package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	single, multi []string
}

func (r *recorder) Put(_ context.Context, path string, _ []byte) error {
	r.single = append(r.single, path)
	return nil
}

func (r *recorder) PutMultipart(_ context.Context, path string, _ []byte) error {
	r.multi = append(r.multi, path)
	return nil
}

func (r *recorder) Get(context.Context, string) ([]byte, error) {
	return nil, ErrNotFound
}

func TestUploadSelectsPathBySize(t *testing.T) {
	r := &recorder{}
	ctx := context.Background()

	require.NoError(t, Upload(ctx, r, "small", nil, 1024))
	require.NoError(t, Upload(ctx, r, "exact", nil, MultipartThreshold))
	require.NoError(t, Upload(ctx, r, "large", nil, MultipartThreshold+1))

	assert.Equal(t, []string{"small", "exact"}, r.single)
	assert.Equal(t, []string{"large"}, r.multi)
}

func TestJoinPrefix(t *testing.T) {
	assert.Equal(t, "a.pdf", JoinPrefix("", "a.pdf"))
	assert.Equal(t, "v1/a.pdf", JoinPrefix("v1", "a.pdf"))
}
