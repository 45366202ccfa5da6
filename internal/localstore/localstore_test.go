package localstore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Lllllllleong/docsummaryflow/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ pipeline.BlobStore = (*Store)(nil)

func TestStoreAndFetch(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	require.NoError(t, err)

	ref, err := s.Store(ctx, "Scan.PNG", []byte("image bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "file://"))
	assert.Equal(t, ".png", filepath.Ext(ref))

	data, err := s.Fetch(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "image bytes", string(data))

	other, err := s.Store(ctx, "Scan.PNG", []byte("image bytes"))
	require.NoError(t, err)
	assert.NotEqual(t, ref, other)
}

func TestPutReplacesContent(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	require.NoError(t, err)

	ref, err := s.Put(ctx, "doc-1/summary.json", "application/json", []byte("first"))
	require.NoError(t, err)
	again, err := s.Put(ctx, "doc-1/summary.json", "application/json", []byte("second"))
	require.NoError(t, err)
	assert.Equal(t, ref, again)

	data, err := s.Fetch(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestFetchRejectsOtherSchemes(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	_, err = s.Fetch(context.Background(), "gs://bucket/object")
	assert.Error(t, err)
}
