package storage

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorage_SaveReadDelete(t *testing.T) {
	store := NewFileStorage(t.TempDir())
	path := OriginalPath("b1", "i1")

	require.NoError(t, store.Save(path, bytes.NewReader([]byte("image bytes"))))
	assert.True(t, store.Exists(path))

	data, err := store.Read(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("image bytes"), data)

	require.NoError(t, store.Delete(path))
	assert.False(t, store.Exists(path))
}

func TestFileStorage_SaveCreatesNestedDirs(t *testing.T) {
	store := NewFileStorage(t.TempDir())
	path := ConvertedPath("deep-batch", "item", ".webp")

	require.NoError(t, store.Save(path, bytes.NewReader([]byte("x"))))
	assert.True(t, store.Exists(path))
}

func TestFileStorage_DeleteBatchDirs(t *testing.T) {
	store := NewFileStorage(t.TempDir())

	require.NoError(t, store.Save(OriginalPath("b1", "i1"), bytes.NewReader([]byte("a"))))
	require.NoError(t, store.Save(ConvertedPath("b1", "i1", ".webp"), bytes.NewReader([]byte("b"))))
	require.NoError(t, store.Save(OriginalPath("b2", "i2"), bytes.NewReader([]byte("c"))))

	for _, dir := range BatchDirs("b1") {
		require.NoError(t, store.Delete(dir))
	}

	assert.False(t, store.Exists(OriginalPath("b1", "i1")))
	assert.False(t, store.Exists(ConvertedPath("b1", "i1", ".webp")))
	assert.True(t, store.Exists(OriginalPath("b2", "i2")), "other batches untouched")
}

func TestPathLayout(t *testing.T) {
	assert.Equal(t, filepath.Join("original", "b", "i"), OriginalPath("b", "i"))
	assert.Equal(t, filepath.Join("converted", "b", "i.webp"), ConvertedPath("b", "i", ".webp"))
	assert.Equal(t, filepath.Join("root", "previews"), PreviewDir("root"))
}
