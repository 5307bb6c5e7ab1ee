package storage_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"finsent-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	loc, err := storage.ParseURI("s3://models/finbert-tone/v1")
	require.NoError(t, err)
	assert.Equal(t, storage.Location{Bucket: "models", Key: "finbert-tone/v1"}, loc)
	assert.Equal(t, "s3://models/finbert-tone/v1", loc.String())

	loc, err = storage.ParseURI("s3://models")
	require.NoError(t, err)
	assert.Equal(t, "", loc.Key)

	for _, bad := range []string{"models/finbert", "gs://models/finbert", "s3:///finbert", "://"} {
		_, err := storage.ParseURI(bad)
		assert.Error(t, err, bad)
	}
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	provider := storage.NewLocalProvider(t.TempDir())
	require.NoError(t, provider.CreateBucket(ctx, "models"))

	files := map[string]string{
		"finbert/config.json":     `{"vocab_size": 30873}`,
		"finbert/vocab.txt":       "[PAD]\n[UNK]\n",
		"finbert/onnx/model.onnx": "graph",
		"other/readme.md":         "not a checkpoint",
	}
	for key, content := range files {
		require.NoError(t, provider.PutObject(ctx, "models", key, bytes.NewReader([]byte(content))))
	}

	data, err := provider.GetObject(ctx, "models", "finbert/vocab.txt")
	require.NoError(t, err)
	assert.Equal(t, files["finbert/vocab.txt"], string(data))

	objects, err := provider.ListObjects(ctx, "models", "finbert/")
	require.NoError(t, err)
	names := make([]string, 0, len(objects))
	for _, obj := range objects {
		names = append(names, obj.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"finbert/config.json", "finbert/onnx/model.onnx", "finbert/vocab.txt"}, names)
}

func TestDownloadPrefix(t *testing.T) {
	ctx := context.Background()
	provider := storage.NewLocalProvider(t.TempDir())

	for key, content := range map[string]string{
		"finbert/config.json":       "{}",
		"finbert/onnx/model.onnx":   "graph",
		"finbert-large/config.json": "{}",
	} {
		require.NoError(t, provider.PutObject(ctx, "models", key, bytes.NewReader([]byte(content))))
	}

	dest := t.TempDir()
	n, err := storage.DownloadPrefix(ctx, provider, storage.Location{Bucket: "models", Key: "finbert"}, dest)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(filepath.Join(dest, "onnx", "model.onnx"))
	require.NoError(t, err)
	assert.Equal(t, "graph", string(data))
	assert.FileExists(t, filepath.Join(dest, "config.json"))

	_, err = storage.DownloadPrefix(ctx, provider, storage.Location{Bucket: "models", Key: "missing"}, t.TempDir())
	assert.Error(t, err)
}

func TestUploadFile(t *testing.T) {
	ctx := context.Background()
	provider := storage.NewLocalProvider(t.TempDir())

	src := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(src, []byte("graph"), 0o644))

	require.NoError(t, storage.UploadFile(ctx, provider, storage.Location{Bucket: "artifacts", Key: "finbert/model.onnx"}, src))

	data, err := provider.GetObject(ctx, "artifacts", "finbert/model.onnx")
	require.NoError(t, err)
	assert.Equal(t, "graph", string(data))

	assert.Error(t, storage.UploadFile(ctx, provider, storage.Location{Bucket: "artifacts", Key: "x"}, filepath.Join(t.TempDir(), "missing")))
}
