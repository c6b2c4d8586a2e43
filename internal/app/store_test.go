package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"protodash/internal/config"
	"protodash/internal/storage/file"
	"protodash/internal/storage/objectstore"
	"protodash/internal/storage/sqlite"
)

func TestOpenStoreBackends(t *testing.T) {
	dir := t.TempDir()
	logger := zap.NewNop()

	s, closeFn, err := openStore(config.Config{StorageBackend: config.BackendSQLite, DBPath: filepath.Join(dir, "db", "p.db")}, logger)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, s)
	ds, err := s.Load(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, ds)
	require.NoError(t, closeFn())

	s, closeFn, err = openStore(config.Config{StorageBackend: config.BackendFile, DataDir: dir}, logger)
	require.NoError(t, err)
	assert.IsType(t, &file.Store{}, s)
	require.NoError(t, closeFn())

	s, _, err = openStore(config.Config{StorageBackend: config.BackendObject, ObjectStoreURL: "https://objects.example.com/dash", ObjectStoreMaxTries: 2}, logger)
	require.NoError(t, err)
	assert.IsType(t, &objectstore.Store{}, s)

	_, closeFn, err = openStore(config.Config{StorageBackend: config.BackendObject, ObjectStoreURL: "ftp://nope"}, logger)
	assert.Error(t, err)
	assert.NotNil(t, closeFn)

	_, _, err = openStore(config.Config{StorageBackend: "drive"}, logger)
	assert.Error(t, err)
}
