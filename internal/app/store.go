package app

import (
	"fmt"

	"go.uber.org/zap"

	"protodash/internal/config"
	"protodash/internal/httpx"
	"protodash/internal/logging"
	"protodash/internal/storage"
	"protodash/internal/storage/file"
	"protodash/internal/storage/objectstore"
	"protodash/internal/storage/sqlite"
)

// openStore builds the backend selected by storage_backend. The returned
// close func is never nil.
func openStore(cfg config.Config, logger *zap.Logger) (storage.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, noop, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
		}
		logger.Debug("database initialized", zap.String("path", cfg.DBPath))
		return s, s.Close, nil
	case config.BackendFile:
		logger.Debug("file storage", zap.String("dir", cfg.DataDir))
		return file.New(cfg.DataDir), noop, nil
	case config.BackendObject:
		client, timeout := httpx.NewClient(cfg.ExternalHTTPTimeoutSeconds)
		logger.Debug("object storage", zap.String("url", cfg.ObjectStoreURL), zap.Duration("timeout", timeout))
		s, err := objectstore.New(cfg.ObjectStoreURL,
			objectstore.WithHTTPClient(client),
			objectstore.WithToken(cfg.ObjectStoreToken),
			objectstore.WithMaxTries(cfg.ObjectStoreMaxTries),
			objectstore.WithLogger(logging.Component(logger, "objectstore")),
		)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
