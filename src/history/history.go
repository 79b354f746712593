package history

import (
	"fmt"

	"mtclient/src/interfaces"
	"mtclient/src/logger"
	"mtclient/src/models"
)

// -----------------------------------------------------------------------------

// New builds the HistoryStorage backend named by cfg.DBType ("sqlite" or
// "postgres") and initializes its schema.
func New(cfg *models.MStorageConfig, log *logger.Logger) (interfaces.HistoryStorage, error) {
	var store interfaces.HistoryStorage
	switch cfg.DBType {
	case "sqlite":
		store = NewSQLiteStorage(cfg.DBPath, log)
	case "postgres":
		store = NewPostgresStorage(cfg.DBConnectionString, cfg.Schema, log)
	default:
		return nil, fmt.Errorf("unknown storage.db_type %q", cfg.DBType)
	}
	if err := store.Initialize(); err != nil {
		return nil, err
	}
	return store, nil
}
