package kvstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/invoice-desk/pkg/database"
	"go.uber.org/zap"
)

// LocalNamespace is the namespace used for long-lived local state
const LocalNamespace = "local"

// SQLiteStore persists keys in the kv_entries table under one namespace
type SQLiteStore struct {
	db        *database.DB
	namespace string
	logger    *zap.Logger
}

// NewSQLiteStore creates a store over an already migrated database
func NewSQLiteStore(db *database.DB, namespace string, logger *zap.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:        db,
		namespace: namespace,
		logger:    logger,
	}
}

// Get reads the value stored under key
func (s *SQLiteStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		"SELECT value FROM kv_entries WHERE namespace = ? AND key = ?",
		s.namespace, key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		s.logger.Error("Failed to read key", zap.String("key", key), zap.Error(err))
		return "", false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return value, true, nil
}

// Set writes value under key, replacing any previous value
func (s *SQLiteStore) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO kv_entries (namespace, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, s.namespace, key, value)
	if err != nil {
		s.logger.Error("Failed to write key", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}

	s.logger.Debug("Key written", zap.String("key", key), zap.Int("size", len(value)))
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (s *SQLiteStore) Delete(key string) error {
	_, err := s.db.Exec(
		"DELETE FROM kv_entries WHERE namespace = ? AND key = ?",
		s.namespace, key,
	)
	if err != nil {
		s.logger.Error("Failed to delete key", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}
