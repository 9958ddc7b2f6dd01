package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/kicksvault/storefront/internal/repository"
)

type scopeStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewScopeStore creates a ScopeStore backed by the scoped_state table
func NewScopeStore(db *sql.DB, logger *zap.Logger) *scopeStore {
	return &scopeStore{
		db:     db,
		logger: logger,
	}
}

func (r *scopeStore) Read(ctx context.Context, scope, key string) ([]byte, error) {
	query := `
		SELECT value
		FROM scoped_state
		WHERE scope = $1 AND key = $2
	`

	var value []byte
	err := r.db.QueryRowContext(ctx, query, scope, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNoValue
	}
	if err != nil {
		r.logger.Error("Failed to read scoped state",
			zap.String("scope", scope),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, err
	}

	return value, nil
}

func (r *scopeStore) Write(ctx context.Context, scope, key string, value []byte) error {
	query := `
		INSERT INTO scoped_state (scope, key, value, updated_at)
		VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (scope, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, scope, key, string(value), time.Now())
	if err != nil {
		r.logger.Error("Failed to write scoped state",
			zap.String("scope", scope),
			zap.String("key", key),
			zap.Error(err),
		)
		return err
	}

	return nil
}

func (r *scopeStore) Clear(ctx context.Context, scope string, keys ...string) error {
	var err error
	if len(keys) == 0 {
		_, err = r.db.ExecContext(ctx, `DELETE FROM scoped_state WHERE scope = $1`, scope)
	} else {
		_, err = r.db.ExecContext(ctx,
			`DELETE FROM scoped_state WHERE scope = $1 AND key = ANY($2)`,
			scope, pq.Array(keys),
		)
	}
	if err != nil {
		r.logger.Error("Failed to clear scoped state",
			zap.String("scope", scope),
			zap.Strings("keys", keys),
			zap.Error(err),
		)
		return err
	}

	return nil
}
