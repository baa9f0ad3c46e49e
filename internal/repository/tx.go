package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Transactor runs a function inside a single database transaction. The bulk
// import commit and the attendance upsert both serialise their writes this
// way.
type Transactor struct {
	db *sqlx.DB
}

// NewTransactor constructs the helper.
func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

// RunInTx begins a transaction, invokes fn, and commits; any error rolls the
// whole transaction back.
func (t *Transactor) RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
