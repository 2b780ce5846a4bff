package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/tx"
)

const defaultBankTxTimeout = 5 * time.Second

// bankPostgresTx runs service operations inside one SQL transaction. The
// transaction rides the context (pkg/platform/tx), so every store touched by
// fn joins it; the allocator's select-and-flip commits atomically with the
// request decision.
type bankPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newBankPostgresTx(db *sql.DB) *bankPostgresTx {
	return &bankPostgresTx{db: db}
}

func (t *bankPostgresTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultBankTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		return err
	}

	return sqlTx.Commit()
}
