package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/emilythestrangee/social-feed/backend/internal/dbctx"
)

// TxRunner provides the transaction boundary for engine writes.
// fn runs inside one transaction; it commits when fn returns nil and rolls
// back on error or panic. Failed transactions are never retried.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewTxRunner returns a runner whose transactions abort after timeout.
// A non-positive timeout leaves the caller's deadline in charge.
func NewTxRunner(db *gorm.DB, timeout time.Duration) TxRunner {
	return &gormTxRunner{db: db, timeout: timeout}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return errors.New("transaction runner has nil db")
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}
