package txn

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("txn",
	fx.Provide(New),
)

type txKey struct{}

// Coordinator owns the transaction boundary for a request. Every command opens
// exactly one transaction through Execute; nested Execute calls join the
// in-flight transaction instead of opening (and committing) their own, so a
// sub-step can never produce a second commit or a partial write.
type Coordinator struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Coordinator {
	return &Coordinator{db: db}
}

// Execute runs fn inside the request transaction. The outermost call commits
// on success and rolls back on error; inner calls see the same tx via context.
func (c *Coordinator) Execute(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error {
	if tx, ok := FromContext(ctx); ok {
		return fn(ctx, tx)
	}

	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx), tx)
	})
}

// FromContext returns the in-flight transaction, if the caller is already
// inside a coordinator Execute.
func FromContext(ctx context.Context) (*gorm.DB, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok && tx != nil
}
