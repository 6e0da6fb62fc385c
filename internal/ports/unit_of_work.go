package ports

import "context"

// Tx is the handle a UnitOfWork threads through ctx. Only the persistence
// adapter knows its concrete type.
type Tx any

// UnitOfWork groups repository calls that must commit together, such as a
// capacity reservation and the assignment that consumes it.
// fn returning an error rolls everything back.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns nil outside WithTx.
func TxFromContext(ctx context.Context) Tx {
	if ctx == nil {
		return nil
	}
	return ctx.Value(txKey{})
}
