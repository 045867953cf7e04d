package ports

import "context"

// Tx is an opaque transaction handle; the persistence adapter owns the concrete type.
type Tx interface{}

// UnitOfWork runs fn inside one transaction: an error rolls back, nil commits.
// Calls made while a transaction is already carried by ctx join it.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}
