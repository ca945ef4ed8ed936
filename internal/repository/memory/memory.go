// Package memory provides mutex-guarded in-memory implementations of the
// repository interfaces. They back the service unit tests; the Postgres
// implementations are the production source of truth.
package memory

import "context"

// TxManager is a pass-through database.TxManager: the memory stores are
// individually atomic, so the callback just runs in place.
type TxManager struct{}

func NewTxManager() *TxManager {
	return &TxManager{}
}

func (TxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
