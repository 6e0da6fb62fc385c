package uow

import (
	"context"

	"gorm.io/gorm"

	"trustlab/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with gorm.
type UnitOfWork struct {
	db *gorm.DB
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// WithTx runs fn inside a transaction. Nested calls join the outer transaction.
func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ports.TxFromContext(ctx).(*gorm.DB); ok && tx != nil {
		return fn(ctx)
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	})
}
