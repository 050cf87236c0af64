package embryology

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an embryo or its owning cycle does not exist.
var ErrNotFound = errors.New("not found")

type Repository interface {
	Create(ctx context.Context, e *Embryo) error
	GetByID(ctx context.Context, id uuid.UUID) (*Embryo, error)
	Update(ctx context.Context, e *Embryo) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCycle(ctx context.Context, cycleID uuid.UUID) ([]*Embryo, error)

	// NextEmbryoNumber reserves the next number for the cycle. Numbers are
	// never handed out twice, even after deletions.
	NextEmbryoNumber(ctx context.Context, cycleID uuid.UUID) (int, error)

	// MarkTransferred moves the given embryos to transferred in one statement.
	MarkTransferred(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Transactor runs fn inside a single database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
