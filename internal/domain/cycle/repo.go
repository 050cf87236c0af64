package cycle

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Cycle) error
	GetByID(ctx context.Context, id uuid.UUID) (*Cycle, error)
	// Update writes every field except status, which only changes through
	// UpdateStatus.
	Update(ctx context.Context, c *Cycle) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Cycle, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Cycle, int, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Cycle, int, error)
	// ListAll returns every cycle matching params, unpaginated, for reports.
	ListAll(ctx context.Context, params map[string]string) ([]*Cycle, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time) error
	AddStatusHistory(ctx context.Context, h *StatusHistory) error
	GetStatusHistory(ctx context.Context, cycleID uuid.UUID) ([]*StatusHistory, error)
}

// Transactor runs fn inside a single database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
