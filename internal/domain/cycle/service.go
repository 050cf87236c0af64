package cycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ivf/ivf/internal/domain/embryology"
	"github.com/ivf/ivf/internal/platform/auth"
	"github.com/ivf/ivf/internal/platform/telemetry"
)

// EmbryoSource supplies a cycle's embryo records for stats derivation.
type EmbryoSource interface {
	Embryos(ctx context.Context, cycleID uuid.UUID) ([]embryology.Embryo, error)
}

type Service struct {
	repo    Repository
	embryos EmbryoSource
	policy  Policy
	tx      Transactor
	metrics *telemetry.TelemetryProvider
	now     func() time.Time
}

func NewService(repo Repository, embryos EmbryoSource, policy Policy) *Service {
	if !policy.IsValid() {
		policy = PolicyGuarded
	}
	return &Service{
		repo:    repo,
		embryos: embryos,
		policy:  policy,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) SetTransactor(tx Transactor)               { s.tx = tx }
func (s *Service) SetMetrics(m *telemetry.TelemetryProvider) { s.metrics = m }

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.InTx(ctx, fn)
}

func normalize(c *Cycle) error {
	if c.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if c.CycleType == "" {
		return fmt.Errorf("cycle_type is required")
	}
	t, ok := ParseType(string(c.CycleType))
	if !ok {
		return fmt.Errorf("invalid cycle_type: %s", c.CycleType)
	}
	c.CycleType = t
	if c.Outcome != nil && !c.Outcome.IsValid() {
		return fmt.Errorf("invalid outcome: %s", *c.Outcome)
	}
	return ValidateOocyteCounts(c)
}

func actor(ctx context.Context) *string {
	if uid := auth.UserIDFromContext(ctx); uid != "" {
		return &uid
	}
	return nil
}

func (s *Service) CreateCycle(ctx context.Context, c *Cycle) error {
	if err := normalize(c); err != nil {
		return err
	}
	if c.Status == "" {
		c.Status = StatusPlanning
	}
	st, ok := ParseStatus(string(c.Status))
	if !ok {
		return fmt.Errorf("invalid status: %s", c.Status)
	}
	c.Status = st

	return s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, c); err != nil {
			return err
		}
		return s.repo.AddStatusHistory(ctx, &StatusHistory{
			CycleID:   c.ID,
			ToStatus:  c.Status,
			ChangedBy: actor(ctx),
			ChangedAt: c.CreatedAt,
		})
	})
}

func (s *Service) GetCycle(ctx context.Context, id uuid.UUID) (*Cycle, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateCycle stores the cycle's fields. A changed status goes through the
// same transition check as UpdateStatus.
func (s *Service) UpdateCycle(ctx context.Context, c *Cycle) error {
	if err := normalize(c); err != nil {
		return err
	}
	return s.inTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByID(ctx, c.ID)
		if err != nil {
			return err
		}
		if c.Status != "" && c.Status != existing.Status {
			if _, err := s.transition(ctx, existing, string(c.Status), nil); err != nil {
				return err
			}
		}
		c.Status = existing.Status
		c.CreatedAt = existing.CreatedAt
		if err := s.repo.Update(ctx, c); err != nil {
			return err
		}
		c.UpdatedAt = s.now()
		return nil
	})
}

func (s *Service) DeleteCycle(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListCycles(ctx context.Context, params map[string]string, limit, offset int) ([]*Cycle, int, error) {
	if len(params) == 0 {
		return s.repo.List(ctx, limit, offset)
	}
	return s.repo.Search(ctx, params, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Cycle, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// transition validates and applies a status change on c, recording history.
// c is updated in place.
func (s *Service) transition(ctx context.Context, c *Cycle, requested string, reason *string) (Status, error) {
	from := c.Status
	to, err := ValidateTransition(from, requested, s.policy)
	if err != nil {
		s.metrics.CycleTransition(string(from), requested, false)
		return "", err
	}
	if to == from {
		return to, nil
	}
	return to, s.apply(ctx, c, to, false, reason)
}

func (s *Service) apply(ctx context.Context, c *Cycle, to Status, reopened bool, reason *string) error {
	at := s.now()
	if err := s.repo.UpdateStatus(ctx, c.ID, to, at); err != nil {
		return err
	}
	if err := s.repo.AddStatusHistory(ctx, &StatusHistory{
		CycleID:    c.ID,
		FromStatus: c.Status,
		ToStatus:   to,
		Reopened:   reopened,
		ChangedBy:  actor(ctx),
		Reason:     reason,
		ChangedAt:  at,
	}); err != nil {
		return err
	}
	s.metrics.CycleTransition(string(c.Status), string(to), true)
	c.Status = to
	c.UpdatedAt = at
	return nil
}

// UpdateStatus moves a cycle to the requested status under the configured
// policy and stamps updated_at.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, requested string, reason *string) (*Cycle, error) {
	var c *Cycle
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		_, err = s.transition(ctx, c, requested, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ReopenCycle moves a completed or cancelled cycle back to an open status.
func (s *Service) ReopenCycle(ctx context.Context, id uuid.UUID, requested string, reason *string) (*Cycle, error) {
	var c *Cycle
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		to, err := ValidateReopen(c.Status, requested)
		if err != nil {
			s.metrics.CycleTransition(string(c.Status), requested, false)
			return err
		}
		return s.apply(ctx, c, to, true, reason)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) GetStatusHistory(ctx context.Context, id uuid.UUID) ([]*StatusHistory, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	items, err := s.repo.GetStatusHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*StatusHistory{}
	}
	return items, nil
}

func (s *Service) Progress(ctx context.Context, id uuid.UUID) (Progress, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Progress{}, err
	}
	return ProgressFor(c.Status), nil
}

// Stats derives the cycle's counts from its manual fields and embryo records.
func (s *Service) Stats(ctx context.Context, id uuid.UUID) (CycleStats, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return CycleStats{}, err
	}
	var embryos []embryology.Embryo
	if s.embryos != nil {
		embryos, err = s.embryos.Embryos(ctx, id)
		if err != nil {
			return CycleStats{}, err
		}
	}
	return DeriveStats(*c, embryos), nil
}

func (s *Service) Report(ctx context.Context, params map[string]string) (Report, error) {
	items, err := s.repo.ListAll(ctx, params)
	if err != nil {
		return Report{}, err
	}
	cycles := make([]Cycle, len(items))
	for i, c := range items {
		cycles[i] = *c
	}
	return BuildReport(cycles), nil
}
