package embryology

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ivf/ivf/internal/platform/telemetry"
)

type Service struct {
	repo    Repository
	tx      Transactor
	metrics *telemetry.TelemetryProvider
	now     func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// SetTransactor makes multi-statement operations atomic. Without one they
// run statement by statement.
func (s *Service) SetTransactor(tx Transactor)               { s.tx = tx }
func (s *Service) SetMetrics(m *telemetry.TelemetryProvider) { s.metrics = m }

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.InTx(ctx, fn)
}

// GradeResult is a classification plus the cell count check for the day.
type GradeResult struct {
	Result
	CellCount CellCountAssessment `json:"cell_count_assessment"`
	Expected  *CellCountRange     `json:"expected_cell_count,omitempty"`
}

// Grade classifies an observation without storing anything.
func (s *Service) Grade(obs Observation) (*GradeResult, error) {
	r, err := Classify(obs)
	if err != nil {
		return nil, err
	}
	out := &GradeResult{Result: r, CellCount: CellCountUnknown}
	if obs.Day != nil {
		if rng, ok := ExpectedCellCount(*obs.Day); ok {
			out.Expected = &rng
		}
		if m, ok := obs.Morphology.(CleavageMorphology); ok {
			out.CellCount = AssessCellCount(*obs.Day, m.CellCount)
		}
	}
	return out, nil
}

func (s *Service) classify(e *Embryo) error {
	obs, err := e.Observation()
	if err != nil {
		return err
	}
	r, err := Classify(obs)
	if err != nil {
		return err
	}
	e.ApplyResult(r)
	s.metrics.EmbryoGraded(string(r.Stage), string(r.Quality))
	return nil
}

func validateRecord(e *Embryo) error {
	if e.CycleID == uuid.Nil {
		return fmt.Errorf("cycle_id is required")
	}
	if e.Status == "" {
		e.Status = StatusDeveloping
	}
	if !e.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", e.Status)
	}
	if e.Disposition != nil && !e.Disposition.IsValid() {
		return fmt.Errorf("invalid disposition: %s", *e.Disposition)
	}
	if e.PGTResult != nil && !e.PGTResult.IsValid() {
		return fmt.Errorf("invalid pgt_result: %s", *e.PGTResult)
	}
	return nil
}

// CreateEmbryo assigns the next embryo number for the cycle, grades the
// observation and stores the record.
func (s *Service) CreateEmbryo(ctx context.Context, e *Embryo) error {
	if err := validateRecord(e); err != nil {
		return err
	}
	if e.Grade == "" {
		e.Grade = NotGraded
	}
	if err := s.classify(e); err != nil {
		return err
	}
	return s.inTx(ctx, func(ctx context.Context) error {
		n, err := s.repo.NextEmbryoNumber(ctx, e.CycleID)
		if err != nil {
			return err
		}
		e.EmbryoNumber = n
		return s.repo.Create(ctx, e)
	})
}

func (s *Service) GetEmbryo(ctx context.Context, id uuid.UUID) (*Embryo, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateEmbryo replaces the observation fields and re-grades. Identity
// fields (cycle, number) and lifecycle fields are taken from the stored
// record.
func (s *Service) UpdateEmbryo(ctx context.Context, e *Embryo) error {
	existing, err := s.repo.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	e.CycleID = existing.CycleID
	e.EmbryoNumber = existing.EmbryoNumber
	e.CreatedAt = existing.CreatedAt
	keepLifecycle(e, existing)

	// A morula record re-saved without new grading input keeps its
	// hand-entered grade.
	if e.Day == existing.Day && StageForDay(e.Day) == StageMorula {
		if e.ManualGrade == "" && existing.Grade != NotGraded {
			e.ManualGrade = existing.Grade
		}
		if e.ManualQuality == "" {
			e.ManualQuality = existing.Quality
		}
	}
	if err := validateRecord(e); err != nil {
		return err
	}
	if err := s.classify(e); err != nil {
		return err
	}
	e.UpdatedAt = s.now()
	return s.repo.Update(ctx, e)
}

// keepLifecycle copies the fields owned by clinical events from the stored
// record. Status, disposition, event dates and cryo location change only
// through RecordEvent and SelectForTransfer.
func keepLifecycle(e, existing *Embryo) {
	e.Status = existing.Status
	e.Disposition = existing.Disposition
	e.FreezeDate = existing.FreezeDate
	e.ThawDate = existing.ThawDate
	e.TransferDate = existing.TransferDate
	e.BiopsyDate = existing.BiopsyDate
	e.StrawNumber = existing.StrawNumber
	e.Tank = existing.Tank
	e.Position = existing.Position
}

func (s *Service) DeleteEmbryo(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListEmbryos(ctx context.Context, cycleID uuid.UUID) ([]*Embryo, error) {
	items, err := s.repo.ListByCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Embryo{}
	}
	return items, nil
}

func (s *Service) listValues(ctx context.Context, cycleID uuid.UUID) ([]Embryo, error) {
	items, err := s.repo.ListByCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	out := make([]Embryo, len(items))
	for i, e := range items {
		out[i] = *e
	}
	return out, nil
}

// Summary aggregates the cycle's embryos. It is recomputed on every call.
func (s *Service) Summary(ctx context.Context, cycleID uuid.UUID) (CycleEmbryoStats, error) {
	embryos, err := s.listValues(ctx, cycleID)
	if err != nil {
		return CycleEmbryoStats{}, err
	}
	return Summarize(embryos), nil
}

// Embryos returns the cycle's embryos by value, for stats derivation.
func (s *Service) Embryos(ctx context.Context, cycleID uuid.UUID) ([]Embryo, error) {
	return s.listValues(ctx, cycleID)
}

// RecordEvent applies a clinical event to one embryo and stores the result.
func (s *Service) RecordEvent(ctx context.Context, id uuid.UUID, ev Event) (*Embryo, error) {
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	var out Embryo
	err := s.inTx(ctx, func(ctx context.Context) error {
		e, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		out, err = ApplyEvent(*e, ev)
		if err != nil {
			return err
		}
		return s.repo.Update(ctx, &out)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.EmbryoEvent(string(ev.Type))
	return &out, nil
}

// SelectForTransfer validates a transfer selection against the cycle's
// embryos and marks the selected ones transferred.
func (s *Service) SelectForTransfer(ctx context.Context, cycleID uuid.UUID, ids []uuid.UUID) ([]Embryo, error) {
	at := s.now()
	var selected []Embryo
	err := s.inTx(ctx, func(ctx context.Context) error {
		pool, err := s.listValues(ctx, cycleID)
		if err != nil {
			return err
		}
		selected, err = ValidateTransferSelection(pool, ids)
		if err != nil {
			return err
		}
		return s.repo.MarkTransferred(ctx, ids, at)
	})
	if err != nil {
		return nil, err
	}
	for i := range selected {
		markTransferred(&selected[i], at)
		selected[i].UpdatedAt = at
	}
	s.metrics.Transfer(len(selected))
	return selected, nil
}
