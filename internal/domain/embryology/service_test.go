package embryology

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	embryos map[uuid.UUID]*Embryo
	seq     map[uuid.UUID]int
}

func newMockRepo() *mockRepo {
	return &mockRepo{embryos: make(map[uuid.UUID]*Embryo), seq: make(map[uuid.UUID]int)}
}

// addCycle registers a cycle so NextEmbryoNumber can find it.
func (m *mockRepo) addCycle() uuid.UUID {
	id := uuid.New()
	m.seq[id] = 0
	return id
}

func (m *mockRepo) Create(_ context.Context, e *Embryo) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	e.UpdatedAt = time.Now()
	cp := *e
	m.embryos[e.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Embryo, error) {
	e, ok := m.embryos[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, e *Embryo) error {
	if _, ok := m.embryos[e.ID]; !ok {
		return ErrNotFound
	}
	cp := *e
	m.embryos[e.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.embryos[id]; !ok {
		return ErrNotFound
	}
	delete(m.embryos, id)
	return nil
}

func (m *mockRepo) ListByCycle(_ context.Context, cycleID uuid.UUID) ([]*Embryo, error) {
	var result []*Embryo
	for _, e := range m.embryos {
		if e.CycleID == cycleID {
			cp := *e
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EmbryoNumber < result[j].EmbryoNumber })
	return result, nil
}

func (m *mockRepo) NextEmbryoNumber(_ context.Context, cycleID uuid.UUID) (int, error) {
	n, ok := m.seq[cycleID]
	if !ok {
		return 0, ErrNotFound
	}
	n++
	m.seq[cycleID] = n
	return n, nil
}

func (m *mockRepo) MarkTransferred(_ context.Context, ids []uuid.UUID, at time.Time) error {
	for _, id := range ids {
		e, ok := m.embryos[id]
		if !ok {
			return ErrNotFound
		}
		markTransferred(e, at)
	}
	return nil
}

type recordingTx struct{ calls int }

func (r *recordingTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.calls++
	return fn(ctx)
}

var fixedNow = time.Date(2026, 5, 2, 10, 30, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	svc := NewService(repo)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo
}

// -- Tests --

func TestCreateEmbryo_GradesAndNumbers(t *testing.T) {
	svc, repo := newTestService()
	cycleID := repo.addCycle()

	e := &Embryo{CycleID: cycleID, Day: 3, CellCount: intPtr(8), FragmentationPercent: floatPtr(5), Symmetry: symPtr(SymmetryEqual)}
	if err := svc.CreateEmbryo(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Grade != "8-cell Grade 1" {
		t.Errorf("expected grade '8-cell Grade 1', got %s", e.Grade)
	}
	if e.Quality != QualityExcellent {
		t.Errorf("expected quality excellent, got %s", e.Quality)
	}
	if e.Status != StatusDeveloping {
		t.Errorf("expected default status developing, got %s", e.Status)
	}
	if e.EmbryoNumber != 1 {
		t.Errorf("expected embryo number 1, got %d", e.EmbryoNumber)
	}

	second := &Embryo{CycleID: cycleID, Day: 4}
	if err := svc.CreateEmbryo(context.Background(), second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.EmbryoNumber != 2 {
		t.Errorf("expected embryo number 2, got %d", second.EmbryoNumber)
	}
	if second.Grade != NotGraded {
		t.Errorf("expected %q, got %s", NotGraded, second.Grade)
	}
}

func TestCreateEmbryo_NumbersNotReusedAfterDelete(t *testing.T) {
	svc, repo := newTestService()
	cycleID := repo.addCycle()
	ctx := context.Background()

	first := &Embryo{CycleID: cycleID, Day: 2}
	_ = svc.CreateEmbryo(ctx, first)
	second := &Embryo{CycleID: cycleID, Day: 2}
	_ = svc.CreateEmbryo(ctx, second)

	if err := svc.DeleteEmbryo(ctx, second.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	third := &Embryo{CycleID: cycleID, Day: 2}
	if err := svc.CreateEmbryo(ctx, third); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third.EmbryoNumber != 3 {
		t.Errorf("expected embryo number 3 after delete, got %d", third.EmbryoNumber)
	}
}

func TestCreateEmbryo_UsesTransactor(t *testing.T) {
	svc, repo := newTestService()
	tx := &recordingTx{}
	svc.SetTransactor(tx)

	if err := svc.CreateEmbryo(context.Background(), &Embryo{CycleID: repo.addCycle(), Day: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.calls != 1 {
		t.Errorf("expected 1 transaction, got %d", tx.calls)
	}
}

func TestCreateEmbryo_Validation(t *testing.T) {
	svc, repo := newTestService()
	cycleID := repo.addCycle()

	if err := svc.CreateEmbryo(context.Background(), &Embryo{Day: 3}); err == nil {
		t.Error("expected error for missing cycle_id")
	}
	if err := svc.CreateEmbryo(context.Background(), &Embryo{CycleID: cycleID, Day: 3, Status: "lost"}); err == nil {
		t.Error("expected error for invalid status")
	}
	err := svc.CreateEmbryo(context.Background(), &Embryo{CycleID: cycleID, Day: 7})
	if !errors.Is(err, ErrInvalidEmbryoData) {
		t.Errorf("expected ErrInvalidEmbryoData for day 7, got %v", err)
	}
	err = svc.CreateEmbryo(context.Background(), &Embryo{CycleID: cycleID, Day: 5, CellCount: intPtr(8), Expansion: intPtr(3)})
	if !errors.Is(err, ErrInvalidEmbryoData) {
		t.Errorf("expected ErrInvalidEmbryoData for mixed fields, got %v", err)
	}
	if len(repo.embryos) != 0 {
		t.Errorf("expected nothing stored, got %d embryos", len(repo.embryos))
	}
}

func TestCreateEmbryo_UnknownCycle(t *testing.T) {
	svc, _ := newTestService()
	err := svc.CreateEmbryo(context.Background(), &Embryo{CycleID: uuid.New(), Day: 3})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateEmbryo_Regrades(t *testing.T) {
	svc, repo := newTestService()
	cycleID := repo.addCycle()
	ctx := context.Background()

	e := &Embryo{CycleID: cycleID, Day: 3, CellCount: intPtr(8), FragmentationPercent: floatPtr(5), Symmetry: symPtr(SymmetryEqual)}
	if err := svc.CreateEmbryo(ctx, e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	update := &Embryo{ID: e.ID, Day: 5, Expansion: intPtr(4), ICMGrade: letter(GradeA), TEGrade: letter(GradeB), Status: StatusDeveloping}
	if err := svc.UpdateEmbryo(ctx, update); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if update.Grade != "4AB" || update.Quality != QualityGood {
		t.Errorf("expected 4AB/good, got %s/%s", update.Grade, update.Quality)
	}
	if update.CycleID != cycleID || update.EmbryoNumber != 1 {
		t.Error("expected cycle and number to be kept from the stored record")
	}
	if !update.UpdatedAt.Equal(fixedNow) {
		t.Errorf("expected updated_at %v, got %v", fixedNow, update.UpdatedAt)
	}
}

func TestUpdateEmbryo_NotFound(t *testing.T) {
	svc, _ := newTestService()
	err := svc.UpdateEmbryo(context.Background(), &Embryo{ID: uuid.New(), Day: 3})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateEmbryo_KeepsLifecycleFields(t *testing.T) {
	svc, repo := newTestService()
	cycleID := repo.addCycle()
	ctx := context.Background()

	e := &Embryo{CycleID: cycleID, Day: 5, Expansion: intPtr(4), ICMGrade: letter(GradeA), TEGrade: letter(GradeA)}
	if err := svc.CreateEmbryo(ctx, e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	straw := "S-12"
	if _, err := svc.RecordEvent(ctx, e.ID, Event{Type: EventFreeze, StrawNumber: &straw}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Morphology-only edit, as a client that omits lifecycle fields would send.
	update := &Embryo{ID: e.ID, Day: 5, Expansion: intPtr(4), ICMGrade: letter(GradeA), TEGrade: letter(GradeB)}
	if err := svc.UpdateEmbryo(ctx, update); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := repo.GetByID(ctx, e.ID)
	if stored.Status != StatusFrozen {
		t.Errorf("expected status frozen to be kept, got %s", stored.Status)
	}
	if stored.FreezeDate == nil || !stored.FreezeDate.Equal(fixedNow) {
		t.Errorf("expected freeze date to be kept, got %v", stored.FreezeDate)
	}
	if stored.Disposition == nil || *stored.Disposition != DispositionFrozen {
		t.Errorf("expected disposition frozen to be kept, got %v", stored.Disposition)
	}
	if stored.StrawNumber == nil || *stored.StrawNumber != straw {
		t.Errorf("expected straw number to be kept, got %v", stored.StrawNumber)
	}
	if stored.Grade != "4AB" {
		t.Errorf("expected regrade to 4AB, got %s", stored.Grade)
	}

	if _, err := svc.RecordEvent(ctx, e.ID, Event{Type: EventDiscard}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	revive := &Embryo{ID: e.ID, Day: 5, Expansion: intPtr(4), Status: StatusThawed}
	if err := svc.UpdateEmbryo(ctx, revive); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ = repo.GetByID(ctx, e.ID)
	if stored.Status != StatusDiscarded {
		t.Errorf("expected discarded embryo to stay discarded, got %s", stored.Status)
	}
}

func TestUpdateEmbryo_StaleGradeNotReused(t *testing.T) {
	svc, repo := newTestService()
	cycleID := repo.addCycle()
	ctx := context.Background()

	e := &Embryo{CycleID: cycleID, Day: 3, CellCount: intPtr(8), FragmentationPercent: floatPtr(5), Symmetry: symPtr(SymmetryEqual)}
	if err := svc.CreateEmbryo(ctx, e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Moved to day 4 with the cleavage fields cleared and the old result echoed back.
	update := &Embryo{ID: e.ID, Day: 4, Grade: e.Grade, Quality: e.Quality}
	if err := svc.UpdateEmbryo(ctx, update); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if update.Grade != NotGraded {
		t.Errorf("expected %q, got %s", NotGraded, update.Grade)
	}
	if update.Quality != QualityFair {
		t.Errorf("expected quality fair, got %s", update.Quality)
	}
}

func TestUpdateEmbryo_MorulaManualGrade(t *testing.T) {
	svc, repo := newTestService()
	cycleID := repo.addCycle()
	ctx := context.Background()

	e := &Embryo{CycleID: cycleID, Day: 4, ManualGrade: "M1", ManualQuality: QualityGood}
	if err := svc.CreateEmbryo(ctx, e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Grade != "M1" || e.Quality != QualityGood {
		t.Fatalf("expected M1/good, got %s/%s", e.Grade, e.Quality)
	}

	// Notes-only edit on the same day keeps the hand-entered grade.
	notes := "compacting"
	update := &Embryo{ID: e.ID, Day: 4, Notes: &notes}
	if err := svc.UpdateEmbryo(ctx, update); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if update.Grade != "M1" || update.Quality != QualityGood {
		t.Errorf("expected M1/good to be kept, got %s/%s", update.Grade, update.Quality)
	}

	regrade := &Embryo{ID: e.ID, Day: 4, ManualGrade: "M2", ManualQuality: QualityFair}
	if err := svc.UpdateEmbryo(ctx, regrade); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if regrade.Grade != "M2" || regrade.Quality != QualityFair {
		t.Errorf("expected M2/fair, got %s/%s", regrade.Grade, regrade.Quality)
	}
}

func TestRecordEvent(t *testing.T) {
	svc, repo := newTestService()
	cycleID := repo.addCycle()
	ctx := context.Background()

	e := &Embryo{CycleID: cycleID, Day: 5, Expansion: intPtr(4), ICMGrade: letter(GradeA), TEGrade: letter(GradeA)}
	if err := svc.CreateEmbryo(ctx, e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frozen, err := svc.RecordEvent(ctx, e.ID, Event{Type: EventFreeze})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frozen.Status != StatusFrozen {
		t.Errorf("expected frozen, got %s", frozen.Status)
	}
	if frozen.FreezeDate == nil || !frozen.FreezeDate.Equal(fixedNow) {
		t.Errorf("expected freeze date %v, got %v", fixedNow, frozen.FreezeDate)
	}

	stored, _ := repo.GetByID(ctx, e.ID)
	if stored.Status != StatusFrozen {
		t.Errorf("expected stored status frozen, got %s", stored.Status)
	}

	if _, err := svc.RecordEvent(ctx, e.ID, Event{Type: EventFreeze}); !errors.Is(err, ErrIneligible) {
		t.Errorf("expected ErrIneligible refreezing, got %v", err)
	}
}

func TestSelectForTransfer(t *testing.T) {
	svc, repo := newTestService()
	cycleID := repo.addCycle()
	ctx := context.Background()

	var created []*Embryo
	for i := 0; i < 4; i++ {
		e := &Embryo{CycleID: cycleID, Day: 5, Expansion: intPtr(4), ICMGrade: letter(GradeA), TEGrade: letter(GradeA)}
		if err := svc.CreateEmbryo(ctx, e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		created = append(created, e)
	}

	all := []uuid.UUID{created[0].ID, created[1].ID, created[2].ID, created[3].ID}
	if _, err := svc.SelectForTransfer(ctx, cycleID, all); !errors.Is(err, ErrTransferSelection) {
		t.Fatalf("expected ErrTransferSelection for 4 embryos, got %v", err)
	}
	for _, e := range repo.embryos {
		if e.Status != StatusDeveloping {
			t.Fatalf("expected rejected selection to leave embryos untouched, got %s", e.Status)
		}
	}

	selected, err := svc.SelectForTransfer(ctx, cycleID, all[:2])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(selected) != 2 {
		t.Fatalf("expected 2 selected, got %d", len(selected))
	}
	for _, id := range all[:2] {
		if repo.embryos[id].Status != StatusTransferred {
			t.Errorf("expected embryo %s transferred, got %s", id, repo.embryos[id].Status)
		}
	}

	// Already transferred embryos cannot be selected again.
	if _, err := svc.SelectForTransfer(ctx, cycleID, all[:1]); !errors.Is(err, ErrTransferSelection) {
		t.Errorf("expected ErrTransferSelection for transferred embryo, got %v", err)
	}
}

func TestSummary_RecomputedOnRead(t *testing.T) {
	svc, repo := newTestService()
	cycleID := repo.addCycle()
	ctx := context.Background()

	_ = svc.CreateEmbryo(ctx, &Embryo{CycleID: cycleID, Day: 3, CellCount: intPtr(8), FragmentationPercent: floatPtr(20), Symmetry: symPtr(SymmetryEqual)})
	s, err := svc.Summary(ctx, cycleID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Total != 1 || s.ByQuality[QualityGood] != 1 {
		t.Errorf("expected 1 good embryo, got total=%d good=%d", s.Total, s.ByQuality[QualityGood])
	}

	_ = svc.CreateEmbryo(ctx, &Embryo{CycleID: cycleID, Day: 5, Expansion: intPtr(3), ICMGrade: letter(GradeC), TEGrade: letter(GradeC)})
	s, _ = svc.Summary(ctx, cycleID)
	if s.Total != 2 || s.ByQuality[QualityPoor] != 1 {
		t.Errorf("expected summary to include new embryo, got total=%d poor=%d", s.Total, s.ByQuality[QualityPoor])
	}
}

func TestGrade_Preview(t *testing.T) {
	svc, _ := newTestService()

	res, err := svc.Grade(cleavage(3, 5, 0, SymmetryEqual))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Grade != "5-cell Grade 1" {
		t.Errorf("expected '5-cell Grade 1', got %s", res.Grade)
	}
	if res.CellCount != CellCountBelow {
		t.Errorf("expected below_expected, got %s", res.CellCount)
	}
	if res.Expected == nil || res.Expected.Ideal != 8 {
		t.Errorf("expected ideal 8 cells on day 3, got %+v", res.Expected)
	}

	if _, err := svc.Grade(blastocyst(5, 7, GradeA, GradeA)); !errors.Is(err, ErrInvalidEmbryoData) {
		t.Errorf("expected ErrInvalidEmbryoData, got %v", err)
	}
}
