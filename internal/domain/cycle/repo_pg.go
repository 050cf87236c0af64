package cycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivf/ivf/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type cycleRepoPG struct{ pool *pgxpool.Pool }

func NewCycleRepoPG(pool *pgxpool.Pool) Repository {
	return &cycleRepoPG{pool: pool}
}

func (r *cycleRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const cycleCols = `id, patient_id, cycle_number, cycle_type, status, protocol,
	start_date, stimulation_start_date, trigger_date, retrieval_date, transfer_date, pregnancy_test_date,
	oocytes_retrieved, mature_oocytes, immature_mi, immature_gv, degenerated, fertilized,
	embryos_transferred, embryos_frozen,
	outcome, pregnant, bhcg_value, notes, created_at, updated_at`

func (r *cycleRepoPG) scanRow(row pgx.Row) (*Cycle, error) {
	var c Cycle
	err := row.Scan(&c.ID, &c.PatientID, &c.CycleNumber, &c.CycleType, &c.Status, &c.Protocol,
		&c.StartDate, &c.StimulationStartDate, &c.TriggerDate, &c.RetrievalDate, &c.TransferDate, &c.PregnancyTestDate,
		&c.OocytesRetrieved, &c.MatureOocytes, &c.ImmatureMI, &c.ImmatureGV, &c.Degenerated, &c.Fertilized,
		&c.EmbryosTransferred, &c.EmbryosFrozen,
		&c.Outcome, &c.Pregnant, &c.BHCGValue, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *cycleRepoPG) scanRows(rows pgx.Rows) ([]*Cycle, error) {
	defer rows.Close()
	var items []*Cycle
	for rows.Next() {
		c, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *cycleRepoPG) Create(ctx context.Context, c *Cycle) error {
	c.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO cycles (id, patient_id, cycle_number, cycle_type, status, protocol,
			start_date, stimulation_start_date, trigger_date, retrieval_date, transfer_date, pregnancy_test_date,
			oocytes_retrieved, mature_oocytes, immature_mi, immature_gv, degenerated, fertilized,
			embryos_transferred, embryos_frozen,
			outcome, pregnant, bhcg_value, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
		RETURNING created_at, updated_at`,
		c.ID, c.PatientID, c.CycleNumber, c.CycleType, c.Status, c.Protocol,
		c.StartDate, c.StimulationStartDate, c.TriggerDate, c.RetrievalDate, c.TransferDate, c.PregnancyTestDate,
		c.OocytesRetrieved, c.MatureOocytes, c.ImmatureMI, c.ImmatureGV, c.Degenerated, c.Fertilized,
		c.EmbryosTransferred, c.EmbryosFrozen,
		c.Outcome, c.Pregnant, c.BHCGValue, c.Notes,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *cycleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Cycle, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+cycleCols+` FROM cycles WHERE id = $1`, id))
}

func (r *cycleRepoPG) Update(ctx context.Context, c *Cycle) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE cycles SET cycle_number=$2, cycle_type=$3, protocol=$4,
			start_date=$5, stimulation_start_date=$6, trigger_date=$7, retrieval_date=$8,
			transfer_date=$9, pregnancy_test_date=$10,
			oocytes_retrieved=$11, mature_oocytes=$12, immature_mi=$13, immature_gv=$14,
			degenerated=$15, fertilized=$16, embryos_transferred=$17, embryos_frozen=$18,
			outcome=$19, pregnant=$20, bhcg_value=$21, notes=$22, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.CycleNumber, c.CycleType, c.Protocol,
		c.StartDate, c.StimulationStartDate, c.TriggerDate, c.RetrievalDate,
		c.TransferDate, c.PregnancyTestDate,
		c.OocytesRetrieved, c.MatureOocytes, c.ImmatureMI, c.ImmatureGV,
		c.Degenerated, c.Fertilized, c.EmbryosTransferred, c.EmbryosFrozen,
		c.Outcome, c.Pregnant, c.BHCGValue, c.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the cycle; embryos and status history go with it
// (ON DELETE CASCADE).
func (r *cycleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM cycles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *cycleRepoPG) List(ctx context.Context, limit, offset int) ([]*Cycle, int, error) {
	return r.Search(ctx, nil, limit, offset)
}

func (r *cycleRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Cycle, int, error) {
	return r.Search(ctx, map[string]string{"patient": patientID.String()}, limit, offset)
}

// where builds the filter clause shared by Search and ListAll.
func where(params map[string]string) (string, []interface{}, error) {
	clause := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["patient"]; ok {
		id, err := uuid.Parse(p)
		if err != nil {
			return "", nil, fmt.Errorf("invalid patient id: %s", p)
		}
		clause += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, id)
		idx++
	}
	if p, ok := params["status"]; ok {
		s, valid := ParseStatus(p)
		if !valid {
			return "", nil, fmt.Errorf("invalid status: %s", p)
		}
		clause += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, s)
		idx++
	}
	if p, ok := params["type"]; ok {
		t, valid := ParseType(p)
		if !valid {
			return "", nil, fmt.Errorf("invalid cycle type: %s", p)
		}
		clause += fmt.Sprintf(` AND cycle_type = $%d`, idx)
		args = append(args, t)
		idx++
	}
	if p, ok := params["start_from"]; ok {
		d, err := time.Parse("2006-01-02", p)
		if err != nil {
			return "", nil, fmt.Errorf("invalid start_from date: %s", p)
		}
		clause += fmt.Sprintf(` AND start_date >= $%d`, idx)
		args = append(args, d)
		idx++
	}
	if p, ok := params["start_to"]; ok {
		d, err := time.Parse("2006-01-02", p)
		if err != nil {
			return "", nil, fmt.Errorf("invalid start_to date: %s", p)
		}
		clause += fmt.Sprintf(` AND start_date <= $%d`, idx)
		args = append(args, d)
	}
	return clause, args, nil
}

func (r *cycleRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Cycle, int, error) {
	clause, args, err := where(params)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM cycles`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	idx := len(args) + 1
	query := `SELECT ` + cycleCols + ` FROM cycles` + clause +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.scanRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *cycleRepoPG) ListAll(ctx context.Context, params map[string]string) ([]*Cycle, error) {
	clause, args, err := where(params)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+cycleCols+` FROM cycles`+clause+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, err
	}
	return r.scanRows(rows)
}

func (r *cycleRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE cycles SET status = $2, updated_at = $3 WHERE id = $1`, id, status, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *cycleRepoPG) AddStatusHistory(ctx context.Context, h *StatusHistory) error {
	h.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO cycle_status_history (id, cycle_id, from_status, to_status, reopened, changed_by, reason, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		h.ID, h.CycleID, h.FromStatus, h.ToStatus, h.Reopened, h.ChangedBy, h.Reason, h.ChangedAt)
	return err
}

func (r *cycleRepoPG) GetStatusHistory(ctx context.Context, cycleID uuid.UUID) ([]*StatusHistory, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, cycle_id, from_status, to_status, reopened, changed_by, reason, changed_at
		FROM cycle_status_history WHERE cycle_id = $1 ORDER BY changed_at`, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*StatusHistory
	for rows.Next() {
		var h StatusHistory
		if err := rows.Scan(&h.ID, &h.CycleID, &h.FromStatus, &h.ToStatus, &h.Reopened, &h.ChangedBy, &h.Reason, &h.ChangedAt); err != nil {
			return nil, err
		}
		items = append(items, &h)
	}
	return items, rows.Err()
}
