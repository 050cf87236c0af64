package embryology

import (
	"context"
	"errors"
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

type embryoRepoPG struct{ pool *pgxpool.Pool }

func NewEmbryoRepoPG(pool *pgxpool.Pool) Repository {
	return &embryoRepoPG{pool: pool}
}

func (r *embryoRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const embryoCols = `id, cycle_id, embryo_number, day,
	cell_count, fragmentation_percent, symmetry,
	expansion, icm_grade, te_grade,
	grade, quality, status, disposition, pgt_result, pgt_details,
	fertilization_date, freeze_date, thaw_date, transfer_date, biopsy_date,
	straw_number, tank, position, notes, created_at, updated_at`

func (r *embryoRepoPG) scanRow(row pgx.Row) (*Embryo, error) {
	var e Embryo
	err := row.Scan(&e.ID, &e.CycleID, &e.EmbryoNumber, &e.Day,
		&e.CellCount, &e.FragmentationPercent, &e.Symmetry,
		&e.Expansion, &e.ICMGrade, &e.TEGrade,
		&e.Grade, &e.Quality, &e.Status, &e.Disposition, &e.PGTResult, &e.PGTDetails,
		&e.FertilizationDate, &e.FreezeDate, &e.ThawDate, &e.TransferDate, &e.BiopsyDate,
		&e.StrawNumber, &e.Tank, &e.Position, &e.Notes, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *embryoRepoPG) Create(ctx context.Context, e *Embryo) error {
	e.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO embryos (id, cycle_id, embryo_number, day,
			cell_count, fragmentation_percent, symmetry,
			expansion, icm_grade, te_grade,
			grade, quality, status, disposition, pgt_result, pgt_details,
			fertilization_date, freeze_date, thaw_date, transfer_date, biopsy_date,
			straw_number, tank, position, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
		RETURNING created_at, updated_at`,
		e.ID, e.CycleID, e.EmbryoNumber, e.Day,
		e.CellCount, e.FragmentationPercent, e.Symmetry,
		e.Expansion, e.ICMGrade, e.TEGrade,
		e.Grade, e.Quality, e.Status, e.Disposition, e.PGTResult, e.PGTDetails,
		e.FertilizationDate, e.FreezeDate, e.ThawDate, e.TransferDate, e.BiopsyDate,
		e.StrawNumber, e.Tank, e.Position, e.Notes,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *embryoRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Embryo, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+embryoCols+` FROM embryos WHERE id = $1`, id))
}

func (r *embryoRepoPG) Update(ctx context.Context, e *Embryo) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE embryos SET day=$2,
			cell_count=$3, fragmentation_percent=$4, symmetry=$5,
			expansion=$6, icm_grade=$7, te_grade=$8,
			grade=$9, quality=$10, status=$11, disposition=$12, pgt_result=$13, pgt_details=$14,
			fertilization_date=$15, freeze_date=$16, thaw_date=$17, transfer_date=$18, biopsy_date=$19,
			straw_number=$20, tank=$21, position=$22, notes=$23, updated_at=NOW()
		WHERE id = $1`,
		e.ID, e.Day,
		e.CellCount, e.FragmentationPercent, e.Symmetry,
		e.Expansion, e.ICMGrade, e.TEGrade,
		e.Grade, e.Quality, e.Status, e.Disposition, e.PGTResult, e.PGTDetails,
		e.FertilizationDate, e.FreezeDate, e.ThawDate, e.TransferDate, e.BiopsyDate,
		e.StrawNumber, e.Tank, e.Position, e.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *embryoRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM embryos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *embryoRepoPG) ListByCycle(ctx context.Context, cycleID uuid.UUID) ([]*Embryo, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+embryoCols+` FROM embryos WHERE cycle_id = $1 ORDER BY embryo_number`, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Embryo
	for rows.Next() {
		e, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *embryoRepoPG) NextEmbryoNumber(ctx context.Context, cycleID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE cycles SET embryo_seq = embryo_seq + 1
		WHERE id = $1
		RETURNING embryo_seq`, cycleID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return n, err
}

func (r *embryoRepoPG) MarkTransferred(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE embryos SET status = 'transferred', transfer_date = $2,
			disposition = CASE WHEN status = 'developing' THEN 'fresh_transfer' ELSE disposition END,
			updated_at = NOW()
		WHERE id = ANY($1)`, ids, at)
	return err
}
