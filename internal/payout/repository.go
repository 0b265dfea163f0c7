package payout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lancepay/lancepay/internal/ledger"
)

// ErrNotFound indicates no payout request matched the lookup.
var ErrNotFound = errors.New("payout request not found")

// Repository persists payout requests. CreateTx joins the insert to the
// caller's atomic unit so the row and its balance reservation appear
// together; status updates are compare-and-set and run inside atomic units
// like the other workflows.
type Repository interface {
	CreateTx(tx ledger.Tx, r Request) error
	Get(ctx context.Context, id string) (Request, error)
	UpdateStatusTx(tx ledger.Tx, id string, from []Status, to Status, adminNotes string) error
	ListByStatus(ctx context.Context, status Status) ([]Request, error)
}

// PostgresRepository stores payout requests in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateTx inserts a payout request row inside the caller's atomic unit.
func (r *PostgresRepository) CreateTx(tx ledger.Tx, req Request) error {
	pgtx, ok := tx.(ledger.PgxTx)
	if !ok {
		return errors.New("transaction does not join a postgres unit")
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return err
	}
	_, err = pgtx.Pgx().Exec(pgtx.Context(), `INSERT INTO payout_requests
        (id, wallet_id, amount, bank_detail_id, status, admin_notes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, req.WalletID, req.Amount, req.BankDetailID, string(req.Status), req.AdminNotes,
		req.CreatedAt.UTC(), req.UpdatedAt.UTC())
	return err
}

// Get fetches a payout request by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Request, error) {
	row := r.db.QueryRow(ctx, selectSQL+` WHERE id = $1`, id)
	return scanRequest(row)
}

// UpdateStatusTx applies a compare-and-set transition inside the caller's
// atomic unit, under the unit's context.
func (r *PostgresRepository) UpdateStatusTx(tx ledger.Tx, id string, from []Status, to Status, adminNotes string) error {
	pgtx, ok := tx.(ledger.PgxTx)
	if !ok {
		return errors.New("transaction does not join a postgres unit")
	}
	ctx := pgtx.Context()
	tag, err := pgtx.Pgx().Exec(ctx, updateStatusSQL, string(to), adminNotes, id, statusStrings(from))
	if err != nil {
		return err
	}
	return checkTransition(ctx, pgtx.Pgx(), tag.RowsAffected(), id)
}

// ListByStatus returns payout requests in the given status, oldest first.
func (r *PostgresRepository) ListByStatus(ctx context.Context, status Status) ([]Request, error) {
	rows, err := r.db.Query(ctx, selectSQL+` WHERE status = $1 ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

const selectSQL = `SELECT id, wallet_id, amount, bank_detail_id, status, admin_notes, created_at, updated_at
    FROM payout_requests`

const updateStatusSQL = `UPDATE payout_requests
    SET status = $1, admin_notes = $2, updated_at = now()
    WHERE id = $3 AND status = ANY($4)`

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func checkTransition(ctx context.Context, q querier, rowsAffected int64, id string) error {
	if rowsAffected > 0 {
		return nil
	}
	var status string
	if err := q.QueryRow(ctx, `SELECT status FROM payout_requests WHERE id = $1`, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return ledger.ErrStateConflict
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func scanRequest(row pgx.Row) (Request, error) {
	var (
		req       Request
		id        uuid.UUID
		status    string
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&id, &req.WalletID, &req.Amount, &req.BankDetailID, &status, &req.AdminNotes, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	req.ID = id.String()
	req.Status = Status(status)
	req.CreatedAt = createdAt.UTC()
	req.UpdatedAt = updatedAt.UTC()
	return req, nil
}
