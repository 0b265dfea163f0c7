package refund

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lancepay/lancepay/internal/ledger"
)

// ErrNotFound indicates no refund request matched the lookup.
var ErrNotFound = errors.New("refund request not found")

// Repository persists refund requests with compare-and-set status
// transitions, mirroring the payment repository contract. Create enforces
// the at-most-one-pending-refund-per-payment rule atomically and fails with
// ErrDuplicatePending, so concurrent creates cannot all slip past a
// check-then-insert.
type Repository interface {
	Create(ctx context.Context, r Request) error
	Get(ctx context.Context, id string) (Request, error)
	UpdateStatusTx(tx ledger.Tx, id string, from []Status, to Status, adminNotes, processedByID string) error
	ListByStatus(ctx context.Context, status Status) ([]Request, error)
}

// PostgresRepository stores refund requests in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a refund request row. The partial unique index
// uq_refund_requests_pending (payment_request_id WHERE status = 'pending')
// rejects a second open refund for the same payment; the unique violation
// maps to ErrDuplicatePending.
func (r *PostgresRepository) Create(ctx context.Context, req Request) error {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO refund_requests
        (id, payment_request_id, client_id, freelancer_id, amount, reason, status, admin_notes, processed_by_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, req.PaymentRequestID, req.ClientID, req.FreelancerID, req.Amount, req.Reason,
		string(req.Status), req.AdminNotes, nullable(req.ProcessedByID), req.CreatedAt.UTC(), req.UpdatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return ErrDuplicatePending
	}
	return err
}

// Get fetches a refund request by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Request, error) {
	row := r.db.QueryRow(ctx, selectSQL+` WHERE id = $1`, id)
	return scanRequest(row)
}

// UpdateStatusTx applies a compare-and-set transition inside the caller's
// atomic unit, recording admin notes and the acting admin.
func (r *PostgresRepository) UpdateStatusTx(tx ledger.Tx, id string, from []Status, to Status, adminNotes, processedByID string) error {
	pgtx, ok := tx.(ledger.PgxTx)
	if !ok {
		return errors.New("transaction does not join a postgres unit")
	}
	ctx := pgtx.Context()
	tag, err := pgtx.Pgx().Exec(ctx, updateStatusSQL, string(to), adminNotes, nullable(processedByID), id, statusStrings(from))
	if err != nil {
		return err
	}
	return checkTransition(ctx, pgtx.Pgx(), tag.RowsAffected(), id)
}

// ListByStatus returns refund requests in the given status, oldest first so
// admins work the queue in arrival order.
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

const selectSQL = `SELECT id, payment_request_id, client_id, freelancer_id, amount, reason, status, admin_notes, processed_by_id, created_at, updated_at
    FROM refund_requests`

const uniqueViolationCode = "23505"

const updateStatusSQL = `UPDATE refund_requests
    SET status = $1, admin_notes = $2, processed_by_id = COALESCE($3, processed_by_id), updated_at = now()
    WHERE id = $4 AND status = ANY($5)`

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func checkTransition(ctx context.Context, q querier, rowsAffected int64, id string) error {
	if rowsAffected > 0 {
		return nil
	}
	var status string
	if err := q.QueryRow(ctx, `SELECT status FROM refund_requests WHERE id = $1`, id).Scan(&status); err != nil {
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

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanRequest(row pgx.Row) (Request, error) {
	var (
		req         Request
		id          uuid.UUID
		status      string
		processedBy *string
		createdAt   time.Time
		updatedAt   time.Time
	)
	err := row.Scan(&id, &req.PaymentRequestID, &req.ClientID, &req.FreelancerID, &req.Amount,
		&req.Reason, &status, &req.AdminNotes, &processedBy, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	req.ID = id.String()
	req.Status = Status(status)
	if processedBy != nil {
		req.ProcessedByID = *processedBy
	}
	req.CreatedAt = createdAt.UTC()
	req.UpdatedAt = updatedAt.UTC()
	return req, nil
}
