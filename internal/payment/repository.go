package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lancepay/lancepay/internal/ledger"
)

// ErrNotFound indicates no payment request matched the lookup.
var ErrNotFound = errors.New("payment request not found")

// Repository persists payment requests. Status updates are compare-and-set:
// they only apply when the current status is one of the expected values,
// otherwise they fail with ledger.ErrStateConflict. Every status write goes
// through UpdateStatusTx inside an atomic unit, so transitions serialize
// with any fund movement instead of racing it.
type Repository interface {
	Create(ctx context.Context, r Request) error
	Get(ctx context.Context, id string) (Request, error)
	UpdateStatusTx(tx ledger.Tx, id string, from []Status, to Status) error
	ListByConversation(ctx context.Context, conversationID string) ([]Request, error)
}

// PostgresRepository stores payment requests in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a payment request row.
func (r *PostgresRepository) Create(ctx context.Context, req Request) error {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO payment_requests
        (id, client_id, freelancer_id, conversation_id, amount, currency, description, status, due_date, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, req.ClientID, req.FreelancerID, req.ConversationID, req.Amount, req.Currency,
		req.Description, string(req.Status), req.DueDate, req.CreatedAt.UTC(), req.UpdatedAt.UTC())
	return err
}

// Get fetches a payment request by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Request, error) {
	row := r.db.QueryRow(ctx, `SELECT id, client_id, freelancer_id, conversation_id, amount, currency, description, status, due_date, created_at, updated_at
        FROM payment_requests WHERE id = $1`, id)
	return scanRequest(row)
}

// UpdateStatusTx applies the compare-and-set inside the caller's atomic
// unit, under the unit's context.
func (r *PostgresRepository) UpdateStatusTx(tx ledger.Tx, id string, from []Status, to Status) error {
	pgtx, ok := tx.(ledger.PgxTx)
	if !ok {
		return errors.New("transaction does not join a postgres unit")
	}
	ctx := pgtx.Context()
	tag, err := pgtx.Pgx().Exec(ctx, updateStatusSQL, string(to), id, statusStrings(from))
	if err != nil {
		return err
	}
	return checkTransition(ctx, pgtx.Pgx(), tag.RowsAffected(), id)
}

// ListByConversation returns the requests attached to one conversation,
// newest first.
func (r *PostgresRepository) ListByConversation(ctx context.Context, conversationID string) ([]Request, error) {
	rows, err := r.db.Query(ctx, `SELECT id, client_id, freelancer_id, conversation_id, amount, currency, description, status, due_date, created_at, updated_at
        FROM payment_requests WHERE conversation_id = $1 ORDER BY created_at DESC`, conversationID)
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

const updateStatusSQL = `UPDATE payment_requests SET status = $1, updated_at = now() WHERE id = $2 AND status = ANY($3)`

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func checkTransition(ctx context.Context, q querier, rowsAffected int64, id string) error {
	if rowsAffected > 0 {
		return nil
	}
	var status string
	if err := q.QueryRow(ctx, `SELECT status FROM payment_requests WHERE id = $1`, id).Scan(&status); err != nil {
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
		dueDate   *time.Time
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&id, &req.ClientID, &req.FreelancerID, &req.ConversationID, &req.Amount,
		&req.Currency, &req.Description, &status, &dueDate, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	req.ID = id.String()
	req.Status = Status(status)
	req.DueDate = dueDate
	req.CreatedAt = createdAt.UTC()
	req.UpdatedAt = updatedAt.UTC()
	return req, nil
}
