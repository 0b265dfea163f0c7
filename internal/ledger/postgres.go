package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists wallet balances and ledger entries in PostgreSQL.
// Balance mutations take a `FOR UPDATE` row lock on the wallet before any
// read-modify-write, so concurrent callers on the same wallet serialize at
// the database.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// PgxTx is implemented by the Postgres-backed Tx so request repositories can
// join their status writes to the same database transaction, under the same
// request context.
type PgxTx interface {
	Pgx() pgx.Tx
	Context() context.Context
}

type pgTx struct {
	ctx   context.Context
	tx    pgx.Tx
	hooks []func()
}

// Pgx exposes the underlying database transaction.
func (t *pgTx) Pgx() pgx.Tx { return t.tx }

// Context returns the context the atomic unit runs under, so joined writes
// inherit its cancellation and deadline.
func (t *pgTx) Context() context.Context { return t.ctx }

// RunAtomic executes fn inside one database transaction. Any error from fn
// rolls everything back; registered OnCommit hooks run only after a
// successful commit.
func (s *PostgresStore) RunAtomic(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	handle := &pgTx{ctx: ctx, tx: tx}
	if err := fn(handle); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	for _, hook := range handle.hooks {
		hook()
	}
	return nil
}

func (t *pgTx) Balance(walletID string) (int64, error) {
	var balance int64
	err := t.tx.QueryRow(t.ctx, `SELECT balance FROM wallets WHERE id = $1 FOR UPDATE`, walletID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

func (t *pgTx) Credit(walletID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}
	var balance int64
	err := t.tx.QueryRow(t.ctx, `UPDATE wallets SET balance = balance + $1 WHERE id = $2 RETURNING balance`, amount, walletID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrWalletNotFound
	}
	return balance, err
}

func (t *pgTx) Debit(walletID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}
	var balance int64
	err := t.tx.QueryRow(t.ctx, `SELECT balance FROM wallets WHERE id = $1 FOR UPDATE`, walletID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrWalletNotFound
	}
	if err != nil {
		return 0, err
	}
	if balance < amount {
		return 0, ErrInsufficientFunds
	}
	balance -= amount
	if _, err := t.tx.Exec(t.ctx, `UPDATE wallets SET balance = $1 WHERE id = $2`, balance, walletID); err != nil {
		return 0, err
	}
	return balance, nil
}

func (t *pgTx) AppendEntry(e Entry) (string, error) {
	if e.Amount <= 0 {
		return "", fmt.Errorf("entry amount must be positive")
	}
	if e.Direction != DirectionCredit && e.Direction != DirectionDebit {
		return "", fmt.Errorf("invalid entry direction %q", e.Direction)
	}
	if e.Status == "" {
		e.Status = EntryStatusPending
	}
	entryID := uuid.New()
	_, err := t.tx.Exec(t.ctx, `INSERT INTO ledger_entries (id, wallet_id, amount, direction, status, description, related_request_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entryID, e.WalletID, e.Amount, string(e.Direction), string(e.Status), e.Description, e.RelatedRequestID, time.Now().UTC())
	if err != nil {
		return "", err
	}
	return entryID.String(), nil
}

func (t *pgTx) FinalizeEntry(entryID string, status EntryStatus) error {
	if status != EntryStatusCompleted && status != EntryStatusRejected {
		return fmt.Errorf("invalid terminal entry status %q", status)
	}
	tag, err := t.tx.Exec(t.ctx, `UPDATE ledger_entries SET status = $1 WHERE id = $2 AND status = $3`,
		string(status), entryID, string(EntryStatusPending))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (t *pgTx) PendingDebitFor(relatedRequestID string) (Entry, error) {
	row := t.tx.QueryRow(t.ctx, `SELECT id, wallet_id, amount, direction, status, description, related_request_id, created_at
        FROM ledger_entries
        WHERE related_request_id = $1 AND direction = $2 AND status = $3
        FOR UPDATE`, relatedRequestID, string(DirectionDebit), string(EntryStatusPending))
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	return e, err
}

func (t *pgTx) OnCommit(fn func()) {
	t.hooks = append(t.hooks, fn)
}

// Balance returns the committed balance for a wallet; unknown wallets read
// as zero until their first entry.
func (s *PostgresStore) Balance(ctx context.Context, walletID string) (int64, error) {
	var balance int64
	err := s.db.QueryRow(ctx, `SELECT balance FROM wallets WHERE id = $1`, walletID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

// Entries lists a wallet's ledger entries, newest first.
func (s *PostgresStore) Entries(ctx context.Context, walletID string) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `SELECT id, wallet_id, amount, direction, status, description, related_request_id, created_at
        FROM ledger_entries WHERE wallet_id = $1 ORDER BY created_at DESC`, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// EntriesForRequest lists every entry created on behalf of one request.
func (s *PostgresStore) EntriesForRequest(ctx context.Context, relatedRequestID string) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `SELECT id, wallet_id, amount, direction, status, description, related_request_id, created_at
        FROM ledger_entries WHERE related_request_id = $1 ORDER BY created_at ASC`, relatedRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e         Entry
		id        uuid.UUID
		direction string
		status    string
		createdAt time.Time
	)
	if err := row.Scan(&id, &e.WalletID, &e.Amount, &direction, &status, &e.Description, &e.RelatedRequestID, &createdAt); err != nil {
		return Entry{}, err
	}
	e.ID = id.String()
	e.Direction = Direction(direction)
	e.Status = EntryStatus(status)
	e.CreatedAt = createdAt.UTC()
	return e, nil
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
