package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no wallet matched the lookup.
var ErrNotFound = errors.New("wallet not found")

// Repository persists wallet metadata.
type Repository interface {
	Create(ctx context.Context, w Wallet) error
	Get(ctx context.Context, id string) (Wallet, error)
	GetByOwner(ctx context.Context, ownerID string, ownerType OwnerType) (Wallet, error)
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet row with a zero starting balance. Creating the
// same owner/type pair twice is a no-op so lazy creation is race-safe.
func (r *PostgresRepository) Create(ctx context.Context, w Wallet) error {
	walletID, err := uuid.Parse(w.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, owner_type, currency, balance, status, created_at)
        VALUES ($1, $2, $3, $4, 0, $5, $6)
        ON CONFLICT (owner_id, owner_type) DO NOTHING`,
		walletID, w.OwnerID, string(w.OwnerType), w.Currency, w.Status, w.CreatedAt.UTC())
	return err
}

// Get fetches wallet metadata by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT id, owner_id, owner_type, currency, status, created_at
        FROM wallets WHERE id = $1`, id)
	return scanWallet(row)
}

// GetByOwner fetches the wallet held by an owner on one side of the
// marketplace.
func (r *PostgresRepository) GetByOwner(ctx context.Context, ownerID string, ownerType OwnerType) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT id, owner_id, owner_type, currency, status, created_at
        FROM wallets WHERE owner_id = $1 AND owner_type = $2`, ownerID, string(ownerType))
	return scanWallet(row)
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w         Wallet
		id        uuid.UUID
		ownerType string
		createdAt time.Time
	)
	if err := row.Scan(&id, &w.OwnerID, &ownerType, &w.Currency, &w.Status, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.OwnerType = OwnerType(ownerType)
	w.CreatedAt = createdAt.UTC()
	return w, nil
}
