package bank

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresProvider reads bank details from the bank_details table owned by
// the bank-details collaborator.
type PostgresProvider struct {
	db *pgxpool.Pool
}

// NewPostgresProvider builds a provider backed by PostgreSQL.
func NewPostgresProvider(db *pgxpool.Pool) *PostgresProvider {
	return &PostgresProvider{db: db}
}

// Lookup resolves a bank detail row, masking the account number before it
// leaves the package.
func (p *PostgresProvider) Lookup(ctx context.Context, bankDetailID string) (Details, error) {
	var (
		d             Details
		accountNumber string
	)
	err := p.db.QueryRow(ctx, `SELECT id, bank_name, account_number FROM bank_details WHERE id = $1`,
		bankDetailID).Scan(&d.ID, &d.BankName, &accountNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return Details{}, ErrDetailNotFound
	}
	if err != nil {
		return Details{}, err
	}
	d.AccountLast4 = MaskAccountNumber(accountNumber)
	return d, nil
}
