package wallet

import "time"

// OwnerType distinguishes the two sides of the marketplace. Client and
// freelancer balances share the same wallet abstraction and the same ledger.
type OwnerType string

const (
	OwnerClient     OwnerType = "client"
	OwnerFreelancer OwnerType = "freelancer"
)

// Wallet is a balance holder owned by exactly one client or freelancer.
// The balance column is mutated only by the ledger store; this package owns
// the metadata and lazy creation.
type Wallet struct {
	ID        string
	OwnerID   string
	OwnerType OwnerType
	Currency  string
	Status    string
	CreatedAt time.Time
}

// Balance encapsulates available funds for a wallet.
type Balance struct {
	WalletID string
	Amount   int64
	AsOf     time.Time
}
