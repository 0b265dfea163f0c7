package ledger

// SeedBalance is a test helper that sets a wallet balance directly when
// using the in-memory store.
func SeedBalance(s Store, walletID string, amount int64) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[walletID] = amount
	}
}
