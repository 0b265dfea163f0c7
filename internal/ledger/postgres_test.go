package ledger

import (
	"context"
	"testing"
)

type ctxKey struct{}

func TestPgTxCarriesUnitContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), ctxKey{}, "settlement")
	tx := &pgTx{ctx: ctx}

	got := tx.Context()
	if got.Value(ctxKey{}) != "settlement" {
		t.Fatalf("joined writes must run under the unit's context, got %v", got)
	}
}
