// Package credits tracks caller balances and settles completed requests.
package credits

import (
	"context"
	"sync"
)

// Ledger tracks caller balances in account currency. The orchestrator
// checks Balance before dispatch and settles with Debit afterwards.
type Ledger interface {
	// Balance reports the caller's available balance.
	Balance(ctx context.Context, caller string) (float64, error)

	// Debit subtracts amount from the caller's balance. Settlement runs
	// after the response has been produced, so a balance may go negative;
	// the caller is gated on the next request instead.
	Debit(ctx context.Context, caller string, amount float64) error
}

// MemoryLedger is an in-process ledger seeded from configuration.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]float64
	fallback float64
}

// NewMemoryLedger creates a ledger holding the seeded balances. Callers
// absent from seed start at defaultBalance on first sight.
func NewMemoryLedger(seed map[string]float64, defaultBalance float64) *MemoryLedger {
	balances := make(map[string]float64, len(seed))
	for caller, balance := range seed {
		balances[caller] = balance
	}
	return &MemoryLedger{
		balances: balances,
		fallback: defaultBalance,
	}
}

// Balance implements Ledger.
func (l *MemoryLedger) Balance(ctx context.Context, caller string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if balance, ok := l.balances[caller]; ok {
		return balance, nil
	}
	return l.fallback, nil
}

// Debit implements Ledger.
func (l *MemoryLedger) Debit(ctx context.Context, caller string, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.balances[caller]; !ok {
		l.balances[caller] = l.fallback
	}
	l.balances[caller] -= amount
	return nil
}
