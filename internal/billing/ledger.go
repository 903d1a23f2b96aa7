package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/memovox/memovox/internal/metrics"
)

// Ledger coordinates balance checks, charges, and top-ups. Charges are
// only issued after the external action they pay for has succeeded; the
// pipeline's task gate serializes the check-then-charge sequence.
type Ledger struct {
	store     AccountStore
	auth      Authenticator
	topUp     TopUpFlow
	publisher UsagePublisher
	pricing   Pricing
	now       func() time.Time
}

func NewLedger(store AccountStore, auth Authenticator, topUp TopUpFlow, pricing Pricing) *Ledger {
	return &Ledger{
		store:   store,
		auth:    auth,
		topUp:   topUp,
		pricing: pricing,
		now:     time.Now,
	}
}

// SetPublisher attaches an optional usage event publisher.
func (l *Ledger) SetPublisher(p UsagePublisher) {
	l.publisher = p
}

func (l *Ledger) Pricing() Pricing {
	return l.pricing
}

func (l *Ledger) Balance() (int64, error) {
	return l.store.Balance()
}

func (l *Ledger) UsageLog() ([]UsageEntry, error) {
	return l.store.UsageLog()
}

// Ensure confirms that amount credits are available before the caller
// proceeds. It requires login, and on a shortfall drives the top-up flow
// once and re-reads the balance. It never mutates anything: either the
// full amount is confirmed available, or it returns false.
func (l *Ledger) Ensure(ctx context.Context, amount int64) (bool, error) {
	if amount <= 0 {
		return true, nil
	}

	if l.auth != nil {
		if err := l.auth.Login(ctx); err != nil {
			return false, fmt.Errorf("login: %w", err)
		}
	}

	balance, err := l.store.Balance()
	if err != nil {
		return false, fmt.Errorf("read balance: %w", err)
	}
	if balance >= amount {
		return true, nil
	}

	if l.topUp == nil {
		return false, nil
	}

	if err := l.topUp.RequestTopUp(ctx, amount-balance); err != nil {
		log.Debug().Err(err).Int64("missing", amount-balance).Msg("top-up flow declined")
		return false, nil
	}

	balance, err = l.store.Balance()
	if err != nil {
		return false, fmt.Errorf("re-read balance: %w", err)
	}
	return balance >= amount, nil
}

// Charge debits amount credits and appends the usage entry. Callers only
// invoke it after the corresponding external action succeeded.
func (l *Ledger) Charge(ctx context.Context, action string, amount int64, note string) error {
	if amount <= 0 {
		return nil
	}

	entry := UsageEntry{
		Action:    action,
		Amount:    -amount,
		Note:      note,
		Timestamp: l.now().UTC(),
	}
	if err := l.store.Debit(amount, entry); err != nil {
		return fmt.Errorf("debit %d credits: %w", amount, err)
	}

	l.publish(ctx, entry)
	return nil
}

// TopUp credits the balance after an external purchase resolved.
func (l *Ledger) TopUp(ctx context.Context, amount int64, note string) error {
	if amount <= 0 {
		return fmt.Errorf("top-up amount must be positive, got %d", amount)
	}

	entry := UsageEntry{
		Action:    ActionTopUp,
		Amount:    amount,
		Note:      note,
		Timestamp: l.now().UTC(),
	}
	if err := l.store.Credit(amount, entry); err != nil {
		return fmt.Errorf("credit %d credits: %w", amount, err)
	}

	metrics.Default.TopUpsTotal.Inc()
	l.publish(ctx, entry)
	return nil
}

func (l *Ledger) publish(ctx context.Context, entry UsageEntry) {
	if l.publisher == nil {
		return
	}
	balance, err := l.store.Balance()
	if err != nil {
		log.Warn().Err(err).Msg("read balance for usage event")
		balance = -1
	}
	l.publisher.PublishUsage(ctx, entry, balance)
}
