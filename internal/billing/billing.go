// Package billing meters pipeline usage against a prepaid credit balance.
package billing

import (
	"context"
	"errors"
	"math"
	"time"
)

// UsageEntry is one append-only line in the usage log. Amount is negative
// for charges and positive for top-ups.
type UsageEntry struct {
	Action    string    `json:"action"`
	Amount    int64     `json:"amount"`
	Note      string    `json:"note"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	ActionTranscribe = "transcribe"
	ActionSummarize  = "summarize"
	ActionTopUp      = "topup"
)

// ErrInsufficientBalance is returned by the account store when a debit
// would take the balance negative.
var ErrInsufficientBalance = errors.New("insufficient balance")

// AccountStore persists the balance and the usage log. Debit must apply
// the balance decrement and the log append as a single transaction.
type AccountStore interface {
	Balance() (int64, error)
	Credit(amount int64, entry UsageEntry) error
	Debit(amount int64, entry UsageEntry) error
	UsageLog() ([]UsageEntry, error)
}

// Authenticator confirms the user is signed in before any balance check.
type Authenticator interface {
	Login(ctx context.Context) error
}

// TopUpFlow drives the external purchase flow when the balance falls
// short. It blocks until the flow resolves; the balance is re-read
// afterward rather than trusting the flow's outcome.
type TopUpFlow interface {
	RequestTopUp(ctx context.Context, missing int64) error
}

// UsagePublisher receives every confirmed ledger mutation. Best-effort:
// publish failures never roll back a charge.
type UsagePublisher interface {
	PublishUsage(ctx context.Context, entry UsageEntry, balance int64)
}

// MultiPublisher fans one ledger mutation out to several publishers.
type MultiPublisher []UsagePublisher

func (m MultiPublisher) PublishUsage(ctx context.Context, entry UsageEntry, balance int64) {
	for _, p := range m {
		p.PublishUsage(ctx, entry, balance)
	}
}

// Pricing holds the metering constants.
type Pricing struct {
	UnitSeconds float64
	CostPerUnit int64
	FixedAICost int64
}

// CostFor computes the credits required for a billable duration:
// ceil(seconds / UnitSeconds) * CostPerUnit.
func (p Pricing) CostFor(seconds float64) int64 {
	if seconds <= 0 {
		return 0
	}
	units := int64(math.Ceil(seconds / p.UnitSeconds))
	return units * p.CostPerUnit
}
