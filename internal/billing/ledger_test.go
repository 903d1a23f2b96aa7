package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type accountMock struct {
	mu      sync.Mutex
	balance int64
	log     []UsageEntry

	balanceErr error
}

func (a *accountMock) Balance() (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.balanceErr != nil {
		return 0, a.balanceErr
	}
	return a.balance, nil
}

func (a *accountMock) Credit(amount int64, entry UsageEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balance += amount
	a.log = append(a.log, entry)
	return nil
}

func (a *accountMock) Debit(amount int64, entry UsageEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.balance < amount {
		return ErrInsufficientBalance
	}
	a.balance -= amount
	a.log = append(a.log, entry)
	return nil
}

func (a *accountMock) UsageLog() ([]UsageEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]UsageEntry(nil), a.log...), nil
}

type authMock struct {
	calls int
	err   error
}

func (a *authMock) Login(context.Context) error {
	a.calls++
	return a.err
}

type topUpMock struct {
	calls  int
	grant  int64
	target *accountMock
	err    error
}

func (tp *topUpMock) RequestTopUp(_ context.Context, missing int64) error {
	tp.calls++
	if tp.err != nil {
		return tp.err
	}
	tp.target.mu.Lock()
	tp.target.balance += tp.grant
	tp.target.mu.Unlock()
	return nil
}

func TestCostFor(t *testing.T) {
	pricing := Pricing{UnitSeconds: 60, CostPerUnit: 5}

	cases := []struct {
		seconds float64
		want    int64
	}{
		{0, 0},
		{-10, 0},
		{1, 5},
		{60, 5},
		{61, 10},
		{600, 50},
	}
	for _, tc := range cases {
		if got := pricing.CostFor(tc.seconds); got != tc.want {
			t.Fatalf("CostFor(%v) = %d, want %d", tc.seconds, got, tc.want)
		}
	}
}

func TestEnsureSufficientBalance(t *testing.T) {
	account := &accountMock{balance: 10}
	auth := &authMock{}
	ledger := NewLedger(account, auth, nil, Pricing{UnitSeconds: 60, CostPerUnit: 1})

	ok, err := ledger.Ensure(context.Background(), 5)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected sufficient balance")
	}
	if auth.calls != 1 {
		t.Fatalf("expected login before balance check, got %d calls", auth.calls)
	}
}

func TestEnsureZeroAmountSkipsEverything(t *testing.T) {
	auth := &authMock{err: errors.New("should not be called")}
	ledger := NewLedger(&accountMock{}, auth, nil, Pricing{UnitSeconds: 60, CostPerUnit: 1})

	ok, err := ledger.Ensure(context.Background(), 0)
	if err != nil || !ok {
		t.Fatalf("zero amount must be trivially available, got ok=%v err=%v", ok, err)
	}
	if auth.calls != 0 {
		t.Fatalf("zero amount must not trigger login")
	}
}

func TestEnsureTopUpRecovers(t *testing.T) {
	account := &accountMock{balance: 2}
	topUp := &topUpMock{grant: 10, target: account}
	ledger := NewLedger(account, &authMock{}, topUp, Pricing{UnitSeconds: 60, CostPerUnit: 1})

	ok, err := ledger.Ensure(context.Background(), 5)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected balance sufficient after top-up")
	}
	if topUp.calls != 1 {
		t.Fatalf("expected one top-up request, got %d", topUp.calls)
	}
}

func TestEnsureDeclinedTopUpReturnsFalse(t *testing.T) {
	account := &accountMock{balance: 0}
	topUp := &topUpMock{err: errors.New("user cancelled"), target: account}
	ledger := NewLedger(account, &authMock{}, topUp, Pricing{UnitSeconds: 60, CostPerUnit: 5})

	ok, err := ledger.Ensure(context.Background(), 5)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if ok {
		t.Fatalf("declined top-up must leave Ensure false")
	}

	balance, _ := account.Balance()
	if balance != 0 {
		t.Fatalf("Ensure mutated balance: %d", balance)
	}
	log, _ := account.UsageLog()
	if len(log) != 0 {
		t.Fatalf("Ensure appended usage entries: %+v", log)
	}
}

func TestChargeAppendsNegativeEntry(t *testing.T) {
	account := &accountMock{balance: 10}
	ledger := NewLedger(account, nil, nil, Pricing{UnitSeconds: 60, CostPerUnit: 1})

	if err := ledger.Charge(context.Background(), ActionTranscribe, 3, "segment 00:00–10:00"); err != nil {
		t.Fatalf("Charge failed: %v", err)
	}

	balance, _ := account.Balance()
	if balance != 7 {
		t.Fatalf("expected balance 7, got %d", balance)
	}
	log, _ := account.UsageLog()
	if len(log) != 1 || log[0].Amount != -3 || log[0].Action != ActionTranscribe {
		t.Fatalf("unexpected usage entry: %+v", log)
	}
}

func TestTopUpRejectsNonPositive(t *testing.T) {
	ledger := NewLedger(&accountMock{}, nil, nil, Pricing{UnitSeconds: 60, CostPerUnit: 1})
	if err := ledger.TopUp(context.Background(), 0, "nothing"); err == nil {
		t.Fatalf("expected error for zero top-up")
	}
}
