package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/memovox/memovox/internal/billing"
	"github.com/memovox/memovox/internal/recording"
	"github.com/memovox/memovox/internal/summarizer"
)

type storeMock struct {
	mu      sync.Mutex
	recs    []recording.Recording
	saves   int
	saveErr error
}

func (s *storeMock) Load() ([]recording.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(s.recs)
	if err != nil {
		return nil, err
	}
	var out []recording.Recording
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *storeMock) Save(recs []recording.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	raw, err := json.Marshal(recs)
	if err != nil {
		return err
	}
	var copied []recording.Recording
	if err := json.Unmarshal(raw, &copied); err != nil {
		return err
	}
	s.recs = copied
	return nil
}

func (s *storeMock) get(t *testing.T, id string) recording.Recording {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.recs {
		if s.recs[i].ID == id {
			return s.recs[i]
		}
	}
	t.Fatalf("recording %s not in store", id)
	return recording.Recording{}
}

type ledgerMock struct {
	mu        sync.Mutex
	balance   int64
	topUpAdds int64
	pricing   billing.Pricing
	entries   []billing.UsageEntry
	ensures   []int64
	chargeErr error
}

func newLedgerMock(balance int64) *ledgerMock {
	return &ledgerMock{
		balance: balance,
		pricing: billing.Pricing{UnitSeconds: 60, CostPerUnit: 1, FixedAICost: 1},
	}
}

func (l *ledgerMock) Ensure(ctx context.Context, amount int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensures = append(l.ensures, amount)
	if l.balance < amount && l.topUpAdds > 0 {
		l.balance += l.topUpAdds
		l.topUpAdds = 0
	}
	return l.balance >= amount, nil
}

func (l *ledgerMock) Charge(ctx context.Context, action string, amount int64, note string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.chargeErr != nil {
		return l.chargeErr
	}
	if l.balance < amount {
		return billing.ErrInsufficientBalance
	}
	l.balance -= amount
	l.entries = append(l.entries, billing.UsageEntry{
		Action:    action,
		Amount:    -amount,
		Note:      note,
		Timestamp: time.Now(),
	})
	return nil
}

func (l *ledgerMock) Pricing() billing.Pricing {
	return l.pricing
}

func (l *ledgerMock) entryCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type audioMock struct {
	mu        sync.Mutex
	trims     int
	failStart map[float64]bool
}

func (a *audioMock) Trim(ctx context.Context, src string, startSec, endSec float64) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failStart[startSec] {
		return "", fmt.Errorf("trim %s at %v: disk full", src, startSec)
	}
	a.trims++
	return fmt.Sprintf("%s_%04.0f", src, startSec), nil
}

func (a *audioMock) SpeedUp(ctx context.Context, src string, factor float64) (string, error) {
	return fmt.Sprintf("%s_x%v", src, factor), nil
}

type sttMock struct {
	mu      sync.Mutex
	results map[string]string
	errs    map[string]error
	calls   []string
}

func (s *sttMock) Transcribe(ctx context.Context, audioPath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, audioPath)
	if err := s.errs[audioPath]; err != nil {
		return "", err
	}
	if text, ok := s.results[audioPath]; ok {
		return text, nil
	}
	return "transcript of " + audioPath, nil
}

func (s *sttMock) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type summaryMock struct {
	mu     sync.Mutex
	inputs []string
	modes  []string
	metas  []summarizer.Meta
	text   string
	err    error
}

func (s *summaryMock) Summarize(ctx context.Context, transcript, modeKey string, meta summarizer.Meta) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.inputs = append(s.inputs, transcript)
	s.modes = append(s.modes, modeKey)
	s.metas = append(s.metas, meta)
	if s.text != "" {
		return s.text, nil
	}
	return "summary(" + modeKey + ")", nil
}

func (s *summaryMock) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inputs)
}

type pipelineFixture struct {
	store   *storeMock
	ledger  *ledgerMock
	audio   *audioMock
	stt     *sttMock
	summary *summaryMock
	p       *Pipeline
}

func newFixture(balance int64, recs ...recording.Recording) *pipelineFixture {
	f := &pipelineFixture{
		store:   &storeMock{recs: recs},
		ledger:  newLedgerMock(balance),
		audio:   &audioMock{},
		stt:     &sttMock{results: map[string]string{}, errs: map[string]error{}},
		summary: &summaryMock{},
	}
	f.p = New(f.store, f.ledger, NewPlanner(f.audio, 600), f.stt, f.summary, nil, Options{
		SegmentLengthSec:      600,
		ShortContentThreshold: 20,
		SummaryModes:          []string{"summary", "detailed"},
	})
	return f
}
