package journal

import (
	"context"
	"sync"
)

// Shared serializes access to a journal written by concurrent runs.
type Shared struct {
	mu sync.Mutex
	j  Journal
}

// NewShared wraps j. RecordRun is forwarded when j is a RunRecorder.
func NewShared(j Journal) *Shared { return &Shared{j: j} }

func (s *Shared) RecordTrade(r TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.j.RecordTrade(r)
}

func (s *Shared) RecordOrder(r OrderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.j.RecordOrder(r)
}

func (s *Shared) RecordEquity(r EquitySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.j.RecordEquity(r)
}

func (s *Shared) RecordRun(ctx context.Context, run BacktestRun) error {
	rr, ok := s.j.(RunRecorder)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return rr.RecordRun(ctx, run)
}

func (s *Shared) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.j.Close()
}
