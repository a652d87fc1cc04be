// Package service wires the tally components into long-running services:
// the HTTP API server and the scheduler that requests tallies once voting
// windows close.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.vocdoni.io/dvote/log"

	"github.com/sealedvote/tally/ledger"
)

// TallyScheduler is a service that watches proposals and submits a
// decryption request as soon as a voting deadline passes. Requesting a
// tally is permissionless and repeatable, so the scheduler merely saves
// users a manual call; it retries on the next scan if a submission fails,
// and it backs off per proposal once a request is in flight.
type TallyScheduler struct {
	ledger   *ledger.Ledger
	interval time.Duration
	mu       sync.Mutex
	cancel   context.CancelFunc

	// requested remembers proposals with an in-flight request so a scan
	// does not resubmit on every tick.
	requested map[uint64]bool
}

// NewTallyScheduler creates a new TallyScheduler scanning at the given
// interval.
func NewTallyScheduler(l *ledger.Ledger, interval time.Duration) *TallyScheduler {
	return &TallyScheduler{
		ledger:    l,
		interval:  interval,
		requested: make(map[uint64]bool),
	}
}

// Start begins scanning for expired voting windows. It returns an error if
// the service is already running.
func (ts *TallyScheduler) Start(ctx context.Context) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.cancel != nil {
		return fmt.Errorf("service already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	ts.cancel = cancel

	go ts.scanLoop(ctx)
	return nil
}

// Stop halts the scheduler.
func (ts *TallyScheduler) Stop() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.cancel != nil {
		ts.cancel()
		ts.cancel = nil
	}
}

func (ts *TallyScheduler) scanLoop(ctx context.Context) {
	ticker := time.NewTicker(ts.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ts.scan()
		}
	}
}

// scan walks all proposals and requests a tally for every closed,
// unfinalized proposal without an in-flight request.
func (ts *TallyScheduler) scan() {
	ids, err := ts.ledger.ListProposals()
	if err != nil {
		log.Warnw("failed to list proposals", "error", err.Error())
		return
	}
	for _, id := range ids {
		p, err := ts.ledger.Proposal(id)
		if err != nil {
			log.Warnw("failed to load proposal", "proposalId", id, "error", err.Error())
			continue
		}
		if p.ResultsPublished {
			delete(ts.requested, id)
			continue
		}
		if p.Open(time.Now()) || ts.requested[id] {
			continue
		}
		requestID, err := ts.ledger.RequestTally(id, p.Creator)
		if err != nil {
			log.Warnw("failed to request tally", "proposalId", id, "error", err.Error())
			continue
		}
		ts.requested[id] = true
		log.Debugw("tally requested by scheduler", "proposalId", id, "requestId", requestID)
	}
}
