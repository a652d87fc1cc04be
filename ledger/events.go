package ledger

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"go.vocdoni.io/dvote/log"
)

// EventKind identifies the kind of notification emitted by the ledger.
type EventKind string

const (
	// EventProposalCreated is emitted when a new proposal is stored.
	EventProposalCreated EventKind = "proposalCreated"
	// EventVoteCast is emitted when a vote is folded into the running
	// sums. It deliberately carries no information about the vote's
	// direction.
	EventVoteCast EventKind = "voteCast"
	// EventTallyRequested is emitted when the encrypted tallies are
	// submitted for decryption.
	EventTallyRequested EventKind = "tallyRequested"
	// EventResultsPublished is emitted on the one-time finalization of a
	// proposal.
	EventResultsPublished EventKind = "resultsPublished"
)

// Event is a notification for external observers such as indexers or
// front-ends. Events are observability only, never part of the correctness
// contract.
type Event struct {
	Kind        EventKind      `json:"kind"`
	ProposalID  uint64         `json:"proposalId"`
	Creator     common.Address `json:"creator,omitempty"`
	Voter       common.Address `json:"voter,omitempty"`
	Description string         `json:"description,omitempty"`
	Deadline    time.Time      `json:"deadline"`
	RequestID   uint64         `json:"requestId,omitempty"`
	For         uint64         `json:"for,omitempty"`
	Against     uint64         `json:"against,omitempty"`
}

// eventFeed fans events out to subscribers over buffered channels.
type eventFeed struct {
	mu   sync.Mutex
	subs map[uint64]chan Event
	next uint64
}

func newEventFeed() *eventFeed {
	return &eventFeed{subs: make(map[uint64]chan Event)}
}

// subscribe registers a new subscriber with the given channel buffer. The
// returned cancel function unregisters it and closes the channel.
func (f *eventFeed) subscribe(buffer int) (<-chan Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	ch := make(chan Event, buffer)
	f.subs[id] = ch
	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
}

// publish delivers the event to every subscriber without blocking. A
// subscriber with a full buffer misses the event.
func (f *eventFeed) publish(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- e:
		default:
			log.Warnw("event subscriber buffer full, dropping event",
				"kind", string(e.Kind), "proposalId", e.ProposalID)
		}
	}
}

// Subscribe registers an observer for ledger notifications. The returned
// cancel function must be called when the observer is done.
func (l *Ledger) Subscribe(buffer int) (<-chan Event, func()) {
	return l.feed.subscribe(buffer)
}
