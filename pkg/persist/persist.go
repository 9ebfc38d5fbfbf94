// Package persist stores the legacy room's document durably. Keyed room
// documents are intentionally ephemeral and never pass through here.
package persist

import (
	"log"
	"sync"

	"contract-editor/pkg/document"
)

// Gateway loads and saves the legacy document. Load returns (nil, nil)
// when no document exists or the stored one is structurally invalid. Save
// enqueues an asynchronous write and never blocks the caller; writes are
// serialized and coalesced, and failures are logged without affecting the
// in-memory document.
type Gateway interface {
	Load() (*document.Document, error)
	Save(snapshot []byte)
	Close() error
}

// saveQueue serializes writes on a single worker and coalesces bursts so
// only the latest snapshot hits storage. Save must not be called after
// close.
type saveQueue struct {
	mu      sync.Mutex
	pending []byte
	kick    chan struct{}
	done    chan struct{}
	write   func([]byte) error
}

func newSaveQueue(write func([]byte) error) *saveQueue {
	q := &saveQueue{
		kick:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		write: write,
	}
	go q.run()
	return q
}

func (q *saveQueue) enqueue(data []byte) {
	q.mu.Lock()
	q.pending = data
	q.mu.Unlock()
	select {
	case q.kick <- struct{}{}:
	default: // a write is already scheduled; it will pick up the latest
	}
}

func (q *saveQueue) run() {
	defer close(q.done)
	for range q.kick {
		q.flush()
	}
	// Final flush so a snapshot enqueued just before close still lands.
	q.flush()
}

func (q *saveQueue) flush() {
	q.mu.Lock()
	data := q.pending
	q.pending = nil
	q.mu.Unlock()
	if data == nil {
		return
	}
	if err := q.write(data); err != nil {
		log.Printf("persist: save failed: %v", err)
	}
}

func (q *saveQueue) close() {
	close(q.kick)
	<-q.done
}
