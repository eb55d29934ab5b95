package recording

import (
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/tunnel.report/internal/classify"
)

// statusBuffer is the per-subscriber backlog; updates beyond it are dropped.
const statusBuffer = 16

// StatusUpdate is broadcast whenever the classification label changes and
// when a session starts.
type StatusUpdate struct {
	SessionID   string          `json:"session_id"`
	Status      classify.Status `json:"status"`
	Previous    classify.Status `json:"previous"`
	Message     string          `json:"message"`
	SampleCount int             `json:"sample_count"`
	At          time.Time       `json:"at"`
}

// Subscribe returns a channel of status updates. The ID is used to
// unsubscribe.
func (r *Recorder) Subscribe() (string, <-chan StatusUpdate) {
	id := uuid.New().String()
	ch := make(chan StatusUpdate, statusBuffer)
	r.subscriberMu.Lock()
	defer r.subscriberMu.Unlock()
	r.subscribers[id] = ch
	return id, ch
}

// Unsubscribe closes and removes a status subscriber.
func (r *Recorder) Unsubscribe(id string) {
	r.subscriberMu.Lock()
	defer r.subscriberMu.Unlock()
	if ch, ok := r.subscribers[id]; ok {
		close(ch)
		delete(r.subscribers, id)
	}
}

// broadcastLocked fans the current assessment out without blocking. Callers
// hold r.mu so updates are delivered in classification order.
func (r *Recorder) broadcastLocked(prev classify.Status) {
	u := StatusUpdate{
		Status:   r.assessment.Status,
		Previous: prev,
		Message:  r.assessment.Status.Message(),
		At:       r.clock.Now(),
	}
	if r.session != nil {
		u.SessionID = r.session.id
		u.SampleCount = r.session.display.Len()
	}

	r.subscriberMu.Lock()
	defer r.subscriberMu.Unlock()
	for _, ch := range r.subscribers {
		select {
		case ch <- u:
		default:
			// slow subscriber; skip rather than stall ingestion
		}
	}
}
