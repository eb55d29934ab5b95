// Package recording runs the recording session state machine: it acquires
// sensor streams from a SensorEnvironment, buffers normalized samples and keeps
// the live environment classification current.
package recording

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/banshee-data/tunnel.report/internal/buffer"
	"github.com/banshee-data/tunnel.report/internal/classify"
	"github.com/banshee-data/tunnel.report/internal/export"
	"github.com/banshee-data/tunnel.report/internal/monitoring"
	"github.com/banshee-data/tunnel.report/internal/sensor"
	"github.com/banshee-data/tunnel.report/internal/timeutil"
)

const (
	// DefaultDisplayCapacity bounds the buffer the live status is computed from.
	DefaultDisplayCapacity = 1000
	// DefaultPreviewSize is the number of samples shown in the data preview.
	DefaultPreviewSize = 5
)

// State is the lifecycle state of the current session.
type State int

const (
	StateIdle State = iota
	StateActive
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = StateIdle
	case "active":
		*s = StateActive
	case "stopped":
		*s = StateStopped
	default:
		return fmt.Errorf("unknown session state %q", b)
	}
	return nil
}

// Info describes the current (or most recent) session.
type Info struct {
	SessionID    string          `json:"session_id,omitempty"`
	State        State           `json:"state"`
	StartTime    *time.Time      `json:"start_time,omitempty"`
	EndTime      *time.Time      `json:"end_time,omitempty"`
	SampleCount  int             `json:"sample_count"`
	TotalRecords int             `json:"total_records"`
	Status       classify.Status `json:"status"`
	Message      string          `json:"message"`
}

type session struct {
	id      string
	state   State
	start   time.Time
	end     time.Time
	full    *buffer.Buffer[sensor.Sample]
	display *buffer.Buffer[sensor.Sample]
	subs    []Subscription
}

// Recorder owns at most one session at a time. All methods are safe for
// concurrent use; sample ingestion is serialized.
type Recorder struct {
	env             SensorEnvironment
	clock           timeutil.Clock
	classifier      *classify.Classifier
	displayCapacity int

	mu         sync.Mutex
	session    *session
	starting   bool
	assessment classify.Assessment

	subscriberMu sync.Mutex
	subscribers  map[string]chan StatusUpdate
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock sets the clock used to stamp samples and sessions.
func WithClock(c timeutil.Clock) Option {
	return func(r *Recorder) { r.clock = c }
}

// WithClassifier replaces the default classifier.
func WithClassifier(c *classify.Classifier) Option {
	return func(r *Recorder) { r.classifier = c }
}

// WithDisplayCapacity sets the display buffer bound. Values below the
// classifier window are raised to it.
func WithDisplayCapacity(n int) Option {
	return func(r *Recorder) { r.displayCapacity = n }
}

// NewRecorder returns an idle Recorder driving env.
func NewRecorder(env SensorEnvironment, opts ...Option) *Recorder {
	r := &Recorder{
		env:             env,
		clock:           timeutil.RealClock{},
		classifier:      classify.Default(),
		displayCapacity: DefaultDisplayCapacity,
		subscribers:     make(map[string]chan StatusUpdate),
	}
	for _, opt := range opts {
		opt(r)
	}
	if w := r.classifier.WindowSize(); r.displayCapacity < w {
		r.displayCapacity = w
	}
	r.assessment = r.classifier.Assess(nil)
	return r
}

// Start requests sensor permission, subscribes to both event streams and
// begins a new session. It fails with ErrInvalidTransition while a session is
// active or another Start is waiting on permission.
func (r *Recorder) Start(ctx context.Context) (Info, error) {
	r.mu.Lock()
	if r.starting || r.activeLocked() {
		r.mu.Unlock()
		return Info{}, fmt.Errorf("%w: a session is already recording", ErrInvalidTransition)
	}
	r.starting = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.starting = false
		r.mu.Unlock()
	}()

	perm, err := r.env.RequestMotionPermission(ctx)
	if err != nil {
		monitoring.Logf("[Recorder] Permission request failed: %v", err)
		return Info{}, fmt.Errorf("%w: %w", errPermissionRequest, err)
	}
	if perm == PermissionDenied {
		monitoring.Logf("[Recorder] Motion permission denied")
		return Info{}, ErrPermissionDenied
	}
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}

	id := uuid.New().String()
	subs, err := r.subscribe(id)
	if err != nil {
		return Info{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = &session{
		id:      id,
		state:   StateActive,
		start:   r.clock.Now(),
		full:    buffer.New[sensor.Sample](buffer.Unbounded),
		display: buffer.New[sensor.Sample](r.displayCapacity),
		subs:    subs,
	}
	prev := r.assessment.Status
	r.assessment = r.classifier.Assess(nil)
	r.broadcastLocked(prev)

	monitoring.Logf("[Recorder] Started session %s (permission %s)", id, perm)
	return r.infoLocked(), nil
}

// subscribe acquires both streams for session id. On failure every handle
// acquired so far is released.
func (r *Recorder) subscribe(id string) (subs []Subscription, err error) {
	defer func() {
		if err != nil {
			if cerr := closeAll(subs); cerr != nil {
				monitoring.Logf("[Recorder] Releasing partial subscriptions: %v", cerr)
			}
			subs = nil
		}
	}()

	motion, err := r.env.SubscribeMotion(func(ev *sensor.MotionEvent) {
		r.deliver(id, sensor.MotionEventOf(ev))
	})
	if err != nil {
		return subs, fmt.Errorf("subscribing to motion events: %w", err)
	}
	subs = append(subs, motion)

	orientation, err := r.env.SubscribeOrientation(func(ev *sensor.OrientationEvent) {
		r.deliver(id, sensor.OrientationEventOf(ev))
	})
	if err != nil {
		return subs, fmt.Errorf("subscribing to orientation events: %w", err)
	}
	return append(subs, orientation), nil
}

func (r *Recorder) deliver(sessionID string, ev sensor.Event) {
	if err := r.ingest(sessionID, ev); err != nil {
		monitoring.Debugf("[Recorder] Dropped %s event: %v", ev.Kind, err)
	}
}

// OnSample ingests one event into the active session. Events with no payload
// are rejected without touching the buffers, and events arriving outside an
// active session return ErrInvalidTransition.
func (r *Recorder) OnSample(ev sensor.Event) error {
	return r.ingest("", ev)
}

func (r *Recorder) ingest(sessionID string, ev sensor.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.session
	if !r.activeLocked() || (sessionID != "" && s.id != sessionID) {
		return fmt.Errorf("%w: not recording", ErrInvalidTransition)
	}

	sample := sensor.Normalize(ev, r.clock.Now())
	s.full.Append(sample)
	s.display.Append(sample)

	prev := r.assessment.Status
	r.assessment = r.classifier.Assess(s.display.Tail(r.classifier.WindowSize()))
	if r.assessment.Status != prev {
		r.broadcastLocked(prev)
	}
	return nil
}

// Stop ends the active session and releases its subscriptions. The session is
// stopped even if releasing a subscription fails; the release errors are
// returned joined.
func (r *Recorder) Stop() (Info, error) {
	r.mu.Lock()
	if !r.activeLocked() {
		info := r.infoLocked()
		r.mu.Unlock()
		return info, fmt.Errorf("%w: no active session", ErrInvalidTransition)
	}
	s := r.session
	s.state = StateStopped
	s.end = r.clock.Now()
	subs := s.subs
	s.subs = nil
	info := r.infoLocked()
	r.mu.Unlock()

	// Released outside the lock: a handler blocked in ingest must be able to
	// finish before a transport's Close returns.
	err := closeAll(subs)
	monitoring.Logf("[Recorder] Stopped session %s after %s with %s samples",
		s.id, s.end.Sub(s.start).Round(time.Millisecond), humanize.Comma(int64(info.TotalRecords)))
	if err != nil {
		return info, fmt.Errorf("releasing sensor subscriptions: %w", err)
	}
	return info, nil
}

func closeAll(subs []Subscription) error {
	var errs []error
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Export serializes every sample recorded in the current or most recent
// session. It is allowed while recording and never changes state.
func (r *Recorder) Export() (*export.Document, error) {
	r.mu.Lock()
	var samples []sensor.Sample
	if r.session != nil {
		samples = r.session.full.Snapshot()
	}
	now := r.clock.Now()
	r.mu.Unlock()
	return export.Serialize(samples, now)
}

// CurrentStatus returns the latest classification. It is kept after Stop
// until the next Start.
func (r *Recorder) CurrentStatus() classify.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assessment.Status
}

// Assessment returns the latest classification with its window figures.
func (r *Recorder) Assessment() classify.Assessment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assessment
}

// SampleCount returns the number of samples in the display buffer.
func (r *Recorder) SampleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return 0
	}
	return r.session.display.Len()
}

// Recent returns up to n of the newest display samples, oldest first.
func (r *Recorder) Recent(n int) []sensor.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return []sensor.Sample{}
	}
	return r.session.display.Tail(n)
}

// Window returns the samples the current classification was computed from.
func (r *Recorder) Window() []sensor.Sample {
	return r.Recent(r.classifier.WindowSize())
}

// Thresholds returns the classifier parameters in use.
func (r *Recorder) Thresholds() classify.Thresholds {
	return r.classifier.Thresholds()
}

// State returns the current session state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return StateIdle
	}
	return r.session.state
}

// Info describes the current or most recent session.
func (r *Recorder) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.infoLocked()
}

func (r *Recorder) activeLocked() bool {
	return r.session != nil && r.session.state == StateActive
}

func (r *Recorder) infoLocked() Info {
	info := Info{
		State:   StateIdle,
		Status:  r.assessment.Status,
		Message: r.assessment.Status.Message(),
	}
	s := r.session
	if s == nil {
		return info
	}
	start := s.start
	info.SessionID = s.id
	info.State = s.state
	info.StartTime = &start
	if !s.end.IsZero() {
		end := s.end
		info.EndTime = &end
	}
	info.SampleCount = s.display.Len()
	info.TotalRecords = s.full.Len()
	return info
}

// Close stops any active session and closes all status subscribers.
func (r *Recorder) Close() error {
	var err error
	if r.State() == StateActive {
		if _, stopErr := r.Stop(); stopErr != nil && !errors.Is(stopErr, ErrInvalidTransition) {
			err = stopErr
		}
	}
	r.subscriberMu.Lock()
	defer r.subscriberMu.Unlock()
	for id, ch := range r.subscribers {
		close(ch)
		delete(r.subscribers, id)
	}
	return err
}
