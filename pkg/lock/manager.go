// Package lock owns the face lock state machine: acquiring a lock on
// one enrolled identity, re-verifying it every frame behind a spatial
// gate, running action detection on the locked face, and releasing the
// lock manually or after sustained verification failure. Exactly one
// session may be active per manager; each session owns one history
// file.
package lock

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MrCodeEU/facelock/pkg/action"
	"github.com/MrCodeEU/facelock/pkg/camera"
	"github.com/MrCodeEU/facelock/pkg/geometry"
	"github.com/MrCodeEU/facelock/pkg/history"
	"github.com/MrCodeEU/facelock/pkg/logging"
	"github.com/MrCodeEU/facelock/pkg/recognition"
)

// State is the lock state. There is no terminal state: unlock always
// returns to Unlocked, which can re-lock.
type State string

const (
	StateUnlocked State = "UNLOCKED"
	StateLocked   State = "LOCKED"
)

// UnlockReasonLost is the reason recorded when the locked face stays
// unverified for the configured number of frames.
const UnlockReasonLost = "Face lost for too long"

// Embedder is the external alignment + embedding collaborator.
type Embedder interface {
	Embed(frame camera.Frame, keypoints [5]geometry.Point) (recognition.Descriptor, error)
}

// Matcher is the external identity database matcher.
type Matcher interface {
	Match(recognition.Descriptor) recognition.IdentityMatch
}

// Record is one entry in the session's append-only action history.
type Record struct {
	Timestamp   time.Time
	Kind        action.Kind
	Description string
}

// Session is the span between a successful lock and its unlock:
// the target, the acquisition time, the ordered action records and the
// session's history file.
type Session struct {
	Target    string
	StartedAt time.Time
	Records   []Record

	log *history.Writer
}

// Config holds lock state machine settings.
type Config struct {
	// GateRadius is the spatial gate in pixels applied per axis before
	// identity re-verification.
	GateRadius float64
	// MaxFailures is the consecutive-failure ceiling that triggers
	// auto-unlock.
	MaxFailures int
	// HistoryDir receives one audit file per session.
	HistoryDir string
}

// DefaultConfig returns the default lock settings.
func DefaultConfig() Config {
	return Config{
		GateRadius:  150,
		MaxFailures: 15,
		HistoryDir:  "data/history",
	}
}

// Manager drives the lock lifecycle for one target identity. It is
// frame-synchronous and single-writer: the caller's frame loop is the
// only goroutine touching it.
type Manager struct {
	config   Config
	target   string
	detector *action.Detector
	embedder Embedder
	matcher  Matcher
	log      *logrus.Entry

	state     State
	locked    *recognition.FaceCandidate
	faceState *action.FaceState
	session   *Session

	// now is replaceable for deterministic session timing in tests.
	now func() time.Time
}

// NewManager creates an unlocked manager for the given target.
func NewManager(cfg Config, target string, detector *action.Detector, embedder Embedder, matcher Matcher) *Manager {
	return &Manager{
		config:   cfg,
		target:   target,
		detector: detector,
		embedder: embedder,
		matcher:  matcher,
		log:      logging.Component("lock"),
		state:    StateUnlocked,
		now:      time.Now,
	}
}

// State returns the current lock state.
func (m *Manager) State() State { return m.state }

// Locked reports whether a session is active.
func (m *Manager) Locked() bool { return m.state == StateLocked }

// Target returns the identity this manager locks onto.
func (m *Manager) Target() string { return m.target }

// LockedCandidate returns a copy of the last verified candidate, or
// nil when unlocked.
func (m *Manager) LockedCandidate() *recognition.FaceCandidate {
	if m.locked == nil {
		return nil
	}
	c := *m.locked
	return &c
}

// FaceState returns a copy of the continuous tracking state, or nil
// when no tracked frame has been processed yet.
func (m *Manager) FaceState() *action.FaceState {
	if m.faceState == nil {
		return nil
	}
	s := *m.faceState
	return &s
}

// ActionCount returns the number of records in the active session.
func (m *Manager) ActionCount() int {
	if m.session == nil {
		return 0
	}
	return len(m.session.Records)
}

// Records returns a copy of the active session's action records.
func (m *Manager) Records() []Record {
	if m.session == nil {
		return nil
	}
	out := make([]Record, len(m.session.Records))
	copy(out, m.session.Records)
	return out
}

// HistoryPath returns the active session's history file path, or ""
// when unlocked.
func (m *Manager) HistoryPath() string {
	if m.session == nil || m.session.log == nil {
		return ""
	}
	return m.session.log.Path()
}

// TryLock acquires the lock if the manager is unlocked and the
// verified identity equals the target. On success it opens the session
// history file, records the LOCK event, and clears the face state so
// the first tracked frame establishes a fresh baseline. A request
// while locked, or for any other identity, is a no-op returning false.
func (m *Manager) TryLock(candidate recognition.FaceCandidate, identity string) bool {
	if m.state != StateUnlocked {
		return false
	}
	if identity == "" || identity != m.target {
		return false
	}

	now := m.now()
	m.state = StateLocked
	m.locked = &candidate
	m.faceState = nil
	m.session = &Session{
		Target:    m.target,
		StartedAt: now,
		log:       history.Open(m.config.HistoryDir, m.target, now),
	}

	m.record(action.KindLock, fmt.Sprintf("Face locked onto %s", m.target))
	m.log.WithFields(logging.Fields{"target": m.target, "file": m.HistoryPath()}).Info("Lock acquired")
	return true
}

// UpdateTracking processes one frame while locked: it gates candidates
// by proximity to the last known position, re-verifies the survivors,
// runs action detection on the best accepted target match, and applies
// the failure ceiling when the face cannot be found. It returns the
// verified candidate for this frame, or nil. Collaborator errors
// (embedder, landmarker) propagate; verification misses do not.
func (m *Manager) UpdateTracking(frame camera.Frame, candidates []recognition.FaceCandidate) (*recognition.FaceCandidate, error) {
	if m.state != StateLocked {
		return nil, nil
	}

	// Spatial gating first: re-verification is the expensive step, so
	// only candidates near the last known position are embedded.
	last := m.locked.Centroid()

	var best *recognition.FaceCandidate
	bestDist := math.MaxFloat64

	for i := range candidates {
		c := candidates[i].Centroid()
		if math.Abs(c.X-last.X) > m.config.GateRadius || math.Abs(c.Y-last.Y) > m.config.GateRadius {
			continue
		}

		desc, err := m.embedder.Embed(frame, candidates[i].Keypoints)
		if err != nil {
			return nil, fmt.Errorf("identity verification failed: %w", err)
		}

		match := m.matcher.Match(desc)
		if match.Accepted && match.Identity == m.target && match.Distance < bestDist {
			best = &candidates[i]
			bestDist = match.Distance
		}
	}

	if best == nil {
		return nil, m.trackingMiss()
	}

	found := *best
	m.locked = &found

	events, newState, err := m.detector.Detect(frame, found.Box, m.faceState)
	if err != nil {
		return nil, err
	}
	m.faceState = &newState

	for _, e := range events {
		m.record(e.Kind, e.Description)
	}

	return &found, nil
}

// trackingMiss accounts one frame without a verified target face and
// auto-unlocks once the ceiling is reached.
func (m *Manager) trackingMiss() error {
	if m.faceState == nil {
		m.faceState = &action.FaceState{}
	}

	next := *m.faceState
	next.ConsecutiveFailures++
	m.faceState = &next

	if next.ConsecutiveFailures >= m.config.MaxFailures {
		m.log.WithField("failures", next.ConsecutiveFailures).Warn("Locked face lost, releasing")
		m.Unlock(UnlockReasonLost)
	}
	return nil
}

// Unlock releases the lock: it records the UNLOCK event with the given
// reason, writes the session summary footer, and discards the session
// and face state. A no-op when already unlocked, so calling it again
// at shutdown is always safe.
func (m *Manager) Unlock(reason string) {
	if m.state != StateLocked {
		return
	}

	m.record(action.KindUnlock, reason)

	session := m.session
	if session.log != nil {
		if err := session.log.Close(m.now(), len(session.Records)); err != nil {
			m.log.WithError(err).Warn("Failed to close session history")
		}
	}

	m.log.WithFields(logging.Fields{
		"target":   m.target,
		"reason":   reason,
		"duration": m.now().Sub(session.StartedAt).Seconds(),
		"actions":  len(session.Records),
	}).Info("Lock released")

	m.state = StateUnlocked
	m.locked = nil
	m.faceState = nil
	m.session = nil
}

// record appends one action to the session and its history file.
func (m *Manager) record(kind action.Kind, description string) {
	r := Record{
		Timestamp:   m.now(),
		Kind:        kind,
		Description: description,
	}
	m.session.Records = append(m.session.Records, r)
	if m.session.log != nil {
		m.session.log.Append(r.Timestamp, string(kind), description)
	}
	m.log.WithField("action", string(kind)).Info(description)
}
