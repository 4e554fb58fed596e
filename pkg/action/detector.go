// Package action converts per-frame facial geometry into discrete,
// de-bounced behavioral events: eye blinks, smiles, and lateral head
// movement. Blink and smile are edge-triggered on their aspect-ratio
// thresholds with a refractory period so one physical occurrence spread
// across frames is counted once. Movement is delta-based and needs no
// refractory period.
package action

import (
	"fmt"
	"time"

	"github.com/MrCodeEU/facelock/pkg/camera"
	"github.com/MrCodeEU/facelock/pkg/geometry"
)

// Kind identifies a recorded action.
type Kind string

const (
	KindLock      Kind = "LOCK"
	KindUnlock    Kind = "UNLOCK"
	KindBlink     Kind = "BLINK"
	KindSmile     Kind = "SMILE"
	KindMoveLeft  Kind = "MOVE_LEFT"
	KindMoveRight Kind = "MOVE_RIGHT"
)

// Event is a single detected action with a human-readable description.
type Event struct {
	Kind        Kind
	Description string
}

// FaceState is the continuous tracking state for the locked face.
// A new value is produced every frame; previous states are never
// mutated, so callers can snapshot them freely.
type FaceState struct {
	Centroid            geometry.Point
	EyeAspectRatio      float64
	MouthAspectRatio    float64
	LastBlink           time.Time
	LastSmile           time.Time
	ConsecutiveFailures int
}

// Landmarks holds the face-mesh points used for action detection,
// in full-frame pixel coordinates. Each slice has 6 points ordered as
// geometry.EyeAspectRatio / geometry.MouthAspectRatio expect.
type Landmarks struct {
	LeftEye  []geometry.Point
	RightEye []geometry.Point
	Mouth    []geometry.Point
}

// Landmarker is the external face-mesh collaborator. A nil result with
// a nil error means the mesh found no face in the region; that is a
// soft miss, not a failure. Errors indicate a broken collaborator and
// propagate to the caller.
type Landmarker interface {
	Landmarks(frame camera.Frame, region geometry.Rect) (*Landmarks, error)
}

// Config holds action detection thresholds.
type Config struct {
	BlinkEARThreshold float64
	SmileMARThreshold float64
	MovementThreshold float64 // pixels of horizontal centroid delta
	BlinkRefractory   time.Duration
	SmileRefractory   time.Duration
}

// DefaultConfig returns the default detection thresholds.
func DefaultConfig() Config {
	return Config{
		BlinkEARThreshold: 0.21,
		SmileMARThreshold: 0.35,
		MovementThreshold: 30,
		BlinkRefractory:   300 * time.Millisecond,
		SmileRefractory:   time.Second,
	}
}

// Neutral ratios reported when the mesh yields nothing and no prior
// state exists: open eyes, closed mouth.
const (
	neutralEAR = 0.3
	neutralMAR = 0.2
)

// Detector detects actions for exactly one tracked face region per
// call. It holds no per-identity state itself; state travels through
// the FaceState values the caller passes back in.
type Detector struct {
	config     Config
	landmarker Landmarker

	// now is replaceable for deterministic refractory tests.
	now func() time.Time
}

// NewDetector creates a new action detector.
func NewDetector(cfg Config, landmarker Landmarker) *Detector {
	return &Detector{
		config:     cfg,
		landmarker: landmarker,
		now:        time.Now,
	}
}

// Detect runs landmark inference on the face region and returns the
// detected events plus the updated state. prev is nil on the first
// tracked frame after a lock; blink, smile and movement are suppressed
// until a second frame establishes a baseline.
//
// Events are returned in stable order (blink, smile, movement) so the
// history log is deterministic when actions co-occur.
func (d *Detector) Detect(frame camera.Frame, region geometry.Rect, prev *FaceState) ([]Event, FaceState, error) {
	lm, err := d.landmarker.Landmarks(frame, region)
	if err != nil {
		var zero FaceState
		if prev != nil {
			zero = *prev
		}
		return nil, zero, err
	}

	if lm == nil {
		// Soft miss: carry the previous state forward unchanged apart
		// from the failure counter.
		if prev != nil {
			state := *prev
			state.ConsecutiveFailures++
			return nil, state, nil
		}
		return nil, FaceState{
			Centroid:            region.Centroid(),
			EyeAspectRatio:      neutralEAR,
			MouthAspectRatio:    neutralMAR,
			ConsecutiveFailures: 1,
		}, nil
	}

	now := d.now()
	centroid := region.Centroid()
	ear := geometry.AverageEAR(lm.LeftEye, lm.RightEye)
	mar := geometry.MouthAspectRatio(lm.Mouth)

	state := FaceState{
		Centroid:            centroid,
		EyeAspectRatio:      ear,
		MouthAspectRatio:    mar,
		ConsecutiveFailures: 0,
	}
	if prev != nil {
		state.LastBlink = prev.LastBlink
		state.LastSmile = prev.LastSmile
	}

	var events []Event

	// Blink: falling edge of EAR across the threshold, outside the
	// refractory window. The last-blink time advances only when a
	// blink actually fires.
	if prev != nil &&
		prev.EyeAspectRatio >= d.config.BlinkEARThreshold &&
		ear < d.config.BlinkEARThreshold &&
		now.Sub(prev.LastBlink) >= d.config.BlinkRefractory {
		state.LastBlink = now
		events = append(events, Event{
			Kind:        KindBlink,
			Description: fmt.Sprintf("Eye blink detected (EAR=%.3f)", ear),
		})
	}

	// Smile: rising edge of MAR, same refractory scheme.
	if prev != nil &&
		prev.MouthAspectRatio <= d.config.SmileMARThreshold &&
		mar > d.config.SmileMARThreshold &&
		now.Sub(prev.LastSmile) >= d.config.SmileRefractory {
		state.LastSmile = now
		events = append(events, Event{
			Kind:        KindSmile,
			Description: fmt.Sprintf("Smile detected (MAR=%.3f)", mar),
		})
	}

	// Movement: signed horizontal centroid delta against the previous
	// frame. Delta-based, so it emits once per qualifying transition.
	if prev != nil {
		dx := centroid.X - prev.Centroid.X
		if dx > d.config.MovementThreshold {
			events = append(events, Event{
				Kind:        KindMoveRight,
				Description: fmt.Sprintf("Face moved right (x=%.1f)", centroid.X),
			})
		} else if dx < -d.config.MovementThreshold {
			events = append(events, Event{
				Kind:        KindMoveLeft,
				Description: fmt.Sprintf("Face moved left (x=%.1f)", centroid.X),
			})
		}
	}

	return events, state, nil
}
