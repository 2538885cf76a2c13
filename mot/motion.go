package mot

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

// motionEstimator estimates per-frame velocity of a track.
// Every track owns its own estimator.
type motionEstimator interface {
	// Observe is called right after a matched measurement has been appended to history
	Observe(history []HistoryEntry) (Velocity, error)
	// Coast is called once per frame while the track is unmatched
	Coast()
}

func newMotionEstimator(model MotionModel, initial HistoryEntry) motionEstimator {
	switch model {
	case MotionModelKalman:
		return newKalmanMotion(initial)
	default:
		return windowMotion{}
	}
}

// windowMotion computes velocity from the oldest and the newest entries of the (bounded) history
type windowMotion struct{}

func (windowMotion) Observe(history []HistoryEntry) (Velocity, error) {
	n := len(history)
	if n < 2 {
		return Velocity{}, nil
	}
	return VelocityVector(history[0], history[n-1], n-1), nil
}

func (windowMotion) Coast() {}

// kalmanMotion smooths velocity with 8-D Kalman filter: [cx, cy, w, h, vx, vy, vw, vh]
type kalmanMotion struct {
	tracker *kalman_filter.KalmanBBox
}

func newKalmanMotion(initial HistoryEntry) *kalmanMotion {
	// Time step is a single frame, so velocities are per-frame displacements
	dt := 1.0
	// Kalman filter props. No control input: constant velocity model
	uCx := 0.0
	uCy := 0.0
	uW := 0.0
	uH := 0.0
	stdDevA := 2.0
	stdDevMCx := 0.1
	stdDevMCy := 0.1
	stdDevMW := 0.1
	stdDevMH := 0.1
	kf := kalman_filter.NewKalmanBBox(
		dt, uCx, uCy, uW, uH,
		stdDevA, stdDevMCx, stdDevMCy, stdDevMW, stdDevMH,
		kalman_filter.WithStateBBox(initial.X, initial.Y, initial.W, initial.H),
	)
	return &kalmanMotion{
		tracker: kf,
	}
}

func (m *kalmanMotion) Observe(history []HistoryEntry) (Velocity, error) {
	if len(history) == 0 {
		return Velocity{}, nil
	}
	last := history[len(history)-1]
	m.tracker.Predict()
	err := m.tracker.Update(last.X, last.Y, last.W, last.H)
	if err != nil {
		return Velocity{}, errors.Wrap(err, "Can't update object tracker")
	}
	vx, vy, _, _ := m.tracker.GetVelocity()
	return Velocity{DX: vx, DY: vy}, nil
}

func (m *kalmanMotion) Coast() {
	m.tracker.Predict()
}
