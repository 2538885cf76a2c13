package mot

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MaxHistory is the number of past observations kept per track
const MaxHistory = 15

// HistoryEntry is a single observation stored in track's history
type HistoryEntry struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
	Confidence float64 `json:"confidence"`
}

// Velocity is estimated per-frame displacement
type Velocity struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// Track is a persistent identity for a sequence of detections which are believed to be the same object.
//
// Life-cycle: matched -> zombie (unmatched, but within tolerance; position is extrapolated) -> dead.
type Track struct {
	id         uuid.UUID
	idDisplay  int
	x          float64
	y          float64
	w          float64
	h          float64
	confidence float64
	name       string
	// Label -> number of frames it has been seen with
	nameCount map[string]int
	// Order in which labels have been seen first (tie-break for majority vote)
	nameOrder []string
	history   []HistoryEntry
	velocity  Velocity

	nbTimeMatched                 int
	frameUnmatchedLeftBeforeDying int
	isZombie                      bool

	appearFrame    int
	disappeared    bool
	disappearFrame int
	disappearArea  Box

	unMatchedFramesTolerance int
	fastDelete               bool
	motion                   motionEstimator
}

func newTrack(detection Detection, frameNb int, idDisplay int, cfg Config) *Track {
	entry := historyEntryFrom(detection)
	track := Track{
		id:                            uuid.New(),
		idDisplay:                     idDisplay,
		x:                             detection.X,
		y:                             detection.Y,
		w:                             detection.W,
		h:                             detection.H,
		confidence:                    detection.Confidence,
		name:                          detection.Name,
		nameCount:                     map[string]int{detection.Name: 1},
		nameOrder:                     []string{detection.Name},
		history:                       make([]HistoryEntry, 0, MaxHistory),
		nbTimeMatched:                 1,
		frameUnmatchedLeftBeforeDying: cfg.UnMatchedFramesTolerance,
		appearFrame:                   frameNb,
		unMatchedFramesTolerance:      cfg.UnMatchedFramesTolerance,
		fastDelete:                    cfg.FastDelete,
		motion:                        newMotionEstimator(cfg.MotionModel, entry),
	}
	track.history = append(track.history, entry)
	return &track
}

func historyEntryFrom(detection Detection) HistoryEntry {
	return HistoryEntry{
		X:          detection.X,
		Y:          detection.Y,
		W:          detection.W,
		H:          detection.H,
		Confidence: detection.Confidence,
	}
}

// Update applies matched detection to the track
func (track *Track) Update(detection Detection, frameNb int) error {
	if track.disappeared {
		track.disappeared = false
		track.disappearFrame = 0
		track.disappearArea = Box{}
	}
	track.isZombie = false
	track.nbTimeMatched++
	track.x = detection.X
	track.y = detection.Y
	track.w = detection.W
	track.h = detection.H
	track.confidence = detection.Confidence
	track.name = detection.Name

	track.history = append(track.history, historyEntryFrom(detection))
	if len(track.history) > MaxHistory {
		track.history = track.history[len(track.history)-MaxHistory:]
	}

	if _, ok := track.nameCount[detection.Name]; !ok {
		track.nameOrder = append(track.nameOrder, detection.Name)
	}
	track.nameCount[detection.Name]++

	track.frameUnmatchedLeftBeforeDying = track.unMatchedFramesTolerance

	velocity, err := track.motion.Observe(track.history)
	if err != nil {
		return errors.Wrapf(err, "Can't estimate velocity for track %d at frame %d", track.idDisplay, frameNb)
	}
	track.velocity = velocity
	return nil
}

// CountDown is called when the track has not been matched on the frame
func (track *Track) CountDown(frameNb int) {
	if !track.disappeared {
		track.disappeared = true
		track.disappearFrame = frameNb
		track.disappearArea = track.Box()
	}
	track.frameUnmatchedLeftBeforeDying--
	track.isZombie = true
	// One-off detections (most likely false positives) die right away
	if track.fastDelete && track.nbTimeMatched <= 1 {
		track.frameUnmatchedLeftBeforeDying = -1
	}
}

// Extrapolate moves unmatched track along its velocity (dead reckoning)
func (track *Track) Extrapolate() {
	track.x += track.velocity.DX
	track.y += track.velocity.DY
	track.motion.Coast()
}

// IsDead returns true when the track has been unmatched for longer than tolerance
func (track *Track) IsDead() bool {
	return track.frameUnmatchedLeftBeforeDying < 0
}

// PredictNextPosition returns box where the track is expected to be on the next frame
func (track *Track) PredictNextPosition() Box {
	return track.Box().Shift(track.velocity.DX, track.velocity.DY)
}

// MostlyMatchedName returns the label seen most often. Ties go to the label seen first.
func (track *Track) MostlyMatchedName() string {
	best := track.name
	bestCount := 0
	for _, name := range track.nameOrder {
		if count := track.nameCount[name]; count > bestCount {
			best = name
			bestCount = count
		}
	}
	return best
}

// GetID returns track's unique identifier
func (track *Track) GetID() uuid.UUID {
	return track.id
}

// GetIDDisplay returns track's human readable identifier
func (track *Track) GetIDDisplay() int {
	return track.idDisplay
}

// Box returns current box of the track
func (track *Track) Box() Box {
	return Box{X: track.x, Y: track.y, W: track.w, H: track.h}
}

// GetConfidence returns confidence of the last matched detection
func (track *Track) GetConfidence() float64 {
	return track.confidence
}

// GetName returns label of the last matched detection
func (track *Track) GetName() string {
	return track.name
}

// GetNameCount returns copy of label histogram
func (track *Track) GetNameCount() map[string]int {
	out := make(map[string]int, len(track.nameCount))
	for k, v := range track.nameCount {
		out[k] = v
	}
	return out
}

// GetHistory returns track's history. Be careful: this is not copy of history, but reference to it
func (track *Track) GetHistory() []HistoryEntry {
	return track.history
}

// GetVelocity returns estimated per-frame displacement
func (track *Track) GetVelocity() Velocity {
	return track.velocity
}

// GetNbTimeMatched returns number of frames the track has been matched on (creation included)
func (track *Track) GetNbTimeMatched() int {
	return track.nbTimeMatched
}

// GetFramesLeftBeforeDying returns countdown value
func (track *Track) GetFramesLeftBeforeDying() int {
	return track.frameUnmatchedLeftBeforeDying
}

// IsZombie returns true while the track is unmatched but still alive
func (track *Track) IsZombie() bool {
	return track.isZombie
}

// GetAppearFrame returns frame number the track has been created on
func (track *Track) GetAppearFrame() int {
	return track.appearFrame
}

// GetDisappearFrame returns frame number the track has been lost on.
// Second value is false while the track is being matched.
func (track *Track) GetDisappearFrame() (int, bool) {
	return track.disappearFrame, track.disappeared
}

// GetDisappearArea returns box the track has been lost at
func (track *Track) GetDisappearArea() Box {
	return track.disappearArea
}

// Bearing returns movement direction in degrees [0, 360), 0 is "up" on the screen
func (track *Track) Bearing() float64 {
	return Bearing360(track.velocity.DX, -track.velocity.DY)
}
