package mot

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Tracker is multi-object tracker (MOT) which keeps stable identities for per-frame detections.
//
// Tracker is not safe for concurrent use: calls to Update (and other methods) on the same instance must be serialized by the caller.
type Tracker struct {
	cfg     Config
	matcher matcher
	logger  zerolog.Logger

	// Live tracks in creation order
	order  []uuid.UUID
	tracks map[uuid.UUID]*Track
	// Dead tracks (only when KeepAllHistoryInMemory is enabled)
	archive       []*Track
	nextIDDisplay int
}

// Option configures Tracker
type Option func(*Tracker)

// WithLogger sets logger for tracker life-cycle events. Default is no-op logger
func WithLogger(logger zerolog.Logger) Option {
	return func(tracker *Tracker) {
		tracker.logger = logger
	}
}

// NewDefaultTracker creates tracker with DefaultConfig
func NewDefaultTracker(opts ...Option) *Tracker {
	tracker, err := NewTracker(DefaultConfig(), opts...)
	if err != nil {
		panic("default configuration must be valid: " + err.Error())
	}
	return tracker
}

// NewTracker creates new instance of Tracker
func NewTracker(cfg Config, opts ...Option) (*Tracker, error) {
	tracker := &Tracker{
		logger: zerolog.Nop(),
		order:  make([]uuid.UUID, 0),
		tracks: make(map[uuid.UUID]*Track),
	}
	for _, opt := range opts {
		opt(tracker)
	}
	err := tracker.SetConfig(cfg)
	if err != nil {
		return nil, err
	}
	return tracker, nil
}

// SetConfig replaces tracker parameters. Tracks created earlier keep their tolerance and fastDelete settings
func (tracker *Tracker) SetConfig(cfg Config) error {
	err := cfg.Validate()
	if err != nil {
		return errors.Wrap(err, "Can't configure tracker")
	}
	m, err := newMatcher(cfg)
	if err != nil {
		return errors.Wrap(err, "Can't configure tracker")
	}
	tracker.cfg = cfg
	tracker.matcher = m
	return nil
}

// Config returns current tracker parameters
func (tracker *Tracker) Config() Config {
	return tracker.cfg
}

// EnableKeepInMemory starts archiving dead tracks
func (tracker *Tracker) EnableKeepInMemory() {
	tracker.cfg.KeepAllHistoryInMemory = true
}

// DisableKeepInMemory stops archiving dead tracks. Already archived ones are kept
func (tracker *Tracker) DisableKeepInMemory() {
	tracker.cfg.KeepAllHistoryInMemory = false
}

// Reset drops every track (archived included) and restarts display identifiers from zero
func (tracker *Tracker) Reset() {
	tracker.order = make([]uuid.UUID, 0)
	tracker.tracks = make(map[uuid.UUID]*Track)
	tracker.archive = nil
	tracker.nextIDDisplay = 0
}

// Len returns number of live tracks
func (tracker *Tracker) Len() int {
	return len(tracker.order)
}

// Tracks returns live tracks in creation order
func (tracker *Tracker) Tracks() []*Track {
	out := make([]*Track, 0, len(tracker.order))
	for _, id := range tracker.order {
		out = append(out, tracker.tracks[id])
	}
	return out
}

// Track returns live track by its identifier
func (tracker *Tracker) Track(id uuid.UUID) (*Track, bool) {
	track, ok := tracker.tracks[id]
	return track, ok
}

// AllTracks returns archived tracks followed by live ones
func (tracker *Tracker) AllTracks() []*Track {
	out := make([]*Track, 0, len(tracker.archive)+len(tracker.order))
	out = append(out, tracker.archive...)
	return append(out, tracker.Tracks()...)
}

// Update matches detections of the frame against live tracks.
// Matched tracks are updated, unmatched ones are aged (and removed when dead), novel detections start new tracks.
// Detections are expected to be well-formed: there is no validation.
func (tracker *Tracker) Update(detections []Detection, frameNb int) error {
	if len(tracker.order) == 0 {
		for _, detection := range detections {
			tracker.spawn(detection, frameNb)
		}
		return nil
	}

	tracks := tracker.Tracks()
	// Per-frame scratch: tracks which are still available for matching (i.e. not matched yet)
	available := make(map[uuid.UUID]struct{}, len(tracks))
	in := matchInput{
		predicted:  make([]Box, len(tracks)),
		current:    make([]Box, len(tracks)),
		detections: make([]Box, len(detections)),
	}
	for i, track := range tracks {
		available[track.id] = struct{}{}
		in.predicted[i] = track.PredictNextPosition()
		in.current[i] = track.Box()
	}
	for i, detection := range detections {
		in.detections[i] = detection.Box()
	}

	result, err := tracker.matcher.match(in)
	if err != nil {
		return errors.Wrapf(err, "Can't match detections on frame %d", frameNb)
	}

	for _, assignment := range result.assignments {
		track := tracks[assignment.Track]
		delete(available, track.id)
		err := track.Update(detections[assignment.Detection], frameNb)
		if err != nil {
			return errors.Wrapf(err, "Can't update track %s", track.id.String())
		}
	}

	for _, detectionIdx := range result.spawn {
		tracker.spawn(detections[detectionIdx], frameNb)
	}

	removed := 0
	for _, track := range tracks {
		if _, ok := available[track.id]; !ok {
			continue
		}
		track.CountDown(frameNb)
		track.Extrapolate()
		if track.IsDead() {
			tracker.remove(track, frameNb)
			removed++
		}
	}

	tracker.logger.Trace().
		Int("frame", frameNb).
		Int("detections", len(detections)).
		Int("matched", len(result.assignments)).
		Int("spawned", len(result.spawn)).
		Int("removed", removed).
		Int("live", len(tracker.order)).
		Msg("frame processed")
	return nil
}

func (tracker *Tracker) spawn(detection Detection, frameNb int) *Track {
	track := newTrack(detection, frameNb, tracker.nextIDDisplay, tracker.cfg)
	tracker.nextIDDisplay++
	tracker.tracks[track.id] = track
	tracker.order = append(tracker.order, track.id)
	tracker.logger.Debug().
		Str("id", track.id.String()).
		Int("id_display", track.idDisplay).
		Str("name", track.name).
		Int("frame", frameNb).
		Msg("track spawned")
	return track
}

func (tracker *Tracker) remove(track *Track, frameNb int) {
	delete(tracker.tracks, track.id)
	for i, id := range tracker.order {
		if id == track.id {
			tracker.order = append(tracker.order[:i], tracker.order[i+1:]...)
			break
		}
	}
	if tracker.cfg.KeepAllHistoryInMemory {
		tracker.archive = append(tracker.archive, track)
	}
	tracker.logger.Debug().
		Str("id", track.id.String()).
		Int("id_display", track.idDisplay).
		Str("name", track.MostlyMatchedName()).
		Int("frame", frameNb).
		Int("matched_times", track.nbTimeMatched).
		Msg("track removed")
}
