package mot

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var algorithms = []MatchingAlgorithm{MatchingAlgorithmKDTree, MatchingAlgorithmMunkres}

func newTestTracker(t *testing.T, cfg Config) *Tracker {
	t.Helper()
	tracker, err := NewTracker(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return tracker
}

func mustUpdate(t *testing.T, tracker *Tracker, detections []Detection, frameNb int) {
	t.Helper()
	err := tracker.Update(detections, frameNb)
	if err != nil {
		t.Fatalf("Frame %d: %v", frameNb, err)
	}
}

func TestTrackerLifeCycle(t *testing.T) {
	for _, algorithm := range algorithms {
		t.Run(algorithm.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MatchingAlgorithm = algorithm
			tracker := newTestTracker(t, cfg)

			mustUpdate(t, tracker, []Detection{{X: 10, Y: 10, W: 4, H: 4, Name: "face", Confidence: 0.9}}, 1)
			if tracker.Len() != 1 {
				t.Fatalf("Expected single track, got %d", tracker.Len())
			}
			track := tracker.Tracks()[0]
			if track.GetIDDisplay() != 0 || track.IsZombie() {
				t.Errorf("Expected display ID 0 and not zombie, got %d and %v", track.GetIDDisplay(), track.IsZombie())
			}
			id := track.GetID()

			mustUpdate(t, tracker, []Detection{{X: 11, Y: 10, W: 4, H: 4, Name: "face", Confidence: 0.9}}, 2)
			if tracker.Len() != 1 {
				t.Fatalf("Expected single track, got %d", tracker.Len())
			}
			track = tracker.Tracks()[0]
			if track.GetID() != id {
				t.Errorf("Expected the same track %s, got %s", id, track.GetID())
			}
			velocity := track.GetVelocity()
			if math.Abs(velocity.DX-1) > eps || math.Abs(velocity.DY) > eps {
				t.Errorf("Expected velocity (1, 0), got %v", velocity)
			}

			tolerance := cfg.UnMatchedFramesTolerance
			for frameNb := 3; frameNb <= 2+tolerance; frameNb++ {
				mustUpdate(t, tracker, nil, frameNb)
				live, ok := tracker.Track(id)
				if !ok {
					t.Fatalf("Track has been removed too early on frame %d", frameNb)
				}
				if !live.IsZombie() {
					t.Errorf("Track should be zombie on frame %d", frameNb)
				}
			}
			mustUpdate(t, tracker, nil, 2+tolerance+1)
			if _, ok := tracker.Track(id); ok || tracker.Len() != 0 {
				t.Errorf("Track should be removed on frame %d", 2+tolerance+1)
			}
		})
	}
}

func TestTrackerRemovalFrame(t *testing.T) {
	for _, algorithm := range algorithms {
		t.Run(algorithm.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MatchingAlgorithm = algorithm
			cfg.FastDelete = false
			tracker := newTestTracker(t, cfg)
			created := 1
			mustUpdate(t, tracker, []Detection{{X: 10, Y: 10, W: 4, H: 4, Name: "face", Confidence: 0.9}}, created)
			removedAt := -1
			for frameNb := created + 1; frameNb <= created+20; frameNb++ {
				mustUpdate(t, tracker, nil, frameNb)
				if tracker.Len() == 0 {
					removedAt = frameNb
					break
				}
			}
			if expected := created + cfg.UnMatchedFramesTolerance + 1; removedAt != expected {
				t.Errorf("Expected removal on frame %d, got %d", expected, removedAt)
			}

			cfg.FastDelete = true
			fast := newTestTracker(t, cfg)
			mustUpdate(t, fast, []Detection{{X: 10, Y: 10, W: 4, H: 4, Name: "face", Confidence: 0.9}}, created)
			mustUpdate(t, fast, nil, created+1)
			if fast.Len() != 0 {
				t.Errorf("One-off track should be removed on frame %d", created+1)
			}
		})
	}
}

func TestTrackerGreedyVersusOptimal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DistanceFunc = EuclideanDistance
	cfg.DistanceLimit = 100
	expectedX := map[MatchingAlgorithm][2]float64{
		// First track takes the closest detection and leaves the far one to the second
		MatchingAlgorithmKDTree: {8, -9},
		// Minimal total distance
		MatchingAlgorithmMunkres: {-9, 8},
	}
	for _, algorithm := range algorithms {
		t.Run(algorithm.String(), func(t *testing.T) {
			cfg.MatchingAlgorithm = algorithm
			tracker := newTestTracker(t, cfg)
			mustUpdate(t, tracker, []Detection{
				{X: 0, Y: 0, W: 10, H: 10, Name: "a", Confidence: 0.9},
				{X: 10, Y: 0, W: 10, H: 10, Name: "b", Confidence: 0.9},
			}, 1)
			mustUpdate(t, tracker, []Detection{
				{X: 8, Y: 0, W: 10, H: 10, Name: "a", Confidence: 0.9},
				{X: -9, Y: 0, W: 10, H: 10, Name: "b", Confidence: 0.9},
			}, 2)
			tracks := tracker.Tracks()
			if len(tracks) != 2 {
				t.Fatalf("Expected 2 tracks, got %d", len(tracks))
			}
			for i, track := range tracks {
				if track.GetIDDisplay() != i {
					t.Errorf("Tracks are not in creation order: %d at %d", track.GetIDDisplay(), i)
				}
				if track.Box().X != expectedX[algorithm][i] {
					t.Errorf("Track %d: expected x %v, got %v", i, expectedX[algorithm][i], track.Box().X)
				}
				if track.IsZombie() {
					t.Errorf("Track %d should be matched", i)
				}
			}
		})
	}
}

func TestTrackerSpawnFarDetection(t *testing.T) {
	for _, algorithm := range algorithms {
		t.Run(algorithm.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MatchingAlgorithm = algorithm
			tracker := newTestTracker(t, cfg)
			mustUpdate(t, tracker, []Detection{{X: 10, Y: 10, W: 4, H: 4, Name: "face", Confidence: 0.9}}, 1)
			mustUpdate(t, tracker, []Detection{{X: 100, Y: 100, W: 4, H: 4, Name: "face", Confidence: 0.9}}, 2)
			// One-off first track dies right away, far detection starts a new one
			if tracker.Len() != 1 {
				t.Fatalf("Expected single track, got %d", tracker.Len())
			}
			track := tracker.Tracks()[0]
			if track.GetIDDisplay() != 1 {
				t.Errorf("Display ID must not be reused, got %d", track.GetIDDisplay())
			}
			if track.Box() != NewBox(100, 100, 4, 4) || track.GetAppearFrame() != 2 {
				t.Errorf("Wrong new track: %v at frame %d", track.Box(), track.GetAppearFrame())
			}
		})
	}
}

func TestTrackerSuppressDuplicateDetection(t *testing.T) {
	for _, algorithm := range algorithms {
		t.Run(algorithm.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MatchingAlgorithm = algorithm
			tracker := newTestTracker(t, cfg)
			mustUpdate(t, tracker, []Detection{{X: 10, Y: 10, W: 4, H: 4, Name: "face", Confidence: 0.9}}, 1)
			mustUpdate(t, tracker, []Detection{
				{X: 10, Y: 10, W: 4, H: 4, Name: "face", Confidence: 0.9},
				{X: 11, Y: 10, W: 4, H: 4, Name: "face", Confidence: 0.8},
			}, 2)
			if tracker.Len() != 1 {
				t.Errorf("Detection overlapping existing track should not start new one, got %d tracks", tracker.Len())
			}
			if box := tracker.Tracks()[0].Box(); box != NewBox(10, 10, 4, 4) {
				t.Errorf("Track should take the closest detection, got %v", box)
			}
		})
	}
}

func TestTrackerSpawnDistinctDetections(t *testing.T) {
	for _, algorithm := range algorithms {
		t.Run(algorithm.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MatchingAlgorithm = algorithm
			cfg.FastDelete = false
			tracker := newTestTracker(t, cfg)
			mustUpdate(t, tracker, []Detection{{X: 10, Y: 10, W: 4, H: 4, Name: "face", Confidence: 0.9}}, 1)
			mustUpdate(t, tracker, []Detection{
				{X: 11, Y: 10, W: 4, H: 4, Name: "face", Confidence: 0.9},
				{X: 200, Y: 200, W: 10, H: 10, Name: "car", Confidence: 0.7},
				{X: 400, Y: 200, W: 10, H: 10, Name: "car", Confidence: 0.7},
			}, 2)
			if tracker.Len() != 3 {
				t.Fatalf("Expected 3 tracks, got %d", tracker.Len())
			}
			for i, track := range tracker.Tracks() {
				if track.GetIDDisplay() != i {
					t.Errorf("Expected display ID %d, got %d", i, track.GetIDDisplay())
				}
			}
		})
	}
}

func TestTrackerEmptyFrames(t *testing.T) {
	tracker := NewDefaultTracker()
	mustUpdate(t, tracker, nil, 1)
	mustUpdate(t, tracker, []Detection{}, 2)
	if tracker.Len() != 0 {
		t.Errorf("Expected no tracks, got %d", tracker.Len())
	}
}

func TestTrackerReset(t *testing.T) {
	tracker := NewDefaultTracker()
	tracker.EnableKeepInMemory()
	mustUpdate(t, tracker, []Detection{{X: 10, Y: 10, W: 4, H: 4, Name: "face", Confidence: 0.9}}, 1)
	mustUpdate(t, tracker, []Detection{{X: 100, Y: 100, W: 4, H: 4, Name: "face", Confidence: 0.9}}, 2)
	if len(tracker.AllTracks()) != 2 {
		t.Fatalf("Expected archived and live track, got %d", len(tracker.AllTracks()))
	}
	tracker.Reset()
	if tracker.Len() != 0 || len(tracker.AllTracks()) != 0 {
		t.Errorf("Expected no tracks after reset, got %d live and %d total", tracker.Len(), len(tracker.AllTracks()))
	}
	mustUpdate(t, tracker, []Detection{{X: 10, Y: 10, W: 4, H: 4, Name: "face", Confidence: 0.9}}, 3)
	if id := tracker.Tracks()[0].GetIDDisplay(); id != 0 {
		t.Errorf("Display ID should restart from 0, got %d", id)
	}
	if !tracker.Config().KeepAllHistoryInMemory {
		t.Error("Reset must keep configuration")
	}
}

func TestTrackerKeepInMemory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FastDelete = false
	cfg.UnMatchedFramesTolerance = 1
	tracker := newTestTracker(t, cfg)
	mustUpdate(t, tracker, []Detection{{X: 10, Y: 10, W: 4, H: 4, Name: "face", Confidence: 0.9}}, 1)
	mustUpdate(t, tracker, nil, 2)
	mustUpdate(t, tracker, nil, 3)
	if len(tracker.AllTracks()) != 0 {
		t.Errorf("Dead tracks should not be kept by default, got %d", len(tracker.AllTracks()))
	}

	tracker.EnableKeepInMemory()
	mustUpdate(t, tracker, []Detection{{X: 10, Y: 10, W: 4, H: 4, Name: "face", Confidence: 0.9}}, 4)
	mustUpdate(t, tracker, nil, 5)
	mustUpdate(t, tracker, nil, 6)
	all := tracker.AllTracks()
	if len(all) != 1 || tracker.Len() != 0 {
		t.Fatalf("Expected single archived track, got %d total and %d live", len(all), tracker.Len())
	}
	archived := all[0]
	if archived.GetIDDisplay() != 1 {
		t.Errorf("Expected display ID 1, got %d", archived.GetIDDisplay())
	}
	if frame, ok := archived.GetDisappearFrame(); !ok || frame != 5 {
		t.Errorf("Expected disappear frame 5, got %d (%v)", frame, ok)
	}

	tracker.DisableKeepInMemory()
	mustUpdate(t, tracker, []Detection{{X: 10, Y: 10, W: 4, H: 4, Name: "face", Confidence: 0.9}}, 7)
	mustUpdate(t, tracker, nil, 8)
	mustUpdate(t, tracker, nil, 9)
	if len(tracker.AllTracks()) != 1 {
		t.Errorf("Already archived tracks should be kept, got %d", len(tracker.AllTracks()))
	}
}

func TestTrackerUnknownAlgorithm(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MatchingAlgorithm = MatchingAlgorithm(42)
	_, err := NewTracker(cfg)
	if !errors.Is(err, ErrUnknownMatchingAlgorithm) {
		t.Errorf("Expected ErrUnknownMatchingAlgorithm, got %v", err)
	}

	tracker := NewDefaultTracker()
	err = tracker.SetConfig(cfg)
	if !errors.Is(err, ErrUnknownMatchingAlgorithm) {
		t.Errorf("Expected ErrUnknownMatchingAlgorithm, got %v", err)
	}
	if tracker.Config().MatchingAlgorithm != MatchingAlgorithmKDTree {
		t.Error("Failed reconfiguration must keep previous parameters")
	}
}

func TestTrackerSwitchAlgorithm(t *testing.T) {
	tracker := NewDefaultTracker()
	mustUpdate(t, tracker, []Detection{{X: 10, Y: 10, W: 4, H: 4, Name: "face", Confidence: 0.9}}, 1)
	cfg := tracker.Config()
	cfg.MatchingAlgorithm = MatchingAlgorithmMunkres
	err := tracker.SetConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	mustUpdate(t, tracker, []Detection{{X: 11, Y: 10, W: 4, H: 4, Name: "face", Confidence: 0.9}}, 2)
	if tracker.Len() != 1 || tracker.Tracks()[0].GetNbTimeMatched() != 2 {
		t.Errorf("Existing track should be matched after switching algorithm")
	}
}

func TestTrackerLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	tracker, err := NewTracker(DefaultConfig(), WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	mustUpdate(t, tracker, []Detection{{X: 10, Y: 10, W: 4, H: 4, Name: "face", Confidence: 0.9}}, 1)
	mustUpdate(t, tracker, nil, 2)
	output := buf.String()
	if !strings.Contains(output, "track spawned") || !strings.Contains(output, "track removed") {
		t.Errorf("Expected life-cycle events in log, got %s", output)
	}
	if strings.Contains(output, "frame processed") {
		t.Errorf("Trace events should be filtered out on debug level, got %s", output)
	}
}
