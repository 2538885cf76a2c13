package mot

import (
	"math"
	"math/rand"
	"testing"
)

func TestKDTreeMatcherNearestDetection(t *testing.T) {
	cfg := DefaultConfig()
	m, err := newMatcher(cfg)
	if err != nil {
		t.Fatal(err)
	}
	metric := cfg.distance()
	rng := rand.New(rand.NewSource(8))
	randomBox := func() Box {
		return NewBox(rng.Float64()*200, rng.Float64()*200, 10+rng.Float64()*50, 10+rng.Float64()*50)
	}
	for iter := 0; iter < 300; iter++ {
		track := randomBox()
		detections := make([]Box, 30)
		for i := range detections {
			detections[i] = randomBox()
		}
		_, expected := bruteForceNearest(detections, nil, track, metric)

		result, err := m.match(matchInput{
			predicted:  []Box{track},
			current:    []Box{track},
			detections: detections,
		})
		if err != nil {
			t.Fatal(err)
		}
		if expected >= cfg.DistanceLimit {
			if len(result.assignments) != 0 {
				t.Errorf("Expected no pair, got %v", result.assignments)
			}
			continue
		}
		if len(result.assignments) != 1 {
			t.Fatalf("Overlapping detection at distance %v exists, but track has not been matched", expected)
		}
		if math.Abs(result.assignments[0].Cost-expected) > eps {
			t.Errorf("Expected distance %v, got %v", expected, result.assignments[0].Cost)
		}
		// Every unclaimed detection overlapping the matched position must be suppressed
		matched := detections[result.assignments[0].Detection]
		for _, idx := range result.spawn {
			if metric(detections[idx], matched) < cfg.DistanceLimit {
				t.Errorf("Detection %d overlaps matched track, but spawns new one", idx)
			}
		}
	}
}
