package mot

import (
	"math"

	"github.com/pkg/errors"
)

// matchInput holds per-frame data for matching. Track slices are aligned: index i is the same track.
type matchInput struct {
	// Where tracks are expected to be on this frame
	predicted []Box
	// Where tracks were on the previous frame
	current    []Box
	detections []Box
}

// matchResult holds pairs (track, detection) and indices of detections which should start new tracks
type matchResult struct {
	assignments []Assignment
	spawn       []int
}

// matcher is the strategy for matching detections to tracks
type matcher interface {
	match(in matchInput) (matchResult, error)
}

func newMatcher(cfg Config) (matcher, error) {
	switch cfg.MatchingAlgorithm {
	case MatchingAlgorithmKDTree:
		return &kdTreeMatcher{distance: cfg.distance(), bound: cfg.planeBound(), distanceLimit: cfg.DistanceLimit}, nil
	case MatchingAlgorithmMunkres:
		return &munkresMatcher{distance: cfg.distance(), distanceLimit: cfg.DistanceLimit}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownMatchingAlgorithm, "value %d", cfg.MatchingAlgorithm)
	}
}

// kdTreeMatcher is greedy first-come-first-served matching.
// Tracks are processed in the given order and every track takes the nearest unclaimed detection.
// Result depends on the order of tracks and is not globally optimal.
type kdTreeMatcher struct {
	distance      DistanceFunc
	bound         PlaneBoundFunc
	distanceLimit float64
}

func (m *kdTreeMatcher) match(in matchInput) (matchResult, error) {
	result := matchResult{
		assignments: make([]Assignment, 0, minInt(len(in.predicted), len(in.detections))),
		spawn:       make([]int, 0),
	}
	claimed := make([]bool, len(in.detections))
	detectionBox := func(idx int) Box { return in.detections[idx] }

	if len(in.detections) > 0 {
		indices := make([]int, len(in.detections))
		for i := range indices {
			indices[i] = i
		}
		detectionsTree := NewKDTree(indices, detectionBox, m.distance, m.bound)
		for trackIdx, predicted := range in.predicted {
			nearest := detectionsTree.NearestWithin(predicted, 1, m.distanceLimit)
			if len(nearest) == 0 {
				continue
			}
			// Claimed detections leave the tree, so the nearest one is always unclaimed
			detectionIdx := nearest[0].Item
			claimed[detectionIdx] = true
			detectionsTree.Remove(detectionIdx)
			result.assignments = append(result.assignments, Assignment{
				Track:     trackIdx,
				Detection: detectionIdx,
				Cost:      nearest[0].Distance,
			})
		}
	}

	// Matched tracks are compared at their new position
	positions := make([]Box, len(in.current))
	copy(positions, in.current)
	for _, assignment := range result.assignments {
		positions[assignment.Track] = in.detections[assignment.Detection]
	}
	slots := make([]int, len(positions))
	for i := range slots {
		slots[i] = i
	}
	tracksTree := NewKDTree(slots, func(idx int) Box { return positions[idx] }, m.distance, m.bound)
	for detectionIdx, detection := range in.detections {
		if claimed[detectionIdx] {
			continue
		}
		if len(tracksTree.NearestWithin(detection, 1, m.distanceLimit)) > 0 {
			continue
		}
		result.spawn = append(result.spawn, detectionIdx)
		positions = append(positions, detection)
		tracksTree.Insert(len(positions) - 1)
	}
	return result, nil
}

// munkresMatcher finds assignment with minimum total distance
type munkresMatcher struct {
	distance      DistanceFunc
	distanceLimit float64
}

func (m *munkresMatcher) match(in matchInput) (matchResult, error) {
	result := matchResult{
		assignments: make([]Assignment, 0, minInt(len(in.predicted), len(in.detections))),
		spawn:       make([]int, 0),
	}
	if len(in.detections) == 0 {
		return result, nil
	}

	costMatrix := make([][]float64, len(in.predicted))
	for i, predicted := range in.predicted {
		row := make([]float64, len(in.detections))
		for j, detection := range in.detections {
			row[j] = m.distance(predicted, detection)
		}
		costMatrix[i] = row
	}

	pairs, err := Munkres(costMatrix)
	if err != nil {
		return matchResult{}, errors.Wrap(err, "Can't solve assignment problem")
	}

	claimed := make([]bool, len(in.detections))
	for _, pair := range pairs {
		// Solver pairs everything it can, but only close enough pairs make sense
		if pair.Cost > m.distanceLimit {
			continue
		}
		claimed[pair.Detection] = true
		result.assignments = append(result.assignments, pair)
	}

	for j, detection := range in.detections {
		if claimed[j] {
			continue
		}
		minCost := math.Inf(1)
		for _, row := range costMatrix {
			if row[j] < minCost {
				minCost = row[j]
			}
		}
		if minCost <= m.distanceLimit {
			continue
		}
		result.spawn = append(result.spawn, j)
		row := make([]float64, len(in.detections))
		for k, other := range in.detections {
			row[k] = m.distance(detection, other)
		}
		costMatrix = append(costMatrix, row)
	}
	return result, nil
}
