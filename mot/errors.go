package mot

import "github.com/pkg/errors"

var (
	// ErrUnknownMatchingAlgorithm is returned for matching algorithm names/values other than kdTree and munkres
	ErrUnknownMatchingAlgorithm = errors.New("unknown matching algorithm")
	// ErrUnknownMotionModel is returned for motion model names/values other than window and kalman
	ErrUnknownMotionModel = errors.New("unknown motion model")
	// ErrInvalidConfig is returned when numeric tracker parameters are out of range
	ErrInvalidConfig = errors.New("invalid tracker configuration")
	// ErrNonFiniteCost is returned by Munkres when cost matrix contains NaN or Inf
	ErrNonFiniteCost = errors.New("cost matrix contains non-finite value")
	// ErrRaggedMatrix is returned by Munkres when rows of cost matrix have different length
	ErrRaggedMatrix = errors.New("cost matrix rows have different length")
)
