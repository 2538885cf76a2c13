package mot

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// MatchingAlgorithm is for algorithm type for matching detections to tracks
type MatchingAlgorithm uint16

const (
	// MatchingAlgorithmKDTree greedily matches every track (in creation order) with the nearest unclaimed detection
	MatchingAlgorithmKDTree MatchingAlgorithm = iota
	// MatchingAlgorithmMunkres uses the Hungarian algorithm (Kuhn-Munkres) for optimal assignment
	MatchingAlgorithmMunkres
)

// String returns configuration name of the algorithm
func (algorithm MatchingAlgorithm) String() string {
	switch algorithm {
	case MatchingAlgorithmKDTree:
		return "kdTree"
	case MatchingAlgorithmMunkres:
		return "munkres"
	default:
		return "unknown"
	}
}

// ParseMatchingAlgorithm converts configuration name into MatchingAlgorithm
func ParseMatchingAlgorithm(name string) (MatchingAlgorithm, error) {
	switch name {
	case "kdTree":
		return MatchingAlgorithmKDTree, nil
	case "munkres":
		return MatchingAlgorithmMunkres, nil
	default:
		return 0, errors.Wrapf(ErrUnknownMatchingAlgorithm, "%q", name)
	}
}

// UnmarshalYAML implements yaml.Unmarshaler
func (algorithm *MatchingAlgorithm) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseMatchingAlgorithm(value.Value)
	if err != nil {
		return errors.Wrapf(err, "line %d", value.Line)
	}
	*algorithm = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (algorithm MatchingAlgorithm) MarshalYAML() (interface{}, error) {
	return algorithm.String(), nil
}

// MotionModel is for the way track velocity is estimated
type MotionModel uint16

const (
	// MotionModelWindow derives velocity from the oldest and the newest observations kept in history
	MotionModelWindow MotionModel = iota
	// MotionModelKalman derives velocity from Kalman filter over box center and size
	MotionModelKalman
)

// String returns configuration name of the motion model
func (model MotionModel) String() string {
	switch model {
	case MotionModelWindow:
		return "window"
	case MotionModelKalman:
		return "kalman"
	default:
		return "unknown"
	}
}

// ParseMotionModel converts configuration name into MotionModel
func ParseMotionModel(name string) (MotionModel, error) {
	switch name {
	case "window":
		return MotionModelWindow, nil
	case "kalman":
		return MotionModelKalman, nil
	default:
		return 0, errors.Wrapf(ErrUnknownMotionModel, "%q", name)
	}
}

// UnmarshalYAML implements yaml.Unmarshaler
func (model *MotionModel) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseMotionModel(value.Value)
	if err != nil {
		return errors.Wrapf(err, "line %d", value.Line)
	}
	*model = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (model MotionModel) MarshalYAML() (interface{}, error) {
	return model.String(), nil
}

// Config holds tracker parameters
type Config struct {
	// Number of frames a track survives unmatched before removal. Default 5
	UnMatchedFramesTolerance int `yaml:"unMatchedFramesTolerance"`
	// Minimum IoU for a pair to be considered a match candidate. Default 0.05
	IoULimit float64 `yaml:"iouLimit"`
	// Remove unmatched tracks which have been matched at most once immediately. Default true
	FastDelete bool `yaml:"fastDelete"`
	// Pairs with distance above this value are never matched. Default 10000
	DistanceLimit float64 `yaml:"distanceLimit"`
	// Greedy (k-d tree) or optimal (Munkres) matching. Default kdTree
	MatchingAlgorithm MatchingAlgorithm `yaml:"matchingAlgorithm"`
	// Velocity estimation. Default window
	MotionModel MotionModel `yaml:"motionModel"`
	// Keep dead tracks in memory. Memory grows without bound when enabled. Default false
	KeepAllHistoryInMemory bool `yaml:"keepAllHistoryInMemory"`
	// Distance between predicted track box and detection box.
	// Default is IoUDistance bound to IoULimit and DistanceLimit
	DistanceFunc DistanceFunc `yaml:"-"`
	// Lower bound of DistanceFunc across a k-d tree split plane, e.g. EuclideanPlaneBound for EuclideanDistance.
	// When nil the k-d tree visits every node, which keeps matching exact for metrics like IoU distance
	PlaneBound PlaneBoundFunc `yaml:"-"`
}

// DefaultConfig returns default tracker parameters
func DefaultConfig() Config {
	return Config{
		UnMatchedFramesTolerance: 5,
		IoULimit:                 0.05,
		FastDelete:               true,
		DistanceLimit:            10000,
		MatchingAlgorithm:        MatchingAlgorithmKDTree,
		MotionModel:              MotionModelWindow,
		KeepAllHistoryInMemory:   false,
	}
}

// Validate checks parameters
func (cfg Config) Validate() error {
	if cfg.MatchingAlgorithm != MatchingAlgorithmKDTree && cfg.MatchingAlgorithm != MatchingAlgorithmMunkres {
		return errors.Wrapf(ErrUnknownMatchingAlgorithm, "value %d", cfg.MatchingAlgorithm)
	}
	if cfg.MotionModel != MotionModelWindow && cfg.MotionModel != MotionModelKalman {
		return errors.Wrapf(ErrUnknownMotionModel, "value %d", cfg.MotionModel)
	}
	if cfg.UnMatchedFramesTolerance < 0 {
		return errors.Wrapf(ErrInvalidConfig, "unMatchedFramesTolerance must be non-negative, got %d", cfg.UnMatchedFramesTolerance)
	}
	if cfg.IoULimit < 0 || cfg.IoULimit > 1 {
		return errors.Wrapf(ErrInvalidConfig, "iouLimit must be in [0, 1], got %f", cfg.IoULimit)
	}
	if cfg.DistanceLimit < 0 {
		return errors.Wrapf(ErrInvalidConfig, "distanceLimit must be non-negative, got %f", cfg.DistanceLimit)
	}
	return nil
}

// distance returns configured distance function
func (cfg Config) distance() DistanceFunc {
	if cfg.DistanceFunc != nil {
		return cfg.DistanceFunc
	}
	iouLimit := cfg.IoULimit
	distanceLimit := cfg.DistanceLimit
	return func(a, b Box) float64 {
		return IoUDistance(a, b, iouLimit, distanceLimit)
	}
}

// planeBound returns configured plane bound. Default IoU based distance has none
func (cfg Config) planeBound() PlaneBoundFunc {
	if cfg.DistanceFunc == nil {
		return nil
	}
	return cfg.PlaneBound
}

// ParseConfig reads YAML document on top of DefaultConfig
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	err := yaml.Unmarshal(data, &cfg)
	if err != nil {
		return Config{}, errors.Wrap(err, "Can't parse tracker configuration")
	}
	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads YAML file on top of DefaultConfig
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "Can't read tracker configuration %s", path)
	}
	return ParseConfig(data)
}
