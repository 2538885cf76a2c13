// mot-tracker replays a detections file through the tracker and prints tracks frame by frame.
//
// Supported inputs:
//   - darknet: JSON array of frames as produced by darknet/YOLO with relative coordinates
//   - motchallenge: det.txt lines "frame,-1,left,top,width,height,confidence,..."
//
// Output is either MOT challenge lines or JSON lines (one JSON document per frame).
package main

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"flag"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/LdDl/moving-things-tracker/mot"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	inputPath   = flag.String("input", "", "Path to detections file")
	mode        = flag.String("mode", "darknet", "Input format: darknet or motchallenge")
	configPath  = flag.String("config", "", "Path to YAML tracker configuration (optional)")
	algorithm   = flag.String("algorithm", "", "Override matching algorithm: kdTree or munkres")
	outputMode  = flag.String("output", "mot", "Output format: mot, json or debug")
	frameWidth  = flag.Float64("width", 1280, "Frame width for darknet relative coordinates")
	frameHeight = flag.Float64("height", 720, "Frame height for darknet relative coordinates")
	keepHistory = flag.Bool("keep-history", false, "Keep dead tracks and print their summary at the end")
	logLevel    = flag.String("log-level", "info", "Log level: trace, debug, info, warn, error")
)

// frameDetections is detections of a single frame
type frameDetections struct {
	frameNb    int
	detections []mot.Detection
}

type darknetFrame struct {
	FrameID int             `json:"frame_id"`
	Objects []darknetObject `json:"objects"`
}

type darknetObject struct {
	ClassID             int                `json:"class_id"`
	Name                string             `json:"name"`
	Confidence          float64            `json:"confidence"`
	RelativeCoordinates darknetCoordinates `json:"relative_coordinates"`
}

type darknetCoordinates struct {
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

func main() {
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	err = run(logger, os.Stdout)
	if err != nil {
		logger.Fatal().Err(err).Msg("Can't replay detections")
	}
}

// run replays detections and writes output. Output is flushed even when replay fails midway
func run(logger zerolog.Logger, stdout io.Writer) error {
	if *inputPath == "" {
		return errors.New("-input is required")
	}

	cfg := mot.DefaultConfig()
	var err error
	if *configPath != "" {
		cfg, err = mot.LoadConfig(*configPath)
		if err != nil {
			return err
		}
	}
	if *algorithm != "" {
		cfg.MatchingAlgorithm, err = mot.ParseMatchingAlgorithm(*algorithm)
		if err != nil {
			return errors.Wrap(err, "Bad -algorithm flag")
		}
	}
	if *keepHistory {
		cfg.KeepAllHistoryInMemory = true
	}

	tracker, err := mot.NewTracker(cfg, mot.WithLogger(logger))
	if err != nil {
		return err
	}

	file, err := os.Open(*inputPath)
	if err != nil {
		return errors.Wrapf(err, "Can't open input %s", *inputPath)
	}
	defer file.Close()

	var frames []frameDetections
	switch *mode {
	case "darknet":
		frames, err = readDarknet(file, *frameWidth, *frameHeight)
	case "motchallenge":
		frames, err = readMOTChallenge(file)
	default:
		err = errors.Errorf("unknown input mode %q", *mode)
	}
	if err != nil {
		return errors.Wrap(err, "Can't read detections")
	}
	logger.Info().
		Int("frames", len(frames)).
		Str("algorithm", cfg.MatchingAlgorithm.String()).
		Str("motion", cfg.MotionModel.String()).
		Msg("Replaying detections")

	out := bufio.NewWriter(stdout)
	defer out.Flush()

	err = replay(tracker, frames, *outputMode, out)
	if err != nil {
		return err
	}
	if *keepHistory {
		err = json.NewEncoder(out).Encode(tracker.AllTracksInfo())
		if err != nil {
			return errors.Wrap(err, "Can't write tracks summary")
		}
	}
	logger.Info().Int("live_tracks", tracker.Len()).Msg("Done")
	return nil
}

// replay feeds frames to the tracker and writes tracks of every frame in the given output format
func replay(tracker *mot.Tracker, frames []frameDetections, format string, out io.Writer) error {
	encoder := json.NewEncoder(out)
	for _, frame := range frames {
		err := tracker.Update(frame.detections, frame.frameNb)
		if err != nil {
			return errors.Wrapf(err, "Can't update tracker on frame %d", frame.frameNb)
		}
		switch format {
		case "json":
			err = encoder.Encode(map[string]interface{}{"frame": frame.frameNb, "tracks": tracker.Snapshot(true)})
		case "debug":
			err = encoder.Encode(map[string]interface{}{"frame": frame.frameNb, "tracks": tracker.DebugSnapshot()})
		default:
			err = tracker.WriteMOT(out, frame.frameNb)
		}
		if err != nil {
			return errors.Wrapf(err, "Can't write output for frame %d", frame.frameNb)
		}
	}
	return nil
}

// readDarknet parses darknet JSON output. Relative coordinates are scaled to frame size
func readDarknet(r io.Reader, width, height float64) ([]frameDetections, error) {
	var raw []darknetFrame
	err := json.NewDecoder(r).Decode(&raw)
	if err != nil {
		return nil, errors.Wrap(err, "Can't decode darknet JSON")
	}
	frames := make([]frameDetections, 0, len(raw))
	for _, frame := range raw {
		detections := make([]mot.Detection, 0, len(frame.Objects))
		for _, object := range frame.Objects {
			detections = append(detections, mot.Detection{
				X:          object.RelativeCoordinates.CenterX * width,
				Y:          object.RelativeCoordinates.CenterY * height,
				W:          object.RelativeCoordinates.Width * width,
				H:          object.RelativeCoordinates.Height * height,
				Name:       object.Name,
				Confidence: object.Confidence,
			})
		}
		frames = append(frames, frameDetections{frameNb: frame.FrameID, detections: detections})
	}
	return frames, nil
}

// readMOTChallenge parses MOT challenge det.txt. Frames without detections are not listed in such files,
// so gaps are filled with empty frames to let tracks age
func readMOTChallenge(r io.Reader) ([]frameDetections, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	byFrame := make(map[int][]mot.Detection)
	maxFrame := 0
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrapf(err, "Can't read line %d", line)
		}
		if len(record) < 7 {
			return nil, errors.Errorf("line %d: expected at least 7 fields, got %d", line, len(record))
		}
		values := make([]float64, 7)
		for i := 0; i < 7; i++ {
			values[i], err = strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: field %d", line, i+1)
			}
		}
		frameNb := int(values[0])
		left, top, w, h := values[2], values[3], values[4], values[5]
		byFrame[frameNb] = append(byFrame[frameNb], mot.Detection{
			X:          left + w/2,
			Y:          top + h/2,
			W:          w,
			H:          h,
			Name:       "object",
			Confidence: values[6],
		})
		if frameNb > maxFrame {
			maxFrame = frameNb
		}
	}

	frameNumbers := make([]int, 0, len(byFrame))
	for frameNb := range byFrame {
		frameNumbers = append(frameNumbers, frameNb)
	}
	sort.Ints(frameNumbers)
	if len(frameNumbers) == 0 {
		return []frameDetections{}, nil
	}
	frames := make([]frameDetections, 0, maxFrame-frameNumbers[0]+1)
	for frameNb := frameNumbers[0]; frameNb <= maxFrame; frameNb++ {
		frames = append(frames, frameDetections{frameNb: frameNb, detections: byFrame[frameNb]})
	}
	return frames, nil
}
