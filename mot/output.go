package mot

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// TrackJSON is public snapshot of a live track, e.g. for renderers
type TrackJSON struct {
	ID         int     `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
	Confidence float64 `json:"confidence"`
	Bearing    int     `json:"bearing"`
	Name       string  `json:"name"`
	IsZombie   bool    `json:"isZombie"`
}

// TrackDebugJSON exposes internal bookkeeping of a live track
type TrackDebugJSON struct {
	ID             string         `json:"id"`
	IDDisplay      int            `json:"idDisplay"`
	X              float64        `json:"x"`
	Y              float64        `json:"y"`
	W              float64        `json:"w"`
	H              float64        `json:"h"`
	Confidence     float64        `json:"confidence"`
	Name           string         `json:"name"`
	NameCount      map[string]int `json:"nameCount"`
	IsZombie       bool           `json:"isZombie"`
	AppearFrame    int            `json:"appearFrame"`
	DisappearFrame *int           `json:"disappearFrame"`
	NbTimeMatched  int            `json:"nbTimeMatched"`
	FramesLeft     int            `json:"frameUnmatchedLeftBeforeDying"`
	Velocity       Velocity       `json:"velocity"`
}

// TrackInfoJSON is summary of a track's life, live or archived
type TrackInfoJSON struct {
	ID             string   `json:"id"`
	IDDisplay      int      `json:"idDisplay"`
	AppearFrame    int      `json:"appearFrame"`
	DisappearFrame *int     `json:"disappearFrame"`
	DisappearArea  *BoxJSON `json:"disappearArea"`
	NbActiveFrame  *int     `json:"nbActiveFrame"`
	Name           string   `json:"name"`
}

// BoxJSON is center based box for JSON output
type BoxJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// ToJSON returns public snapshot of the track. With roundInt geometry is truncated to integers
func (track *Track) ToJSON(roundInt bool) TrackJSON {
	out := TrackJSON{
		ID:         track.idDisplay,
		X:          track.x,
		Y:          track.y,
		W:          track.w,
		H:          track.h,
		Confidence: math.Round(track.confidence*100) / 100,
		Bearing:    int(track.Bearing()),
		Name:       track.MostlyMatchedName(),
		IsZombie:   track.isZombie,
	}
	if roundInt {
		out.X = math.Trunc(out.X)
		out.Y = math.Trunc(out.Y)
		out.W = math.Trunc(out.W)
		out.H = math.Trunc(out.H)
	}
	return out
}

// ToJSONDebug returns snapshot with internal identifiers and frame bookkeeping
func (track *Track) ToJSONDebug() TrackDebugJSON {
	out := TrackDebugJSON{
		ID:            track.id.String(),
		IDDisplay:     track.idDisplay,
		X:             track.x,
		Y:             track.y,
		W:             track.w,
		H:             track.h,
		Confidence:    track.confidence,
		Name:          track.MostlyMatchedName(),
		NameCount:     track.GetNameCount(),
		IsZombie:      track.isZombie,
		AppearFrame:   track.appearFrame,
		NbTimeMatched: track.nbTimeMatched,
		FramesLeft:    track.frameUnmatchedLeftBeforeDying,
		Velocity:      track.velocity,
	}
	if frame, ok := track.GetDisappearFrame(); ok {
		out.DisappearFrame = &frame
	}
	return out
}

// ToJSONGenericInfo returns summary of the track's life
func (track *Track) ToJSONGenericInfo() TrackInfoJSON {
	out := TrackInfoJSON{
		ID:          track.id.String(),
		IDDisplay:   track.idDisplay,
		AppearFrame: track.appearFrame,
		Name:        track.MostlyMatchedName(),
	}
	if frame, ok := track.GetDisappearFrame(); ok {
		area := track.disappearArea
		active := frame - track.appearFrame
		out.DisappearFrame = &frame
		out.DisappearArea = &BoxJSON{X: area.X, Y: area.Y, W: area.W, H: area.H}
		out.NbActiveFrame = &active
	}
	return out
}

// ToMOT returns line in MOT challenge format:
// frame,id,left,top,width,height,confidence,-1,-1,-1
func (track *Track) ToMOT(frameNb int) string {
	fields := []string{
		strconv.Itoa(frameNb),
		strconv.Itoa(track.idDisplay),
		formatFloat(track.x - track.w/2),
		formatFloat(track.y - track.h/2),
		formatFloat(track.w),
		formatFloat(track.h),
		formatFloat(track.confidence / 100),
		"-1",
		"-1",
		"-1",
	}
	return strings.Join(fields, ",")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Snapshot returns public snapshot of live tracks in creation order
func (tracker *Tracker) Snapshot(roundInt bool) []TrackJSON {
	out := make([]TrackJSON, 0, len(tracker.order))
	for _, track := range tracker.Tracks() {
		out = append(out, track.ToJSON(roundInt))
	}
	return out
}

// DebugSnapshot returns debug snapshot of live tracks in creation order
func (tracker *Tracker) DebugSnapshot() []TrackDebugJSON {
	out := make([]TrackDebugJSON, 0, len(tracker.order))
	for _, track := range tracker.Tracks() {
		out = append(out, track.ToJSONDebug())
	}
	return out
}

// AllTracksInfo returns summaries of archived and live tracks
func (tracker *Tracker) AllTracksInfo() []TrackInfoJSON {
	all := tracker.AllTracks()
	out := make([]TrackInfoJSON, 0, len(all))
	for _, track := range all {
		out = append(out, track.ToJSONGenericInfo())
	}
	return out
}

// MOT returns live tracks as MOT challenge lines for the frame
func (tracker *Tracker) MOT(frameNb int) []string {
	out := make([]string, 0, len(tracker.order))
	for _, track := range tracker.Tracks() {
		out = append(out, track.ToMOT(frameNb))
	}
	return out
}

// WriteMOT writes MOT challenge lines for the frame, one per live track
func (tracker *Tracker) WriteMOT(w io.Writer, frameNb int) error {
	buf := bufio.NewWriter(w)
	for _, line := range tracker.MOT(frameNb) {
		_, err := buf.WriteString(line + "\n")
		if err != nil {
			return errors.Wrapf(err, "Can't write MOT line for frame %d", frameNb)
		}
	}
	err := buf.Flush()
	if err != nil {
		return errors.Wrapf(err, "Can't flush MOT lines for frame %d", frameNb)
	}
	return nil
}
