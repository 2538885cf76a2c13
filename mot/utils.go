package mot

import (
	"math"
)

// IoU calculates Intersection over Union between two center based boxes.
// Returns 0 when boxes do not overlap or when union is degenerate.
func IoU(a, b Box) float64 {
	ax0, ay0, ax1, ay1 := a.Edges()
	bx0, by0, bx1, by1 := b.Edges()

	xA := maxFloat64(ax0, bx0)
	yA := maxFloat64(ay0, by0)
	xB := minFloat64(ax1, bx1)
	yB := minFloat64(ay1, by1)

	interArea := maxFloat64(0, xB-xA) * maxFloat64(0, yB-yA)
	if interArea == 0 {
		return 0.0
	}

	unionArea := a.Area() + b.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}
	return minFloat64(1.0, interArea/unionArea)
}

// IoUDistance returns 1-IoU(a, b).
// When IoU is less than iouLimit the distance is forced to distanceLimit+1, so matchers never pair such boxes.
func IoUDistance(a, b Box, iouLimit, distanceLimit float64) float64 {
	iou := IoU(a, b)
	if iou < iouLimit {
		return distanceLimit + 1
	}
	return 1 - iou
}

// EuclideanDistance is distance between two boxes in (x, y, w, h) space
func EuclideanDistance(a, b Box) float64 {
	sum := 0.0
	for d := 0; d < boxDims; d++ {
		diff := a.Dim(d) - b.Dim(d)
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// VelocityVector returns per-frame displacement between two history entries
func VelocityVector(start, end HistoryEntry, nbFrames int) Velocity {
	if nbFrames <= 0 {
		return Velocity{}
	}
	return Velocity{
		DX: (end.X - start.X) / float64(nbFrames),
		DY: (end.Y - start.Y) / float64(nbFrames),
	}
}

// Bearing360 returns angle in [0, 360) degrees measured clockwise from the positive Y axis.
// Pass (dx, -dy) for screen coordinates where Y grows downwards.
func Bearing360(dx, dy float64) float64 {
	if dy == 0 {
		switch {
		case dx > 0:
			return 90
		case dx < 0:
			return 270
		default:
			return 0
		}
	}
	if dx == 0 {
		if dy > 0 {
			return 0
		}
		return 180
	}
	angle := math.Atan(dx/dy) / (math.Pi / 180)
	var bearing float64
	if angle > 0 {
		if dy > 0 {
			bearing = angle
		} else {
			bearing = 180 + angle
		}
	} else {
		if dx > 0 {
			bearing = 180 + angle
		} else {
			bearing = 360 + angle
		}
	}
	if bearing >= 360 {
		bearing -= 360
	}
	return bearing
}

func maxFloat64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
