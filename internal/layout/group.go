package layout

import "math"

const (
	// DefaultMaxDistance is the vertical tolerance used by Group.
	DefaultMaxDistance = 5.0

	sameLineMaxGap   = 50.0
	nextLineMaxShift = 20.0
)

// Group merges adjacent units into groups in a single forward pass.
//
// Each unit is compared with the previous unit only, never with the running
// group envelope. A unit joins the open group when it continues the same line
// (top edges within maxDistance, horizontal gap under 50) or starts the next
// line (vertical gap under 2*maxDistance, left edges within 20).
func Group(units []TextUnit, maxDistance float64) []TextGroup {
	if len(units) == 0 {
		return []TextGroup{}
	}
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}

	var groups []TextGroup
	current := []TextUnit{units[0]}
	for i := 1; i < len(units); i++ {
		prev, cur := units[i-1], units[i]
		if adjacent(prev.BBox, cur.BBox, maxDistance) {
			current = append(current, cur)
			continue
		}
		groups = append(groups, newTextGroup(current))
		current = []TextUnit{cur}
	}
	return append(groups, newTextGroup(current))
}

func adjacent(prev, cur Rect, maxDistance float64) bool {
	sameLine := math.Abs(cur.Y0-prev.Y0) < maxDistance &&
		math.Abs(cur.X0-prev.X1) < sameLineMaxGap
	if sameLine {
		return true
	}
	return math.Abs(cur.Y0-prev.Y1) < 2*maxDistance &&
		math.Abs(cur.X0-prev.X0) < nextLineMaxShift
}
