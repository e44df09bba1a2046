package tetrisnt

// linePoints is the base award for clearing 1, 2, 3 or 4 lines together.
var linePoints = [...]uint32{40, 100, 300, 1200}

// Points returns the score for clearing lines rows together at level.
// ok is false when lines is outside 1..4.
func Points(lines, level uint8) (points uint32, ok bool) {
	if lines == 0 || int(lines) > len(linePoints) {
		return 0, false
	}
	return linePoints[lines-1] * (uint32(level) + 1), true
}

// gravityFrames is how many ticks a piece waits before falling one row,
// indexed by level. Levels past the end use the last entry.
var gravityFrames = [...]uint8{
	48, 43, 38, 33, 28, 23, 18, 13, 8, 6,
	5, 5, 5, 4, 4, 4, 3, 3, 3,
	2, 2, 2, 2, 2, 2, 2, 2, 2, 2,
	1,
}

// GravityFrames returns the number of ticks per gravity drop at level.
func GravityFrames(level uint8) uint8 {
	if int(level) >= len(gravityFrames) {
		return gravityFrames[len(gravityFrames)-1]
	}
	return gravityFrames[level]
}
