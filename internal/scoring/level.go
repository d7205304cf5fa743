package scoring

// PointsPerLevel is the width of every level band.
const PointsPerLevel = 100

// Level derives the level from cumulative points. Level 1 starts at 0.
func Level(points int) int {
	return max(points, 0)/PointsPerLevel + 1
}

// ProgressWithinLevel returns points earned inside the current level, in [0, 99].
func ProgressWithinLevel(points int) int {
	return max(points, 0) % PointsPerLevel
}

// PointsForNextLevel returns the cumulative points at which the next level starts.
func PointsForNextLevel(points int) int {
	return Level(points) * PointsPerLevel
}
