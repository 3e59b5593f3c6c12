package allocation

// overlapMode reports whether the batch must tolerate shared teams: there
// are fewer free teams than one exclusive block per judge.
func overlapMode(available, judges, blockSize int) bool {
	if blockSize <= 0 {
		return false
	}
	maxExclusiveBlocks := available / blockSize
	return judges > maxExclusiveBlocks
}
