package kvutil

// NextPrefix returns the smallest key that is larger than every key starting with prefix. It returns
// an empty slice when no such key exists (the prefix is empty or all 0xff).
func NextPrefix(prefix []byte) []byte {
	end := len(prefix)
	for end > 0 && prefix[end-1] == 0xff {
		end--
	}
	if end == 0 {
		return []byte{}
	}
	next := make([]byte, end)
	copy(next, prefix[:end])
	next[end-1]++
	return next
}
