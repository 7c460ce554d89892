package merge

import "strconv"

// ChunkName returns the output name of chunk i: base for the first chunk,
// then base_part2, base_part3 and so on.
func ChunkName(base string, i int) string {
	if i == 0 {
		return base
	}
	return base + "_part" + strconv.Itoa(i+1)
}
