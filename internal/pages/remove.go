package pages

// Remove returns the pages of in whose 1-based position is not selected, in their
// original order. The input slice is never modified; indices past len(in) are ignored.
func Remove[T any](in []T, sel Selection) []T {
	out := make([]T, 0, len(in))
	for i, p := range in {
		if sel.Contains(i + 1) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Kept lists the 1-based positions of a total-page document that survive removal.
func Kept(total int, sel Selection) []int {
	all := make([]int, total)
	for i := range all {
		all[i] = i + 1
	}
	return Remove(all, sel)
}
