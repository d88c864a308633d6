package transcribe

// Fuzzy stitching of windowed transcripts. Consecutive audio windows
// overlap, so their transcripts usually share a suffix/prefix; the merge
// finds the longest boundary region whose halves are similar enough and
// joins the texts there instead of duplicating it.

// mergeOverlappingStrings joins b onto a, dropping the longest prefix of b
// whose Levenshtein similarity to the matching suffix of a reaches thresh
// (0..1, where 1 requires an exact match). maxRange bounds how many
// boundary characters are examined; 0 means the full shorter string.
// It returns the merged text, the match length, and the match score
// (-1 when no boundary region met the threshold).
func mergeOverlappingStrings(a, b string, thresh float64, maxRange int) (string, int, float64) {
	ra, rb := []rune(a), []rune(b)

	limit := len(ra)
	if len(rb) < limit {
		limit = len(rb)
	}
	if maxRange > 0 && maxRange < limit {
		limit = maxRange
	}

	match := 0
	matchScore := -1.0
	for i := 1; i <= limit; i++ {
		score := similarity(ra[len(ra)-i:], rb[:i])
		if score >= thresh {
			match = i
			matchScore = score
		}
	}

	return a + string(rb[match:]), match, matchScore
}

// similarity is the normalized Levenshtein ratio between two rune slices:
// (len(a)+len(b)-dist)/(len(a)+len(b)) with substitutions costing 2, so
// identical strings score 1 and disjoint strings score 0.
func similarity(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	return float64(total-weightedDistance(a, b)) / float64(total)
}

// weightedDistance computes edit distance with insert/delete cost 1 and
// substitution cost 2, using two rolling rows.
func weightedDistance(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 2
			if a[i-1] == b[j-1] {
				cost = 0
			}
			sub := prev[j-1] + cost
			del := prev[j] + 1
			ins := curr[j-1] + 1
			curr[j] = min(sub, min(del, ins))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
