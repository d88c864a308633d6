package transcribe

import (
	"strings"
	"unicode"
)

// Accuracy holds word error rate results for a transcript checked against
// a reference text.
type Accuracy struct {
	WER           float64 // (subs+ins+dels) / reference word count
	Substitutions int
	Insertions    int // extra words in the transcript
	Deletions     int // reference words the transcript missed
	RefWords      int
}

// ComputeWER scores a transcript against a reference. Both texts are
// normalized first: lowercased, punctuation stripped, whitespace collapsed.
func ComputeWER(reference, transcript string) Accuracy {
	ref := normalizeWords(reference)
	hyp := normalizeWords(transcript)

	n, m := len(ref), len(hyp)
	if n == 0 {
		return Accuracy{}
	}

	d := make([][]int, n+1)
	for i := range d {
		d[i] = make([]int, m+1)
		d[i][0] = i
	}
	for j := 0; j <= m; j++ {
		d[0][j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if ref[i-1] == hyp[j-1] {
				d[i][j] = d[i-1][j-1]
				continue
			}
			d[i][j] = min(d[i-1][j-1], min(d[i-1][j], d[i][j-1])) + 1
		}
	}

	// Backtrace to split the distance into error kinds.
	var subs, ins, dels int
	for i, j := n, m; i > 0 || j > 0; {
		switch {
		case i > 0 && j > 0 && ref[i-1] == hyp[j-1]:
			i--
			j--
		case i > 0 && j > 0 && d[i][j] == d[i-1][j-1]+1:
			subs++
			i--
			j--
		case i > 0 && d[i][j] == d[i-1][j]+1:
			dels++
			i--
		default:
			ins++
			j--
		}
	}

	return Accuracy{
		WER:           float64(subs+ins+dels) / float64(n),
		Substitutions: subs,
		Insertions:    ins,
		Deletions:     dels,
		RefWords:      n,
	}
}

func normalizeWords(s string) []string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return r
	}, s)
	return strings.Fields(s)
}
