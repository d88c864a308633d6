package transcribe

import "testing"

func TestMergeExactOverlap(t *testing.T) {
	merged, match, score := mergeOverlappingStrings(
		"the quick brown fox", "brown fox jumps over", 1.0, 0)
	if merged != "the quick brown fox jumps over" {
		t.Errorf("merged = %q", merged)
	}
	if match != len("brown fox") {
		t.Errorf("match = %d, want %d", match, len("brown fox"))
	}
	if score != 1.0 {
		t.Errorf("score = %f, want 1.0", score)
	}
}

func TestMergeNoOverlap(t *testing.T) {
	merged, match, score := mergeOverlappingStrings("hello", "world", 0.9, 0)
	if merged != "helloworld" {
		t.Errorf("merged = %q, want %q", merged, "helloworld")
	}
	if match != 0 {
		t.Errorf("match = %d, want 0", match)
	}
	if score != -1 {
		t.Errorf("score = %f, want -1", score)
	}
}

func TestMergeFuzzyOverlap(t *testing.T) {
	// Two transposed characters inside the shared region still merge when
	// the threshold allows it, and the earlier window's reading wins.
	merged, match, _ := mergeOverlappingStrings(
		"one two three four", "three fuor five six", 0.8, 0)
	if match != len("three fuor") {
		t.Fatalf("match = %d, want %d (merged = %q)", match, len("three fuor"), merged)
	}
	if want := "one two three four five six"; merged != want {
		t.Errorf("merged = %q, want %q", merged, want)
	}
}

func TestMergeThresholdRejects(t *testing.T) {
	// With an exact-match threshold the fuzzy region must not merge.
	_, match, _ := mergeOverlappingStrings(
		"one two three four", "three fuor five six", 1.0, 0)
	if match != 0 {
		t.Errorf("match = %d, want 0 under exact threshold", match)
	}
}

func TestMergeMaxRange(t *testing.T) {
	// Cap the scan below the real overlap length; only a shorter match can
	// be found.
	_, match, _ := mergeOverlappingStrings(
		"the quick brown fox", "brown fox jumps", 1.0, 3)
	if match > 3 {
		t.Errorf("match = %d exceeds maxRange 3", match)
	}
}

func TestMergeEmptyInputs(t *testing.T) {
	if merged, _, _ := mergeOverlappingStrings("", "text", 0.9, 0); merged != "text" {
		t.Errorf("merged = %q, want %q", merged, "text")
	}
	if merged, _, _ := mergeOverlappingStrings("text", "", 0.9, 0); merged != "text" {
		t.Errorf("merged = %q, want %q", merged, "text")
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"abc", "abc", 1},
		{"", "", 1},
		{"abc", "xyz", 0},
		{"ab", "ab", 1},
	}
	for _, tt := range tests {
		if got := similarity([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Errorf("similarity(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestWeightedDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 2},  // one substitution, cost 2
		{"abc", "abcd", 1}, // one insertion
	}
	for _, tt := range tests {
		if got := weightedDistance([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Errorf("weightedDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
