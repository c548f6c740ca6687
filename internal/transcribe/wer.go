package transcribe

import (
	"math"
	"strings"
	"unicode"
)

// WERResult holds word error rate details for a transcript.
type WERResult struct {
	WER           float64 // (S + I + D) / RefWords; 0.0 is perfect, +Inf for words against an empty reference
	Substitutions int
	Insertions    int
	Deletions     int
	RefWords      int
	HypWords      int
}

// ComputeWER scores a hypothesis transcript against a reference. Both are
// lowercased, stripped of punctuation and split on whitespace first, so
// the capitalization and terminal periods added by stitching do not count
// as errors.
func ComputeWER(reference, hypothesis string) WERResult {
	ref := normalizeWords(reference)
	hyp := normalizeWords(hypothesis)
	n, m := len(ref), len(hyp)

	res := WERResult{RefWords: n, HypWords: m}
	if n == 0 {
		res.Insertions = m
		if m > 0 {
			res.WER = math.Inf(1)
		}
		return res
	}

	// dist[i][j] is the edit distance between ref[:i] and hyp[:j].
	dist := make([][]int, n+1)
	for i := range dist {
		dist[i] = make([]int, m+1)
		dist[i][0] = i
	}
	for j := 1; j <= m; j++ {
		dist[0][j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if ref[i-1] == hyp[j-1] {
				dist[i][j] = dist[i-1][j-1]
				continue
			}
			dist[i][j] = 1 + min(dist[i-1][j-1], dist[i-1][j], dist[i][j-1])
		}
	}

	// Walk back from the corner to classify each edit.
	for i, j := n, m; i > 0 || j > 0; {
		switch {
		case i > 0 && j > 0 && ref[i-1] == hyp[j-1]:
			i, j = i-1, j-1
		case i > 0 && j > 0 && dist[i][j] == dist[i-1][j-1]+1:
			res.Substitutions++
			i, j = i-1, j-1
		case i > 0 && dist[i][j] == dist[i-1][j]+1:
			res.Deletions++
			i--
		default:
			res.Insertions++
			j--
		}
	}

	res.WER = float64(res.Substitutions+res.Insertions+res.Deletions) / float64(n)
	return res
}

// normalizeWords lowercases text, strips punctuation, and splits into words.
func normalizeWords(s string) []string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Fields(s)
}
