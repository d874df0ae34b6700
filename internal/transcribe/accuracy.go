package transcribe

import (
	"strings"
	"unicode"
)

// WordErrors compares a transcription against a reference transcript.
type WordErrors struct {
	Rate           float64 `json:"rate"` // (substitutions + insertions + deletions) / reference words
	Substitutions  int     `json:"substitutions"`
	Insertions     int     `json:"insertions"`
	Deletions      int     `json:"deletions"`
	ReferenceWords int     `json:"reference_words"`
}

// alignment is the cheapest edit script found so far for a prefix pair.
type alignment struct {
	subs, ins, dels int
}

func (a alignment) cost() int { return a.subs + a.ins + a.dels }

// CompareWords aligns hypothesis to reference by minimum word edit distance.
// Both are lowercased and stripped of punctuation first. An empty reference
// yields a zero result.
func CompareWords(reference, hypothesis string) WordErrors {
	ref := normalizeWords(reference)
	hyp := normalizeWords(hypothesis)
	if len(ref) == 0 {
		return WordErrors{}
	}

	// prev and cur are rows of the alignment table over hyp.
	prev := make([]alignment, len(hyp)+1)
	cur := make([]alignment, len(hyp)+1)
	for j := range prev {
		prev[j] = alignment{ins: j}
	}

	for i := 1; i <= len(ref); i++ {
		cur[0] = alignment{dels: i}
		for j := 1; j <= len(hyp); j++ {
			best := prev[j-1]
			if ref[i-1] != hyp[j-1] {
				best.subs++
			}
			if del := prev[j]; del.cost()+1 < best.cost() {
				best = del
				best.dels++
			}
			if ins := cur[j-1]; ins.cost()+1 < best.cost() {
				best = ins
				best.ins++
			}
			cur[j] = best
		}
		prev, cur = cur, prev
	}

	a := prev[len(hyp)]
	return WordErrors{
		Rate:           float64(a.cost()) / float64(len(ref)),
		Substitutions:  a.subs,
		Insertions:     a.ins,
		Deletions:      a.dels,
		ReferenceWords: len(ref),
	}
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
