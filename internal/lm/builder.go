package lm

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
)

const (
	sentenceStart = "<s>"
	sentenceEnd   = "</s>"

	// noProb is the ARPA log10 probability for <s>, which is never predicted.
	noProb = -99.0
)

// Builder accumulates sentences and builds a Witten-Bell smoothed N-gram
// model of order 1 to 3.
type Builder struct {
	order  int
	counts []map[string]int // counts[n-1] holds n-gram counts keyed by space-joined words
}

// NewBuilder creates a builder. order is clamped to [1, 3].
func NewBuilder(order int) *Builder {
	order = min(max(order, 1), 3)
	b := &Builder{order: order, counts: make([]map[string]int, order)}
	for i := range b.counts {
		b.counts[i] = make(map[string]int)
	}
	return b
}

// Order returns the model order.
func (b *Builder) Order() int { return b.order }

// AddSentence adds a tokenized sentence. <s> and </s> are added automatically.
func (b *Builder) AddSentence(words []string) {
	if len(words) == 0 {
		return
	}
	seq := make([]string, 0, len(words)+2)
	seq = append(seq, sentenceStart)
	seq = append(seq, words...)
	seq = append(seq, sentenceEnd)

	for i := range seq {
		for n := 1; n <= b.order && n <= i+1; n++ {
			b.counts[n-1][strings.Join(seq[i-n+1:i+1], " ")]++
		}
	}
}

// Words returns the sorted vocabulary, excluding sentence markers.
func (b *Builder) Words() []string {
	words := make([]string, 0, len(b.counts[0]))
	for w := range b.counts[0] {
		if w != sentenceStart && w != sentenceEnd {
			words = append(words, w)
		}
	}
	sort.Strings(words)
	return words
}

type ngram struct {
	key        string
	logProb    float64 // log10
	logBackoff float64 // log10, 0 when absent
}

// model holds probabilities (not logs) per order, keyed like counts.
type model struct {
	probs    []map[string]float64
	backoffs []map[string]float64
}

// history splits "a b c" into "a b" and "c".
func history(key string) (string, string) {
	i := strings.LastIndexByte(key, ' ')
	if i < 0 {
		return "", key
	}
	return key[:i], key[i+1:]
}

// tail drops the first word: "a b c" -> "b c".
func tail(key string) string {
	i := strings.IndexByte(key, ' ')
	if i < 0 {
		return ""
	}
	return key[i+1:]
}

func (b *Builder) estimate() *model {
	m := &model{
		probs:    make([]map[string]float64, b.order),
		backoffs: make([]map[string]float64, b.order),
	}

	// Unigrams: maximum likelihood over every predicted token.
	total := 0
	for w, c := range b.counts[0] {
		if w != sentenceStart {
			total += c
		}
	}
	m.probs[0] = make(map[string]float64, len(b.counts[0]))
	for w, c := range b.counts[0] {
		if w == sentenceStart || total == 0 {
			continue
		}
		m.probs[0][w] = float64(c) / float64(total)
	}

	// Higher orders: P(w|h) = C(h,w) / (N(h) + T(h)).
	for n := 2; n <= b.order; n++ {
		contextTotal := make(map[string]int)
		contextTypes := make(map[string]int)
		for key, c := range b.counts[n-1] {
			h, _ := history(key)
			contextTotal[h] += c
			contextTypes[h]++
		}
		m.probs[n-1] = make(map[string]float64, len(b.counts[n-1]))
		for key, c := range b.counts[n-1] {
			h, _ := history(key)
			m.probs[n-1][key] = float64(c) / float64(contextTotal[h]+contextTypes[h])
		}
	}

	// Backoff weights for every history that has continuations.
	for n := 1; n < b.order; n++ {
		seen := make(map[string]float64)
		seenLower := make(map[string]float64)
		for key, p := range m.probs[n] {
			h, _ := history(key)
			seen[h] += p
			seenLower[h] += m.prob(tail(key))
		}
		m.backoffs[n-1] = make(map[string]float64, len(seen))
		for h, s := range seen {
			lower := seenLower[h]
			if lower >= 1 || s >= 1 {
				continue
			}
			m.backoffs[n-1][h] = (1 - s) / (1 - lower)
		}
	}
	return m
}

// prob returns the backed-off probability of the n-gram key.
func (m *model) prob(key string) float64 {
	n := strings.Count(key, " ") + 1
	if n <= len(m.probs) {
		if p, ok := m.probs[n-1][key]; ok {
			return p
		}
	}
	if n == 1 {
		return 0
	}
	h, _ := history(key)
	bo := 1.0
	if w, ok := m.backoffs[n-2][h]; ok {
		bo = w
	}
	return bo * m.prob(tail(key))
}

// WriteARPA writes the model in ARPA format. Entries are sorted so the same
// sentences always produce the same bytes.
func (b *Builder) WriteARPA(w io.Writer) error {
	m := b.estimate()

	sections := make([][]ngram, b.order)
	for n := 1; n <= b.order; n++ {
		keys := make([]string, 0, len(b.counts[n-1]))
		for key := range b.counts[n-1] {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			g := ngram{key: key, logProb: noProb}
			if p := m.probs[n-1][key]; p > 0 {
				g.logProb = math.Log10(p)
			}
			if n < b.order {
				if bo, ok := m.backoffs[n-1][key]; ok && bo > 0 {
					g.logBackoff = math.Log10(bo)
				}
			}
			sections[n-1] = append(sections[n-1], g)
		}
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "\\data\\")
	for n, grams := range sections {
		fmt.Fprintf(bw, "ngram %d=%d\n", n+1, len(grams))
	}
	fmt.Fprintln(bw)

	for n, grams := range sections {
		fmt.Fprintf(bw, "\\%d-grams:\n", n+1)
		for _, g := range grams {
			if n+1 < b.order && g.logBackoff != 0 {
				fmt.Fprintf(bw, "%.6f\t%s\t%.6f\n", g.logProb, g.key, g.logBackoff)
			} else {
				fmt.Fprintf(bw, "%.6f\t%s\n", g.logProb, g.key)
			}
		}
		fmt.Fprintln(bw)
	}
	fmt.Fprintln(bw, "\\end\\")
	return bw.Flush()
}
