// Package lm turns an intent graph into an ARPA language model.
//
// The intent graph is a directed graph in node-link JSON form. Each path from
// the start node to a final node spells one sentence through the input labels
// of its links. Empty labels and labels beginning with "__" (intent and slot
// markers) are epsilon and contribute no word.
package lm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Epsilon is the FST symbol for an empty label.
const Epsilon = "<eps>"

var (
	// ErrNoStart is returned when no node is marked as the start node.
	ErrNoStart = errors.New("lm: graph has no start node")
	// ErrTooManySentences is returned when enumeration exceeds its limit.
	ErrTooManySentences = errors.New("lm: too many sentences in graph")
)

// Node is a graph state.
type Node struct {
	ID    int  `json:"id"`
	Start bool `json:"start,omitempty"`
	Final bool `json:"final,omitempty"`
}

// Link is a labeled transition between two nodes.
type Link struct {
	Source int    `json:"source"`
	Target int    `json:"target"`
	ILabel string `json:"ilabel,omitempty"`
	OLabel string `json:"olabel,omitempty"`
}

// Graph is an intent graph in node-link form.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// ParseGraph decodes a node-link JSON graph.
func ParseGraph(r io.Reader) (*Graph, error) {
	var g Graph
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return nil, fmt.Errorf("lm: decoding graph: %w", err)
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// ReadGraphFile decodes the node-link JSON graph at path.
func ReadGraphFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lm: %w", err)
	}
	defer f.Close()
	return ParseGraph(f)
}

func (g *Graph) validate() error {
	ids := make(map[int]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if ids[n.ID] {
			return fmt.Errorf("lm: duplicate node %d", n.ID)
		}
		ids[n.ID] = true
	}
	for _, l := range g.Links {
		if !ids[l.Source] || !ids[l.Target] {
			return fmt.Errorf("lm: link %d -> %d references an unknown node", l.Source, l.Target)
		}
	}
	if _, err := g.start(); err != nil {
		return err
	}
	return nil
}

// Word returns the word carried by a link label, or "" for epsilon.
func Word(label string) string {
	label = strings.TrimSpace(label)
	if label == "" || label == Epsilon || strings.HasPrefix(label, "__") {
		return ""
	}
	return label
}

// start returns the lowest-numbered start node.
func (g *Graph) start() (int, error) {
	found := false
	start := 0
	for _, n := range g.Nodes {
		if n.Start && (!found || n.ID < start) {
			start = n.ID
			found = true
		}
	}
	if !found {
		return 0, ErrNoStart
	}
	return start, nil
}

func (g *Graph) finals() map[int]bool {
	finals := make(map[int]bool)
	for _, n := range g.Nodes {
		if n.Final {
			finals[n.ID] = true
		}
	}
	return finals
}

// edges returns outgoing links per node, in input order.
func (g *Graph) edges() map[int][]Link {
	out := make(map[int][]Link, len(g.Nodes))
	for _, l := range g.Links {
		out[l.Source] = append(out[l.Source], l)
	}
	return out
}

// Vocabulary returns the sorted distinct words on links reachable from the
// start node.
func (g *Graph) Vocabulary() []string {
	start, err := g.start()
	if err != nil {
		return nil
	}
	edges := g.edges()

	words := make(map[string]bool)
	seen := map[int]bool{start: true}
	queue := []int{start}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, l := range edges[node] {
			if w := Word(l.ILabel); w != "" {
				words[w] = true
			}
			if !seen[l.Target] {
				seen[l.Target] = true
				queue = append(queue, l.Target)
			}
		}
	}
	return sortedKeys(words)
}

// Sentences enumerates the word sequences of every path from the start node
// to a final node. A path never revisits a node, so cycles are traversed at
// most once. Enumeration fails with ErrTooManySentences once more than max
// sentences are produced; max <= 0 means no limit.
func (g *Graph) Sentences(ctx context.Context, max int) ([][]string, error) {
	start, err := g.start()
	if err != nil {
		return nil, err
	}
	edges := g.edges()
	finals := g.finals()

	var (
		sentences [][]string
		words     []string
		onPath    = map[int]bool{}
		visits    int
	)

	var walk func(node int) error
	walk = func(node int) error {
		visits++
		if visits%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if finals[node] && len(words) > 0 {
			if max > 0 && len(sentences) >= max {
				return fmt.Errorf("%w: limit is %d", ErrTooManySentences, max)
			}
			sentences = append(sentences, append([]string(nil), words...))
		}

		onPath[node] = true
		defer delete(onPath, node)

		for _, l := range edges[node] {
			if onPath[l.Target] {
				continue
			}
			w := Word(l.ILabel)
			if w != "" {
				words = append(words, w)
			}
			err := walk(l.Target)
			if w != "" {
				words = words[:len(words)-1]
			}
			if err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(start); err != nil {
		return nil, err
	}
	return sentences, nil
}

// WriteFST writes the graph as an OpenFst text acceptor over its input
// words. The start node becomes state 0 and the remaining nodes are
// numbered in ascending ID order.
func (g *Graph) WriteFST(w io.Writer) error {
	start, err := g.start()
	if err != nil {
		return err
	}

	ids := make([]int, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID != start {
			ids = append(ids, n.ID)
		}
	}
	sort.Ints(ids)
	state := map[int]int{start: 0}
	for i, id := range ids {
		state[id] = i + 1
	}

	links := append([]Link(nil), g.Links...)
	sort.SliceStable(links, func(i, j int) bool {
		return state[links[i].Source] < state[links[j].Source]
	})
	for _, l := range links {
		label := Word(l.ILabel)
		if label == "" {
			label = Epsilon
		}
		if _, err := fmt.Fprintf(w, "%d %d %s %s\n", state[l.Source], state[l.Target], label, label); err != nil {
			return err
		}
	}

	var finals []int
	for id := range g.finals() {
		finals = append(finals, state[id])
	}
	sort.Ints(finals)
	for _, s := range finals {
		if _, err := fmt.Fprintf(w, "%d\n", s); err != nil {
			return err
		}
	}
	return nil
}

// WriteSymbols writes an OpenFst symbol table for the graph's words, with
// epsilon as symbol 0.
func (g *Graph) WriteSymbols(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s 0\n", Epsilon); err != nil {
		return err
	}
	for i, word := range g.allWords() {
		if _, err := fmt.Fprintf(w, "%s %d\n", word, i+1); err != nil {
			return err
		}
	}
	return nil
}

// allWords returns every word on any link, reachable or not.
func (g *Graph) allWords() []string {
	words := make(map[string]bool)
	for _, l := range g.Links {
		if w := Word(l.ILabel); w != "" {
			words[w] = true
		}
	}
	return sortedKeys(words)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
