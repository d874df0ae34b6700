package lm

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
)

func loadLights(t *testing.T) *Graph {
	t.Helper()
	g, err := ReadGraphFile("testdata/lights.json")
	if err != nil {
		t.Fatalf("ReadGraphFile() error = %v", err)
	}
	return g
}

func TestWord(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"turn", "turn"},
		{"", ""},
		{"  ", ""},
		{"<eps>", ""},
		{"__label__SetLight", ""},
		{"__begin__name", ""},
	}
	for _, tt := range tests {
		if got := Word(tt.label); got != tt.want {
			t.Errorf("Word(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestParseGraphErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"not json", "nope"},
		{"no start", `{"nodes":[{"id":0}],"links":[]}`},
		{"duplicate node", `{"nodes":[{"id":0,"start":true},{"id":0}],"links":[]}`},
		{"unknown target", `{"nodes":[{"id":0,"start":true}],"links":[{"source":0,"target":7,"ilabel":"x"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseGraph(strings.NewReader(tt.json)); err == nil {
				t.Error("ParseGraph() should fail")
			}
		})
	}

	_, err := ParseGraph(strings.NewReader(`{"nodes":[{"id":0}],"links":[]}`))
	if !errors.Is(err, ErrNoStart) {
		t.Errorf("error = %v, want ErrNoStart", err)
	}
}

func TestVocabulary(t *testing.T) {
	g := loadLights(t)
	want := []string{"lights", "off", "on", "turn"}
	if got := g.Vocabulary(); !slices.Equal(got, want) {
		t.Errorf("Vocabulary() = %v, want %v", got, want)
	}
}

func TestVocabularySkipsUnreachable(t *testing.T) {
	g, err := ParseGraph(strings.NewReader(`{
		"nodes":[{"id":0,"start":true},{"id":1,"final":true},{"id":2}],
		"links":[
			{"source":0,"target":1,"ilabel":"hello"},
			{"source":2,"target":1,"ilabel":"orphan"}
		]}`))
	if err != nil {
		t.Fatalf("ParseGraph() error = %v", err)
	}
	if got := g.Vocabulary(); !slices.Equal(got, []string{"hello"}) {
		t.Errorf("Vocabulary() = %v, want [hello]", got)
	}
}

func TestSentences(t *testing.T) {
	g := loadLights(t)
	got, err := g.Sentences(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sentences() error = %v", err)
	}
	want := [][]string{
		{"turn", "on", "lights"},
		{"turn", "off", "lights"},
	}
	if len(got) != len(want) {
		t.Fatalf("Sentences() = %v, want %v", got, want)
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Errorf("sentence %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSentencesLimit(t *testing.T) {
	g := loadLights(t)
	_, err := g.Sentences(context.Background(), 1)
	if !errors.Is(err, ErrTooManySentences) {
		t.Errorf("error = %v, want ErrTooManySentences", err)
	}
}

func TestSentencesCycle(t *testing.T) {
	g, err := ParseGraph(strings.NewReader(`{
		"nodes":[{"id":0,"start":true},{"id":1,"final":true}],
		"links":[
			{"source":0,"target":1,"ilabel":"go"},
			{"source":1,"target":0,"ilabel":"again"}
		]}`))
	if err != nil {
		t.Fatalf("ParseGraph() error = %v", err)
	}
	got, err := g.Sentences(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sentences() error = %v", err)
	}
	if len(got) != 1 || !slices.Equal(got[0], []string{"go"}) {
		t.Errorf("Sentences() = %v, want [[go]]", got)
	}
}

func TestWriteFST(t *testing.T) {
	g := loadLights(t)
	var buf bytes.Buffer
	if err := g.WriteFST(&buf); err != nil {
		t.Fatalf("WriteFST() error = %v", err)
	}
	want := "0 1 <eps> <eps>\n" +
		"1 2 turn turn\n" +
		"2 3 on on\n" +
		"2 3 off off\n" +
		"3 4 <eps> <eps>\n" +
		"4 5 lights lights\n" +
		"5\n"
	if got := buf.String(); got != want {
		t.Errorf("WriteFST() =\n%s\nwant\n%s", got, want)
	}
}

func TestWriteSymbols(t *testing.T) {
	g := loadLights(t)
	var buf bytes.Buffer
	if err := g.WriteSymbols(&buf); err != nil {
		t.Fatalf("WriteSymbols() error = %v", err)
	}
	want := "<eps> 0\nlights 1\noff 2\non 3\nturn 4\n"
	if got := buf.String(); got != want {
		t.Errorf("WriteSymbols() = %q, want %q", got, want)
	}
}
