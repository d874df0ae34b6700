package dictionary

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestRead(t *testing.T) {
	input := `;;; comment line
hello HH AH L OW
hello(2) HH EH L OW
read R IY D # trailing comment

read(2) R EH D
`
	p := make(Pronunciations)
	if err := Read(strings.NewReader(input), p); err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got := len(p["hello"]); got != 2 {
		t.Fatalf("len(p[hello]) = %d, want 2", got)
	}
	if !slices.Equal(p["hello"][1], []string{"HH", "EH", "L", "OW"}) {
		t.Errorf("p[hello][1] = %v", p["hello"][1])
	}
	if !slices.Equal(p["read"][0], []string{"R", "IY", "D"}) {
		t.Errorf("p[read][0] = %v, want [R IY D]", p["read"][0])
	}
	if len(p) != 2 {
		t.Errorf("len(p) = %d, want 2", len(p))
	}
}

func TestReadSkipsWordWithoutPhonemes(t *testing.T) {
	p := make(Pronunciations)
	input := "lonely\nhello HH AH L OW\n"
	if err := Read(strings.NewReader(input), p); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if _, ok := p["lonely"]; ok {
		t.Error("word without phonemes was added")
	}
	if len(p["hello"]) != 1 {
		t.Errorf("p[hello] = %v, want the following entry still read", p["hello"])
	}
}

func TestBaseWord(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"hello", "hello"},
		{"hello(2)", "hello"},
		{"hello(12)", "hello"},
		{"(2)", "(2)"},
		{"smile(:)", "smile(:)"},
		{"empty()", "empty()"},
	}

	for _, tt := range tests {
		if got := baseWord(tt.in); got != tt.want {
			t.Errorf("baseWord(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadFilesMergesInOrder(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "base.dict")
	second := filepath.Join(dir, "custom.dict")
	if err := os.WriteFile(first, []byte("tomato T AH M EY T OW\n"), 0644); err != nil {
		t.Fatal(err)
	}
	content := "tomato T AH M AA T OW\ntomato T AH M EY T OW\nbasil B EY Z AH L\n"
	if err := os.WriteFile(second, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadFiles([]string{first, filepath.Join(dir, "missing.dict"), second})
	if err != nil {
		t.Fatalf("LoadFiles() error = %v", err)
	}

	// The later file adds an alternate, the duplicate is not repeated.
	if got := len(p["tomato"]); got != 2 {
		t.Fatalf("len(p[tomato]) = %d, want 2", got)
	}
	if !slices.Equal(p["tomato"][0], []string{"T", "AH", "M", "EY", "T", "OW"}) {
		t.Errorf("first pronunciation should come from the first file, got %v", p["tomato"][0])
	}
	if _, ok := p["basil"]; !ok {
		t.Error("basil should be loaded from the second file")
	}
}

func TestParseCasing(t *testing.T) {
	tests := []struct {
		in      string
		want    Casing
		wantErr bool
	}{
		{"", CasingIgnore, false},
		{"ignore", CasingIgnore, false},
		{"upper", CasingUpper, false},
		{"lower", CasingLower, false},
		{"title", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCasing(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCasing(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCasing(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCasingApply(t *testing.T) {
	if got := CasingUpper.Apply("Hello"); got != "HELLO" {
		t.Errorf("upper = %q", got)
	}
	if got := CasingLower.Apply("Hello"); got != "hello" {
		t.Errorf("lower = %q", got)
	}
	if got := CasingIgnore.Apply("Hello"); got != "Hello" {
		t.Errorf("ignore = %q", got)
	}
}
