package train

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/chaz8081/sphinxasr/internal/dictionary"
	"github.com/chaz8081/sphinxasr/internal/lm"
)

// fakeConverter writes a fixed vocabulary and a minimal ARPA file.
type fakeConverter struct {
	words      []string
	arpaWords  []string // extra unigrams in the ARPA output
	err        error
	calledWith lm.ConvertOptions
}

func (f *fakeConverter) GraphToARPA(_ context.Context, _ *lm.Graph, arpaPath string, opts lm.ConvertOptions) error {
	f.calledWith = opts
	if f.err != nil {
		return f.err
	}

	var arpa strings.Builder
	arpa.WriteString("\\data\\\n\n\\1-grams:\n")
	for _, w := range append(slices.Clone(f.words), f.arpaWords...) {
		fmt.Fprintf(&arpa, "-1.0\t%s\n", w)
	}
	arpa.WriteString("\n\\end\\\n")
	if err := os.WriteFile(arpaPath, []byte(arpa.String()), 0o644); err != nil {
		return err
	}

	vocab := ""
	for _, w := range f.words {
		vocab += w + "\n"
	}
	return os.WriteFile(opts.VocabPath, []byte(vocab), 0o644)
}

type fakeGuesser struct {
	guesses map[string][]string
	asked   []string
}

func (f *fakeGuesser) Guess(_ context.Context, words []string) (dictionary.Pronunciations, error) {
	f.asked = append(f.asked, words...)
	p := make(dictionary.Pronunciations)
	for _, w := range words {
		if phonemes, ok := f.guesses[w]; ok {
			p.Add(w, phonemes)
		}
	}
	return p, nil
}

func basePronunciations() dictionary.Pronunciations {
	return dictionary.Pronunciations{
		"turn":   {{"T", "ER", "N"}},
		"on":     {{"AA", "N"}, {"AO", "N"}},
		"off":    {{"AO", "F"}},
		"lights": {{"L", "AY", "T", "S"}},
		"radio":  {{"R", "EY", "D", "IY", "OW"}},
	}
}

func testOptions(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	return Options{
		DictionaryPath:    filepath.Join(dir, "dictionary.txt"),
		LanguageModelPath: filepath.Join(dir, "language_model.txt"),
		Pronunciations:    basePronunciations(),
	}
}

func loadLights(t *testing.T) *lm.Graph {
	t.Helper()
	g, err := lm.ReadGraphFile("../lm/testdata/lights.json")
	if err != nil {
		t.Fatalf("ReadGraphFile() error = %v", err)
	}
	return g
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(b)
}

func TestTrainNativeConverter(t *testing.T) {
	opts := testOptions(t)
	result, err := Train(context.Background(), loadLights(t), opts)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	want := "lights L AY T S\n" +
		"off AO F\n" +
		"on AA N\n" +
		"on(2) AO N\n" +
		"turn T ER N\n"
	if got := readFile(t, opts.DictionaryPath); got != want {
		t.Errorf("dictionary =\n%s\nwant\n%s", got, want)
	}
	if got := readFile(t, opts.LanguageModelPath); !strings.HasPrefix(got, "\\data\\\n") {
		t.Errorf("language model is not ARPA:\n%s", got)
	}
	if result.Words != 4 || len(result.Missing) != 0 {
		t.Errorf("result = %+v, want 4 words and none missing", result)
	}
	if result.RunID == "" {
		t.Error("result has no run id")
	}
	if _, err := os.Stat(opts.DictionaryPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary dictionary left behind")
	}
}

func TestTrainIdempotent(t *testing.T) {
	opts := testOptions(t)
	g := loadLights(t)

	if _, err := Train(context.Background(), g, opts); err != nil {
		t.Fatalf("first Train() error = %v", err)
	}
	dict1 := readFile(t, opts.DictionaryPath)
	lm1 := readFile(t, opts.LanguageModelPath)

	if _, err := Train(context.Background(), g, opts); err != nil {
		t.Fatalf("second Train() error = %v", err)
	}
	if dict2 := readFile(t, opts.DictionaryPath); dict2 != dict1 {
		t.Error("dictionary changed between identical runs")
	}
	if lm2 := readFile(t, opts.LanguageModelPath); lm2 != lm1 {
		t.Error("language model changed between identical runs")
	}
}

func TestTrainEmptyVocabulary(t *testing.T) {
	opts := testOptions(t)
	if err := os.WriteFile(opts.DictionaryPath, []byte("old dictionary\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	opts.Converter = &fakeConverter{}

	_, err := Train(context.Background(), loadLights(t), opts)
	if !errors.Is(err, ErrEmptyVocabulary) {
		t.Fatalf("error = %v, want ErrEmptyVocabulary", err)
	}
	if got := readFile(t, opts.DictionaryPath); got != "old dictionary\n" {
		t.Errorf("dictionary was modified: %q", got)
	}
	if _, err := os.Stat(opts.LanguageModelPath); !os.IsNotExist(err) {
		t.Error("language model should not be written")
	}
}

func TestTrainConverterFailure(t *testing.T) {
	opts := testOptions(t)
	opts.Converter = &fakeConverter{err: errors.New("ngrammake exploded")}

	if _, err := Train(context.Background(), loadLights(t), opts); err == nil {
		t.Fatal("Train() should fail when the converter fails")
	}
	for _, path := range []string{opts.DictionaryPath, opts.LanguageModelPath} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s should not exist after a failed run", path)
		}
	}
}

func TestTrainRequiresPaths(t *testing.T) {
	if _, err := Train(context.Background(), loadLights(t), Options{}); err == nil {
		t.Error("Train() should require destination paths")
	}
}

func TestTrainMixingAddsBaseWords(t *testing.T) {
	opts := testOptions(t)
	conv := &fakeConverter{words: []string{"turn", "on"}, arpaWords: []string{"zebra"}}
	opts.Converter = conv
	opts.BaseLanguageModelFSTPath = "/models/base.fst"
	opts.BaseLanguageModelWeight = 0.1

	if _, err := Train(context.Background(), loadLights(t), opts); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if !conv.calledWith.Mixing() {
		t.Error("converter was not asked to mix")
	}

	dict := readFile(t, opts.DictionaryPath)
	for _, w := range []string{"lights ", "off ", "radio "} {
		if !strings.Contains(dict, w) {
			t.Errorf("dictionary missing base word %q:\n%s", w, dict)
		}
	}
	if strings.Contains(dict, "zebra") {
		t.Error("base-model-only word should be dropped by default")
	}
}

func TestTrainMixingGuessBaseModelWords(t *testing.T) {
	opts := testOptions(t)
	opts.Converter = &fakeConverter{words: []string{"turn"}, arpaWords: []string{"zebra"}}
	opts.BaseLanguageModelFSTPath = "/models/base.fst"
	opts.BaseLanguageModelWeight = 0.5
	opts.BaseModelWords = BaseWordsGuess
	guesser := &fakeGuesser{guesses: map[string][]string{"zebra": {"Z", "IY", "B", "R", "AH"}}}
	opts.Guesser = guesser

	if _, err := Train(context.Background(), loadLights(t), opts); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if !slices.Equal(guesser.asked, []string{"zebra"}) {
		t.Errorf("guesser asked %v, want [zebra]", guesser.asked)
	}
	if dict := readFile(t, opts.DictionaryPath); !strings.Contains(dict, "zebra Z IY B R AH\n") {
		t.Errorf("dictionary missing guessed word:\n%s", dict)
	}
}

func TestTrainZeroWeightDoesNotMix(t *testing.T) {
	opts := testOptions(t)
	opts.Converter = &fakeConverter{words: []string{"turn"}}
	opts.BaseLanguageModelFSTPath = "/models/base.fst"
	opts.BaseLanguageModelWeight = 0

	if _, err := Train(context.Background(), loadLights(t), opts); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if got := readFile(t, opts.DictionaryPath); got != "turn T ER N\n" {
		t.Errorf("dictionary = %q, want only the graph word", got)
	}
}

func TestTrainMissingWords(t *testing.T) {
	opts := testOptions(t)
	opts.Converter = &fakeConverter{words: []string{"turn", "galaxy", "ZORP"}}
	opts.MissingWordsPath = filepath.Join(t.TempDir(), "missing.txt")
	opts.G2PCasing = dictionary.CasingLower
	guesser := &fakeGuesser{guesses: map[string][]string{"galaxy": {"G", "AE", "L", "AH", "K", "S", "IY"}}}
	opts.Guesser = guesser

	result, err := Train(context.Background(), loadLights(t), opts)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if !slices.Equal(guesser.asked, []string{"galaxy", "zorp"}) {
		t.Errorf("guesser asked %v, want [galaxy zorp]", guesser.asked)
	}
	if got := readFile(t, opts.MissingWordsPath); got != "ZORP\n" {
		t.Errorf("missing words = %q, want ZORP", got)
	}
	if !slices.Equal(result.Guessed, []string{"galaxy"}) {
		t.Errorf("Guessed = %v, want [galaxy]", result.Guessed)
	}
	dict := readFile(t, opts.DictionaryPath)
	if strings.Contains(dict, "ZORP") {
		t.Error("unresolved word written to dictionary")
	}
}

func TestTrainKeepsVocabFile(t *testing.T) {
	opts := testOptions(t)
	opts.VocabPath = filepath.Join(t.TempDir(), "vocab.txt")

	if _, err := Train(context.Background(), loadLights(t), opts); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if got := readFile(t, opts.VocabPath); got != "lights\noff\non\nturn\n" {
		t.Errorf("vocab = %q", got)
	}
}

func TestParseBaseModelWords(t *testing.T) {
	tests := []struct {
		in      string
		want    BaseModelWords
		wantErr bool
	}{
		{"", BaseWordsDrop, false},
		{"drop", BaseWordsDrop, false},
		{"guess", BaseWordsGuess, false},
		{"keep", "", true},
	}
	for _, tt := range tests {
		got, err := ParseBaseModelWords(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBaseModelWords(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBaseModelWords(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPromoteCreatesParentDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(dir, "nested", "out.txt")
	if err := promote(artifact{src: src, dest: dest}); err != nil {
		t.Fatalf("promote() error = %v", err)
	}
	if got := readFile(t, dest); got != "data" {
		t.Errorf("dest = %q, want data", got)
	}
}

func TestPromoteAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	write := func(name, data string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}
	newDict := write("new_dict.txt", "new dictionary\n")
	newLM := write("new_lm.txt", "new model\n")
	dict := write("dictionary.txt", "old dictionary\n")

	// A non-empty directory cannot be replaced by rename.
	model := filepath.Join(dir, "language_model.txt")
	if err := os.MkdirAll(filepath.Join(model, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	err := promote(artifact{src: newDict, dest: dict}, artifact{src: newLM, dest: model})
	if err == nil {
		t.Fatal("promote() should fail when a destination cannot be replaced")
	}
	if got := readFile(t, dict); got != "old dictionary\n" {
		t.Errorf("dictionary = %q, want it untouched", got)
	}
	for _, leftover := range []string{dict + ".tmp", dict + ".bak", model + ".tmp"} {
		if _, err := os.Stat(leftover); !os.IsNotExist(err) {
			t.Errorf("%s left behind", filepath.Base(leftover))
		}
	}
}

func TestPromoteReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dest := filepath.Join(dir, "dest.txt")
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dest, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := promote(artifact{src: src, dest: dest}); err != nil {
		t.Fatalf("promote() error = %v", err)
	}
	if got := readFile(t, dest); got != "new" {
		t.Errorf("dest = %q, want new", got)
	}
	if _, err := os.Stat(dest + ".bak"); !os.IsNotExist(err) {
		t.Error("backup left behind")
	}
}

func TestTrainLanguageModelNotReplaceable(t *testing.T) {
	opts := testOptions(t)
	if err := os.WriteFile(opts.DictionaryPath, []byte("old dictionary\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(opts.LanguageModelPath, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := Train(context.Background(), loadLights(t), opts); err == nil {
		t.Fatal("Train() should fail when the language model cannot be replaced")
	}
	if got := readFile(t, opts.DictionaryPath); got != "old dictionary\n" {
		t.Errorf("dictionary = %q, want it untouched", got)
	}
}

type failingGuesser struct{}

func (failingGuesser) Guess(context.Context, []string) (dictionary.Pronunciations, error) {
	return nil, errors.New("phonetisaurus-apply exited 1")
}

func TestTrainGuesserFailure(t *testing.T) {
	tmpRoot := t.TempDir()
	t.Setenv("TMPDIR", tmpRoot)

	opts := testOptions(t)
	opts.Converter = &fakeConverter{words: []string{"turn", "zebra"}}
	opts.Guesser = failingGuesser{}
	if err := os.WriteFile(opts.DictionaryPath, []byte("old dictionary\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(opts.LanguageModelPath, []byte("old model\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Train(context.Background(), loadLights(t), opts)
	if err == nil || !strings.Contains(err.Error(), "phonetisaurus-apply") {
		t.Fatalf("Train() error = %v, want the guesser failure", err)
	}
	if got := readFile(t, opts.DictionaryPath); got != "old dictionary\n" {
		t.Errorf("dictionary = %q, want it untouched", got)
	}
	if got := readFile(t, opts.LanguageModelPath); got != "old model\n" {
		t.Errorf("language model = %q, want it untouched", got)
	}

	staged, err := filepath.Glob(filepath.Join(tmpRoot, "sphinxasr-train-*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(staged) != 0 {
		t.Errorf("staging directories left behind: %v", staged)
	}
}
