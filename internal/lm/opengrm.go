package lm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// OpengrmConverter builds the language model with the OpenFst and OpenGrm
// NGram command line tools: fstcompile, ngramcount, ngrammake, ngrammerge and
// ngramprint.
type OpengrmConverter struct {
	Order  int    // defaults to DefaultOrder
	BinDir string // directory holding the tools, empty to search PATH

	// run executes one tool. Tests replace it.
	run func(ctx context.Context, name string, args ...string) error
}

// GraphToARPA implements Converter.
func (c *OpengrmConverter) GraphToARPA(ctx context.Context, g *Graph, arpaPath string, opts ConvertOptions) error {
	order := c.Order
	if order <= 0 {
		order = DefaultOrder
	}

	workDir, err := os.MkdirTemp("", "opengrm-*")
	if err != nil {
		return fmt.Errorf("lm: creating work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	var (
		fstText   = filepath.Join(workDir, "graph.fst.txt")
		symbols   = filepath.Join(workDir, "words.txt")
		graphFST  = filepath.Join(workDir, "graph.fst")
		countsFST = filepath.Join(workDir, "counts.fst")
		modelFST  = filepath.Join(workDir, "model.fst")
	)

	if err := writeFile(fstText, g.WriteFST); err != nil {
		return err
	}
	if err := writeFile(symbols, g.WriteSymbols); err != nil {
		return err
	}

	steps := [][]string{
		{"fstcompile",
			"--isymbols=" + symbols, "--osymbols=" + symbols,
			"--keep_isymbols=true", "--keep_osymbols=true",
			fstText, graphFST},
		{"ngramcount", "--order=" + strconv.Itoa(order), graphFST, countsFST},
		{"ngrammake", countsFST, modelFST},
	}

	printFST := modelFST
	if opts.Mixing() {
		merged := opts.MergeFSTPath
		if merged == "" {
			merged = filepath.Join(workDir, "merged.fst")
		}
		steps = append(steps, []string{"ngrammerge",
			"--alpha=" + formatWeight(opts.BaseFSTWeight),
			"--beta=" + formatWeight(1-opts.BaseFSTWeight),
			"--normalize",
			opts.BaseFSTPath, modelFST, merged})
		printFST = merged
	}
	steps = append(steps, []string{"ngramprint", "--ARPA", printFST, arpaPath})

	for _, step := range steps {
		if err := c.exec(ctx, step[0], step[1:]...); err != nil {
			return err
		}
	}

	if opts.ModelFSTPath != "" {
		if err := copyFile(modelFST, opts.ModelFSTPath); err != nil {
			return fmt.Errorf("lm: saving model FST: %w", err)
		}
	}
	if opts.VocabPath != "" {
		if err := writeVocabulary(opts.VocabPath, g.Vocabulary()); err != nil {
			return err
		}
	}
	return nil
}

func (c *OpengrmConverter) exec(ctx context.Context, name string, args ...string) error {
	if c.BinDir != "" {
		name = filepath.Join(c.BinDir, name)
	}
	slog.Debug("running", "command", name, "args", args)
	if c.run != nil {
		return c.run(ctx, name, args...)
	}
	return runCommand(ctx, name, args...)
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // tool names are fixed
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("lm: %s: %w: %s", filepath.Base(name), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("lm: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("lm: writing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
