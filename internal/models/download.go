// Package models fetches the stock US English Pocketsphinx models.
package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/chaz8081/sphinxasr/internal/config"
)

const (
	pocketsphinxRepo = "https://github.com/cmusphinx/pocketsphinx"

	// DictionaryURL is the CMU pronouncing dictionary shipped with Pocketsphinx.
	DictionaryURL = "https://raw.githubusercontent.com/cmusphinx/pocketsphinx/master/model/en-us/cmudict-en-us.dict"

	acousticModelPath = "model/en-us/en-us"
)

// DownloadDictionary downloads a pronunciation dictionary to dest, showing
// progress on out. An existing non-empty file is left alone.
func DownloadDictionary(ctx context.Context, url, dest string, out io.Writer) error {
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		fmt.Fprintf(out, "  Dictionary already exists: %s (%.1f MB)\n", dest, float64(info.Size())/(1024*1024))
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating dictionary dir: %w", err)
	}

	fmt.Fprintf(out, "  Downloading dictionary...\n")
	fmt.Fprintf(out, "  URL: %s\n", url)
	fmt.Fprintf(out, "  Destination: %s\n", dest)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("downloading dictionary: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading dictionary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	// Write to temp file first, then rename (atomic)
	tmpPath := dest + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	pw := &progressWriter{
		writer: f,
		out:    out,
		total:  resp.ContentLength,
		label:  filepath.Base(dest),
	}

	written, err := io.Copy(pw, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing dictionary: %w", err)
	}

	fmt.Fprintf(out, "\n  Downloaded %.1f MB\n", float64(written)/(1024*1024))

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("moving dictionary: %w", err)
	}
	return nil
}

// DownloadAcousticModel fetches the en-us acoustic model directory from the
// Pocketsphinx repository into dest via git sparse-checkout. Requires git.
func DownloadAcousticModel(ctx context.Context, dest string, out io.Writer) error {
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git is required for the acoustic model download but not found in PATH")
	}

	if _, err := os.Stat(filepath.Join(dest, "mdef")); err == nil {
		fmt.Fprintf(out, "  Acoustic model already exists: %s\n", dest)
		return nil
	}

	fmt.Fprintf(out, "  Downloading acoustic model...\n")
	fmt.Fprintf(out, "  Repo: %s\n", pocketsphinxRepo)
	fmt.Fprintf(out, "  Destination: %s\n", dest)

	tmpDir, err := os.MkdirTemp("", "sphinxasr-model-*")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	cmds := []struct {
		name string
		args []string
		dir  string
	}{
		{"Cloning (sparse)...", []string{"git", "clone", "--depth=1", "--filter=blob:none", "--no-checkout", pocketsphinxRepo, tmpDir}, ""},
		{"Setting sparse-checkout...", []string{"git", "sparse-checkout", "set", acousticModelPath}, tmpDir},
		{"Checking out...", []string{"git", "checkout"}, tmpDir},
	}

	for _, c := range cmds {
		fmt.Fprintf(out, "  %s\n", c.name)
		cmd := exec.CommandContext(ctx, c.args[0], c.args[1:]...) //nolint:gosec // args are compile-time constants
		cmd.Dir = c.dir
		cmd.Stdout = out
		cmd.Stderr = out
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}

	fmt.Fprintf(out, "  Copying model to %s...\n", dest)
	if err := copyDir(filepath.Join(tmpDir, filepath.FromSlash(acousticModelPath)), dest); err != nil {
		return fmt.Errorf("copying acoustic model: %w", err)
	}
	fmt.Fprintf(out, "  Acoustic model installed successfully.\n")
	return nil
}

// Download installs the acoustic model and the first base dictionary named
// in cfg.
func Download(ctx context.Context, cfg *config.Config, out io.Writer) error {
	fmt.Fprintln(out, "[1/2] Acoustic model:")
	if err := DownloadAcousticModel(ctx, cfg.Decoder.AcousticModel, out); err != nil {
		return fmt.Errorf("acoustic model download failed: %w", err)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "[2/2] Base dictionary:")
	if len(cfg.Train.BaseDictionaries) == 0 {
		fmt.Fprintln(out, "  No base dictionary configured, skipping.")
		return nil
	}
	if err := DownloadDictionary(ctx, DictionaryURL, cfg.Train.BaseDictionaries[0], out); err != nil {
		return fmt.Errorf("dictionary download failed: %w", err)
	}
	return nil
}

func copyDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			err = copyDir(srcPath, dstPath)
		} else {
			err = copyFile(srcPath, dstPath)
		}
		if err != nil {
			return err
		}
	}
	return nil
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
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// progressWriter wraps an io.Writer and prints download progress to out.
type progressWriter struct {
	writer  io.Writer
	out     io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label,
			float64(pw.written)/(1024*1024),
			float64(pw.total)/(1024*1024),
			pct)
	} else {
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB downloaded",
			pw.label,
			float64(pw.written)/(1024*1024))
	}
	return n, err
}
