// Package sphinx provides low-level cgo bindings to the CMU Pocketsphinx decoder.
//
// The native binding is only compiled with the "pocketsphinx" build tag
// (requires pocketsphinx and sphinxbase visible to pkg-config). Without the
// tag, Open returns ErrUnavailable so the rest of the module still builds.
package sphinx

import "errors"

// FramesPerSecond is the decoder's default frame rate (-frate). Segment
// frame indices are divided by this to get seconds.
const FramesPerSecond = 100

// ErrUnavailable is returned by Open when the binary was built without the
// pocketsphinx build tag.
var ErrUnavailable = errors.New("sphinx: built without pocketsphinx support (rebuild with -tags pocketsphinx)")

// Config holds the decoder command-line options this module sets.
// Empty strings leave the decoder default untouched.
type Config struct {
	AcousticModel string // -hmm
	Dictionary    string // -dict
	LanguageModel string // -lm
	MLLRMatrix    string // -mllr
	LogFile       string // -logfn
	SampleRate    float64
}

// Segment is one word of the best hypothesis with its frame span.
type Segment struct {
	Word       string
	StartFrame int
	EndFrame   int
	LogProb    int32
}

// options returns the string options in a fixed order.
func (c Config) options() [][2]string {
	var opts [][2]string
	add := func(name, value string) {
		if value != "" {
			opts = append(opts, [2]string{name, value})
		}
	}
	add("-hmm", c.AcousticModel)
	add("-dict", c.Dictionary)
	add("-lm", c.LanguageModel)
	add("-mllr", c.MLLRMatrix)
	add("-logfn", c.LogFile)
	return opts
}
