//go:build pocketsphinx

package sphinx

/*
#cgo pkg-config: pocketsphinx sphinxbase
#include <stdlib.h>
#include <pocketsphinx.h>
#include <sphinxbase/logmath.h>

static cmd_ln_t *default_config(void) {
	return cmd_ln_parse_r(NULL, ps_args(), 0, NULL, FALSE);
}

static void set_float(cmd_ln_t *cmdln, char const *name, double val) {
	cmd_ln_set_float_r(cmdln, name, val);
}

static int process_raw(ps_decoder_t *ps, int16 const *data, size_t n_samples, int full_utt) {
	return ps_process_raw(ps, data, n_samples, FALSE, full_utt);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// Decoder is a loaded Pocketsphinx decoder. It is not safe for concurrent use.
type Decoder struct {
	ps *C.ps_decoder_t
}

// Open builds a decoder from cfg. The caller must call Close when done.
func Open(cfg Config) (*Decoder, error) {
	cmdln := C.default_config()
	if cmdln == nil {
		return nil, fmt.Errorf("sphinx: parse default config")
	}
	defer C.cmd_ln_free_r(cmdln)

	for _, opt := range cfg.options() {
		setString(cmdln, opt[0], opt[1])
	}
	if cfg.SampleRate > 0 {
		setFloat(cmdln, "-samprate", cfg.SampleRate)
	}

	ps := C.ps_init(cmdln)
	if ps == nil {
		return nil, fmt.Errorf("sphinx: initialize decoder (hmm=%q dict=%q lm=%q)",
			cfg.AcousticModel, cfg.Dictionary, cfg.LanguageModel)
	}
	return &Decoder{ps: ps}, nil
}

// StartUtt begins a new utterance.
func (d *Decoder) StartUtt() error {
	if ret := C.ps_start_utt(d.ps); ret < 0 {
		return fmt.Errorf("sphinx: start utterance: %d", int(ret))
	}
	return nil
}

// ProcessRaw feeds 16-bit mono samples. fullUtt marks samples as a complete
// utterance, which lets the decoder use whole-utterance normalization.
func (d *Decoder) ProcessRaw(samples []int16, fullUtt bool) error {
	if len(samples) == 0 {
		return nil
	}
	full := C.int(0)
	if fullUtt {
		full = 1
	}
	data := (*C.int16)(unsafe.Pointer(&samples[0]))
	if ret := C.process_raw(d.ps, data, C.size_t(len(samples)), full); ret < 0 {
		return fmt.Errorf("sphinx: process raw: %d", int(ret))
	}
	return nil
}

// EndUtt finishes the current utterance.
func (d *Decoder) EndUtt() error {
	if ret := C.ps_end_utt(d.ps); ret < 0 {
		return fmt.Errorf("sphinx: end utterance: %d", int(ret))
	}
	return nil
}

// Hypothesis returns the best hypothesis and its log posterior probability.
// ok is false when the decoder produced nothing.
func (d *Decoder) Hypothesis() (text string, logProb int32, ok bool) {
	var score C.int32
	hyp := C.ps_get_hyp(d.ps, &score)
	if hyp == nil {
		return "", 0, false
	}
	return C.GoString(hyp), int32(C.ps_get_prob(d.ps)), true
}

// Segments returns the word segmentation of the best hypothesis.
func (d *Decoder) Segments() []Segment {
	var segs []Segment
	for it := C.ps_seg_iter(d.ps); it != nil; it = C.ps_seg_next(it) {
		var sf, ef C.int
		var ascr, lscr, lback C.int32
		C.ps_seg_frames(it, &sf, &ef)
		prob := C.ps_seg_prob(it, &ascr, &lscr, &lback)
		segs = append(segs, Segment{
			Word:       C.GoString(C.ps_seg_word(it)),
			StartFrame: int(sf),
			EndFrame:   int(ef),
			LogProb:    int32(prob),
		})
	}
	return segs
}

// Exp converts a log probability in the decoder's log base to linear.
func (d *Decoder) Exp(logProb int32) float64 {
	lmath := C.ps_get_logmath(d.ps)
	return float64(C.logmath_exp(lmath, C.int(logProb)))
}

// Close releases the decoder.
func (d *Decoder) Close() error {
	if d.ps != nil {
		C.ps_free(d.ps)
		d.ps = nil
	}
	return nil
}

func setString(cmdln *C.cmd_ln_t, key, val string) {
	cKey := C.CString(key)
	defer C.free(unsafe.Pointer(cKey))
	cVal := C.CString(val)
	defer C.free(unsafe.Pointer(cVal))
	C.cmd_ln_set_str_r(cmdln, cKey, cVal)
}

func setFloat(cmdln *C.cmd_ln_t, key string, val float64) {
	cKey := C.CString(key)
	defer C.free(unsafe.Pointer(cKey))
	C.set_float(cmdln, cKey, C.double(val))
}
