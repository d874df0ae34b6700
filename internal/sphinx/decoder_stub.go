//go:build !pocketsphinx

package sphinx

// Decoder is a placeholder so callers compile without the native library.
type Decoder struct{}

// Open always fails without the pocketsphinx build tag.
func Open(cfg Config) (*Decoder, error) { return nil, ErrUnavailable }

func (d *Decoder) StartUtt() error { return ErrUnavailable }
func (d *Decoder) ProcessRaw(_ []int16, fullUtt bool) error { return ErrUnavailable }
func (d *Decoder) EndUtt() error { return ErrUnavailable }
func (d *Decoder) Hypothesis() (string, int32, bool) { return "", 0, false }
func (d *Decoder) Segments() []Segment { return nil }
func (d *Decoder) Exp(logProb int32) float64 { return 0 }
func (d *Decoder) Close() error { return nil }
