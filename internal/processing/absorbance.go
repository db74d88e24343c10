package processing

import (
	"errors"
	"fmt"
	"math"
)

// ErrLengthMismatch is returned when intensity arrays do not share a pixel count
var ErrLengthMismatch = errors.New("intensity arrays differ in length")

// Absorbance computes -log10((sample-background)/(reference-background)) per pixel.
//
// Pixels where the reference equals the background, or where the corrected
// sample is zero or negative, come out as NaN or ±Inf following IEEE-754
// semantics. The remaining pixels are unaffected.
func Absorbance(sample, reference, background []float64) ([]float64, error) {
	if len(sample) != len(reference) || len(sample) != len(background) {
		return nil, fmt.Errorf("%w: sample=%d reference=%d background=%d",
			ErrLengthMismatch, len(sample), len(reference), len(background))
	}

	out := make([]float64, len(sample))
	for i := range sample {
		transmittance := (sample[i] - background[i]) / (reference[i] - background[i])
		out[i] = -math.Log10(transmittance)
	}
	return out, nil
}
