package models

import "math"

// Spectrum pairs a wavelength axis (nm) with one value per spectrometer pixel.
// Values hold intensities for raw and averaged acquisitions and absorbance for
// computed spectra.
type Spectrum struct {
	Wavelengths []float64 `json:"wavelengths"`
	Values      []float64 `json:"values"`
}

// Len returns the number of pixels in the spectrum
func (s Spectrum) Len() int {
	return len(s.Values)
}

// Points converts the spectrum into wavelength/value pairs. Non-finite values
// are represented as nil since JSON has no encoding for NaN or infinity.
func (s Spectrum) Points() []SpectrumPoint {
	n := len(s.Values)
	if len(s.Wavelengths) < n {
		n = len(s.Wavelengths)
	}
	points := make([]SpectrumPoint, n)
	for i := 0; i < n; i++ {
		points[i].Wavelength = s.Wavelengths[i]
		if v := s.Values[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
			points[i].Value = &v
		}
	}
	return points
}

// SpectrumPoint represents a single wavelength sample
type SpectrumPoint struct {
	Wavelength float64  `json:"wavelength" doc:"Wavelength in nm"`
	Value      *float64 `json:"value" doc:"Value at this wavelength, null where undefined"`
}
