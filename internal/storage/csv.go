package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/RMahshie/nanosynth/pkg/models"
)

var (
	// ErrSave is returned when a spectrum cannot be written to disk
	ErrSave = errors.New("failed to save file")
	// ErrInvalidPath is returned for output paths that cannot be used
	ErrInvalidPath = errors.New("invalid output path")
)

const timestampLayout = "20060102150405"

// AbsorbanceFileName returns absorbance_data_<timestamp>.csv, with a
// _<concentration>mM suffix when a target concentration is given.
func AbsorbanceFileName(ts time.Time, concentration *float64) string {
	return "absorbance_data_" + ts.Format(timestampLayout) + concentrationSuffix(concentration) + ".csv"
}

// PlotFileName returns <kind>_<timestamp>[_<concentration>mM].png
func PlotFileName(kind string, ts time.Time, concentration *float64) string {
	return kind + "_" + ts.Format(timestampLayout) + concentrationSuffix(concentration) + ".png"
}

func concentrationSuffix(concentration *float64) string {
	if concentration == nil {
		return ""
	}
	return "_" + strconv.FormatFloat(*concentration, 'f', -1, 64) + "mM"
}

// ValidateCSVPath checks that path names a .csv file in an existing directory
func ValidateCSVPath(path string) error {
	if !strings.HasSuffix(path, ".csv") {
		return fmt.Errorf("%w: file name must end with .csv", ErrInvalidPath)
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: directory %q does not exist", ErrInvalidPath, dir)
	}
	return nil
}

// WriteSpectrumCSV writes a two-column table (Wavelength, valueHeader).
// Non-finite values are written as NaN, +Inf or -Inf.
func WriteSpectrumCSV(path string, s models.Spectrum, valueHeader string) error {
	if len(s.Wavelengths) != len(s.Values) {
		return fmt.Errorf("%w: %d wavelengths for %d values", ErrSave, len(s.Wavelengths), len(s.Values))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSave, err)
	}

	w := csv.NewWriter(f)
	records := make([][]string, 0, len(s.Values)+1)
	records = append(records, []string{"Wavelength", valueHeader})
	for i := range s.Values {
		records = append(records, []string{
			strconv.FormatFloat(s.Wavelengths[i], 'g', -1, 64),
			strconv.FormatFloat(s.Values[i], 'g', -1, 64),
		})
	}
	if err := w.WriteAll(records); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %v", ErrSave, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrSave, err)
	}
	return nil
}
