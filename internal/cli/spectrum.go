package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/RMahshie/nanosynth/internal/synthesis"
)

var spectrumCmd = &cobra.Command{
	Use:   "spectrum",
	Short: "Measure one absorbance spectrum without pumps",
	Long: `Measure one absorbance spectrum without pumps.

Captures the reference and background spectra, then a sample spectrum, and
writes the absorbance to a CSV file chosen by the operator.`,
	RunE: runSpectrum,
}

func init() {
	rootCmd.AddCommand(spectrumCmd)
}

func runSpectrum(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	app, err := NewApp(ctx, cfg, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	defer app.Close()

	return spectrumSession(ctx, app)
}

func spectrumSession(ctx context.Context, app *App, opts ...synthesis.Option) error {
	session, err := app.OpenSpectrometer(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	seq := app.NewSequencer(session, opts...)
	if err := seq.CaptureBaselines(ctx, app.Config.Spectrometer.Averages); err != nil {
		return err
	}
	return seq.MeasureSpectrum(ctx, app.Config.Spectrometer.Averages)
}
