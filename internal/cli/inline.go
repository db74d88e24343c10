package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/RMahshie/nanosynth/internal/pump"
	"github.com/RMahshie/nanosynth/internal/synthesis"
)

const (
	roleTwoInlet = "two-inlet"
	roleOneInlet = "one-inlet"
)

var inlineCmd = &cobra.Command{
	Use:   "inline",
	Short: "Run basic inline synthesis with two pumps",
	Long: `Run basic inline synthesis with two pumps.

Both pumps are configured with operator-entered diameter, volume and flow
rate. The two-inlet pump starts first and the one-inlet pump follows after an
operator-entered delay. One absorbance spectrum is recorded, then both pumps
keep flowing until the operator quits.`,
	RunE: runInline,
}

func init() {
	rootCmd.AddCommand(inlineCmd)
	inlineCmd.Flags().String("status-addr", "", "Serve the status API on this address")
}

func runInline(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()
	applyStatusAddr(cmd)

	app, err := NewApp(ctx, cfg, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	defer app.Close()

	return inlineSession(ctx, app)
}

// inlineSession opens the spectrometer and both pumps and runs one inline
// measurement.
func inlineSession(ctx context.Context, app *App, opts ...synthesis.Option) error {
	cfg := app.Config
	opener, err := app.PumpOpener()
	if err != nil {
		return err
	}

	session, err := app.OpenSpectrometer(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	seq := app.NewSequencer(session, opts...)
	defer app.ServeStatus(seq)()

	if err := seq.CaptureBaselines(ctx, cfg.Spectrometer.Averages); err != nil {
		return err
	}

	specs := []pump.Spec{
		{Role: roleTwoInlet, Port: cfg.Pumps.TwoInletPort},
		{Role: roleOneInlet, Port: cfg.Pumps.OneInletPort},
	}
	return pump.WithBank(specs, opener, app.PumpOptions(), func(bank *pump.Bank) error {
		runCfg := synthesis.InlineConfig{Averages: cfg.Spectrometer.InlineAverages}
		if runCfg.TwoInlet, err = app.Console.PumpSettings(ctx, "two-inlet"); err != nil {
			return err
		}
		if runCfg.OneInlet, err = app.Console.PumpSettings(ctx, "one-inlet"); err != nil {
			return err
		}
		if runCfg.Delay, err = app.Console.Delay(ctx, "Enter the delay between starting the two pumps (in seconds): "); err != nil {
			return err
		}

		pumps := synthesis.InlinePumps{
			TwoInlet: bank.Channel(roleTwoInlet),
			OneInlet: bank.Channel(roleOneInlet),
		}
		return seq.RunInline(ctx, pumps, runCfg)
	})
}
