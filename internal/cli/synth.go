package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RMahshie/nanosynth/internal/console"
	"github.com/RMahshie/nanosynth/internal/processing"
	"github.com/RMahshie/nanosynth/internal/pump"
	"github.com/RMahshie/nanosynth/internal/synthesis"
)

// Pump roles of the concentration-control variant
const (
	roleWater        = "water"
	roleMethylOrange = "methyl-orange"
	roleHAuCl4       = "haucl4"
	roleCitrate      = "citrate"
)

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Run inline synthesis with methyl orange concentration control",
	Long: `Run inline synthesis with methyl orange concentration control.

Four pumps are used: MilliQ water and methyl orange share a constant total
flow rate split by the target concentration, then HAuCl4 and sodium citrate
are started after fixed delays. One absorbance spectrum is recorded per
concentration until the operator quits.

Examples:
  nanosynth synth
  nanosynth synth --status-addr :8080 --pump-driver simulated`,
	RunE: runSynth,
}

func init() {
	rootCmd.AddCommand(synthCmd)
	synthCmd.Flags().String("status-addr", "", "Serve the status API on this address")
	synthCmd.Flags().Float64("stock", processing.DefaultStockConcentration, "Methyl orange stock concentration in mM")
	bindFlags(synthCmd.Flags(), map[string]string{"stock": "STOCK_CONCENTRATION_MM"})
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// applyStatusAddr lets --status-addr override STATUS_ADDR
func applyStatusAddr(cmd *cobra.Command) {
	if addr, _ := cmd.Flags().GetString("status-addr"); addr != "" {
		cfg.Server.Addr = addr
	}
}

func runSynth(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()
	applyStatusAddr(cmd)

	app, err := NewApp(ctx, cfg, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	defer app.Close()

	return concentrationSession(ctx, app)
}

// concentrationSession opens the spectrometer and the four pumps and runs
// the concentration loop until the operator quits.
func concentrationSession(ctx context.Context, app *App, opts ...synthesis.Option) error {
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
		{Role: roleHAuCl4, Port: cfg.Pumps.HAuCl4Port},
		{Role: roleCitrate, Port: cfg.Pumps.CitratePort},
		{Role: roleWater, Port: cfg.Pumps.WaterPort},
		{Role: roleMethylOrange, Port: cfg.Pumps.MethylOrangePort},
	}
	return pump.WithBank(specs, opener, app.PumpOptions(), func(bank *pump.Bank) error {
		runCfg, err := askConcentrationConfig(ctx, app.Console, cfg.Pumps.HAuCl4Port, cfg.Pumps.CitratePort)
		if err != nil {
			return err
		}
		runCfg.Averages = cfg.Spectrometer.Averages
		runCfg.Mapper.StockConcentration = cfg.Schedule.StockConcentration
		runCfg.SoluteLead = cfg.Schedule.SoluteLead
		runCfg.ReagentGap = cfg.Schedule.ReagentGap

		pumps := synthesis.ConcentrationPumps{
			Diluent:  bank.Channel(roleWater),
			Solute:   bank.Channel(roleMethylOrange),
			ReagentA: bank.Channel(roleHAuCl4),
			ReagentB: bank.Channel(roleCitrate),
		}
		return seq.RunConcentration(ctx, pumps, runCfg)
	})
}

func askConcentrationConfig(ctx context.Context, c *console.Console, haucl4Port, citratePort string) (synthesis.ConcentrationConfig, error) {
	var rc synthesis.ConcentrationConfig
	var err error

	if rc.Unit, err = c.FlowUnit(ctx, "Enter the unit for flow rate (uL/min, mL/min, uL/hr, mL/hr): "); err != nil {
		return rc, err
	}
	if rc.ReagentA, err = c.Float(ctx, fmt.Sprintf("Enter the flow rate for HAuCl4 Syringe Pump (%s): ", haucl4Port), console.ParseNonNegative); err != nil {
		return rc, err
	}
	if rc.ReagentB, err = c.Float(ctx, fmt.Sprintf("Enter the flow rate for Sodium Citrate Syringe Pump (%s): ", citratePort), console.ParseNonNegative); err != nil {
		return rc, err
	}
	if rc.Mapper.TotalFlowRate, err = c.Float(ctx, "Enter the total flow rate for MilliQ Water and Methyl Orange Syringe Pumps: ", console.ParsePositive); err != nil {
		return rc, err
	}
	return rc, nil
}
