package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/RMahshie/nanosynth/internal/console"
	"github.com/RMahshie/nanosynth/internal/pump"
)

var pumpCmd = &cobra.Command{
	Use:   "pump",
	Short: "Run a single syringe pump manually",
	Long: `Run a single syringe pump manually.

Asks for the port, syringe diameter, flow rate, unit and volume, starts the
pump and stops it when Enter is pressed.

Examples:
  nanosynth pump --list
  nanosynth pump --port /dev/ttyUSB0`,
	RunE: runPump,
}

var (
	pumpList bool
	pumpPort string
)

func init() {
	rootCmd.AddCommand(pumpCmd)
	pumpCmd.Flags().BoolVarP(&pumpList, "list", "l", false, "List serial ports and exit")
	pumpCmd.Flags().StringVarP(&pumpPort, "port", "p", "", "Serial port of the pump")
}

func runPump(cmd *cobra.Command, args []string) error {
	if pumpList {
		ports, err := pump.ListPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No serial ports found.")
			return nil
		}
		for _, p := range ports {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	opener, err := pumpOpener(cfg.Pumps)
	if err != nil {
		return err
	}
	c := console.New(os.Stdin, os.Stdout)
	defer c.Close()
	return controlPump(ctx, c, opener, pumpOptions(cfg.Pumps, nil), pumpPort)
}

// controlPump configures one pump from operator input and runs it until the
// operator presses Enter. The pump is stopped and closed on every path.
func controlPump(ctx context.Context, c *console.Console, opener pump.Opener, opts pump.Options, port string) (err error) {
	if port == "" {
		port, err = console.Ask(ctx, c, "Enter the COM port for the syringe pump (e.g., COM7): ", parsePortName)
		if err != nil {
			return err
		}
	}

	ch, err := pump.Open(port, opener, opts)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, ch.Close())
	}()

	var s pump.Settings
	if s.Diameter, err = c.Float(ctx, "Enter the syringe diameter in mm: ", console.ParsePositive); err != nil {
		return err
	}
	if s.Rate.Value, err = c.Float(ctx, "Enter the flow rate: ", console.ParseNonNegative); err != nil {
		return err
	}
	if s.Rate.Unit, err = c.FlowUnit(ctx, "Enter the unit for flow rate (e.g., UM, MM, UH, MH): "); err != nil {
		return err
	}
	if s.Volume, err = c.Float(ctx, "Enter the volume in mL: ", console.ParsePositive); err != nil {
		return err
	}

	if err := ch.Configure(ctx, s); err != nil {
		return err
	}
	if err := ch.Run(ctx); err != nil {
		return err
	}
	c.Notify("Pump started at %s.", s.Rate)

	waitErr := c.Confirm(ctx, "Press Enter to stop the pump...")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := ch.Stop(stopCtx); err != nil {
		return errors.Join(waitErr, err)
	}
	c.Notify("Pump stopped.")
	return waitErr
}

func parsePortName(text string) (string, error) {
	port := strings.TrimSpace(text)
	if port == "" {
		return "", errors.New("port name is required")
	}
	return port, nil
}
