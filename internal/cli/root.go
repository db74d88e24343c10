package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RMahshie/nanosynth/internal/config"
)

var (
	v       = viper.New()
	cfg     *config.Config
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "nanosynth",
	Short: "Inline gold nanoparticle synthesis with absorbance monitoring",
	Long: `nanosynth drives syringe pumps and a spectrometer for inline gold
nanoparticle synthesis.

It captures reference and background spectra, runs the pump start schedule,
and records an absorbance spectrum for every run.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			v.SetConfigFile(envFile)
		}
		loaded, err := config.Load(v)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		level, err := zerolog.ParseLevel(v.GetString("LOG_LEVEL"))
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		zerolog.SetGlobalLevel(level)
		cfg = loaded
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Read configuration from this env file instead of .env.<ENVIRONMENT>")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("pump-driver", "serial", "Pump driver (serial, simulated)")
	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"log-level":   "LOG_LEVEL",
		"pump-driver": "PUMP_DRIVER",
	})
}

// bindFlags makes each flag, when set, override the configuration key it maps to
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		_ = v.BindPFlag(key, fs.Lookup(flag))
	}
}
