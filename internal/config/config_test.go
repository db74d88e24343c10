package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "simulated", cfg.Spectrometer.Backend)
	assert.Equal(t, 10, cfg.Spectrometer.Averages)
	assert.Equal(t, 20, cfg.Spectrometer.InlineAverages)
	assert.Equal(t, "serial", cfg.Pumps.Driver)
	assert.Equal(t, 9600, cfg.Pumps.BaudRate)
	assert.Equal(t, time.Second, cfg.Pumps.ReadTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Pumps.SettleDelay)
	assert.Equal(t, "COM10", cfg.Pumps.MethylOrangePort)
	assert.Equal(t, 60*time.Second, cfg.Schedule.SoluteLead)
	assert.Equal(t, 30*time.Second, cfg.Schedule.ReagentGap)
	assert.Equal(t, 2.5, cfg.Schedule.StockConcentration)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.Server.AllowedOrigins)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SCHEDULE_SOLUTE_LEAD", "2s")
	t.Setenv("PUMP_WATER_PORT", "/dev/ttyUSB2")
	t.Setenv("STOCK_CONCENTRATION_MM", "5")
	t.Setenv("PUMP_DRIVER", "simulated")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Schedule.SoluteLead)
	assert.Equal(t, "/dev/ttyUSB2", cfg.Pumps.WaterPort)
	assert.Equal(t, 5.0, cfg.Schedule.StockConcentration)
	assert.Equal(t, "simulated", cfg.Pumps.Driver)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.dev"),
		[]byte("OUTPUT_DIR=/srv/spectra\nPLOTS_ENABLED=false\n"), 0o644))

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "/srv/spectra", cfg.Output.Dir)
	assert.False(t, cfg.Output.PlotsEnabled)
}
