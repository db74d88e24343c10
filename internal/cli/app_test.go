package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/nanosynth/internal/clock"
	"github.com/RMahshie/nanosynth/internal/config"
	"github.com/RMahshie/nanosynth/internal/console"
	"github.com/RMahshie/nanosynth/internal/pump"
	"github.com/RMahshie/nanosynth/internal/repository/memory"
	"github.com/RMahshie/nanosynth/internal/synthesis"
	"github.com/RMahshie/nanosynth/internal/telemetry"
	"github.com/RMahshie/nanosynth/pkg/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Spectrometer: config.SpectrometerConfig{
			Backend:        "simulated",
			Averages:       2,
			InlineAverages: 2,
			Pixels:         64,
		},
		Pumps: config.PumpConfig{
			Driver:           "simulated",
			BaudRate:         9600,
			ReadTimeout:      time.Second,
			SettleDelay:      time.Millisecond,
			HAuCl4Port:       "SIM7",
			CitratePort:      "SIM8",
			WaterPort:        "SIM9",
			MethylOrangePort: "SIM10",
			TwoInletPort:     "SIM4",
			OneInletPort:     "SIM5",
		},
		Schedule: config.ScheduleConfig{StockConcentration: 2.5},
		Output:   config.OutputConfig{Dir: t.TempDir()},
	}
}

func newTestApp(t *testing.T, cfg *config.Config, input ...string) (*App, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	app, err := NewApp(context.Background(), cfg, strings.NewReader(strings.Join(input, "\n")+"\n"), out)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app, out
}

func TestNewApp_Defaults(t *testing.T) {
	app, _ := newTestApp(t, testConfig(t))

	assert.NotEmpty(t, app.SessionID)
	assert.IsType(t, &memory.RunRepository{}, app.Repository)
	assert.IsType(t, telemetry.NoopPublisher{}, app.Publisher)
	assert.Nil(t, app.Archive)
	assert.NotNil(t, app.Processing)
	assert.NotNil(t, app.Metrics)
}

func TestUnsupportedBackends(t *testing.T) {
	cfg := testConfig(t)
	cfg.Spectrometer.Backend = "seabreeze"
	cfg.Pumps.Driver = "usb"
	app, _ := newTestApp(t, cfg)

	_, err := app.Backend()
	assert.ErrorIs(t, err, ErrUnsupportedBackend)

	_, err = app.PumpOpener()
	assert.ErrorIs(t, err, ErrUnsupportedBackend)
}

func TestPumpOptions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pumps.BaudRate = 19200
	cfg.Pumps.ReadTimeout = 2 * time.Second
	cfg.Pumps.SettleDelay = 100 * time.Millisecond
	app, _ := newTestApp(t, cfg)

	opts := app.PumpOptions()
	assert.Equal(t, 19200, opts.Port.BaudRate)
	assert.Equal(t, 2*time.Second, opts.Port.ReadTimeout)
	assert.Equal(t, 100*time.Millisecond, opts.SettleDelay)
	assert.Equal(t, app.Metrics, opts.Observer)

	defaults := pumpOptions(config.PumpConfig{}, nil)
	assert.Equal(t, pump.DefaultOptions().Port, defaults.Port)
	assert.Equal(t, pump.DefaultSettleDelay, defaults.SettleDelay)
}

func TestOpenSpectrometer_RetriesInvalidInput(t *testing.T) {
	app, out := newTestApp(t, testConfig(t), "7", "QEP-SIM-0001", "100", "8000")

	session, err := app.OpenSpectrometer(context.Background())
	require.NoError(t, err)
	defer session.Close()

	assert.Equal(t, "QEP-SIM-0001", session.SerialNumber())
	assert.Equal(t, 8000, session.IntegrationTime())
	assert.Equal(t, 2, strings.Count(out.String(), "Invalid input"))
}

func TestConcentrationSession(t *testing.T) {
	cfg := testConfig(t)
	app, out := newTestApp(t, cfg,
		"1", "8000", // device, integration time
		"", "", // reference, background
		"uL/min", "20", "20", "100", // unit, HAuCl4, citrate, total
		"", "3.0", "1.25", "", // first concentration, rejected then accepted
		"", // continue
		"", "2.5", "", // second concentration
		"q",
	)

	err := concentrationSession(context.Background(), app, synthesis.WithSleep(clock.NoSleep))
	require.NoError(t, err)

	runs, err := app.Repository.ListBySession(context.Background(), app.SessionID)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, models.VariantConcentration, r.Variant)
		assert.Equal(t, models.StatusCompleted, r.Status)
		assert.Equal(t, "UM", r.FlowUnit)
		require.NotNil(t, r.CSVPath)
		assert.FileExists(t, *r.CSVPath)
		assert.Equal(t, cfg.Output.Dir, filepath.Dir(*r.CSVPath))
	}

	assert.Contains(t, out.String(), "Updated diluent pump flow rate: 50 µL/min")
	assert.Contains(t, out.String(), "Updated solute pump flow rate: 100 µL/min")
	assert.Contains(t, out.String(), "Invalid input")
}

func TestConcentrationSession_UnknownPumpDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pumps.Driver = "usb"
	app, _ := newTestApp(t, cfg)

	err := concentrationSession(context.Background(), app, synthesis.WithSleep(clock.NoSleep))
	assert.ErrorIs(t, err, ErrUnsupportedBackend)
}

func TestInlineSession(t *testing.T) {
	app, out := newTestApp(t, testConfig(t),
		"1", "8000",
		"", "",
		"14.5", "10", "50", "UM", // two-inlet pump
		"14.5", "10", "25", "MM", // one-inlet pump
		"5", // delay
		"", // start
		"", // measure
		"", "Q",
	)

	err := inlineSession(context.Background(), app, synthesis.WithSleep(clock.NoSleep))
	require.NoError(t, err)

	runs, err := app.Repository.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.VariantInline, runs[0].Variant)
	assert.Equal(t, models.StatusCompleted, runs[0].Status)
	assert.Contains(t, out.String(), "Data has been written to")
}

func TestSpectrumSession(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.csv")
	app, out := newTestApp(t, testConfig(t),
		"1", "8000",
		"", "",
		"",
		filepath.Join(dir, "missing", "sample.csv"), path,
	)

	err := spectrumSession(context.Background(), app, synthesis.WithSleep(clock.NoSleep))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Wavelength"))
	assert.Contains(t, out.String(), "Invalid input")
}

func TestControlPump(t *testing.T) {
	out := &bytes.Buffer{}
	c := console.New(strings.NewReader("SIM1\n14.5\n-1\n50\nuL/hr\n10\n\n"), out)

	opts := pumpOptions(config.PumpConfig{SettleDelay: time.Millisecond}, nil)
	err := controlPump(context.Background(), c, pump.OpenSimulated, opts, "")
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Pump started at 50 µL/hr.")
	assert.Contains(t, out.String(), "Pump stopped.")
}

func TestListRuns(t *testing.T) {
	repo := memory.NewRunRepository()
	ctx := context.Background()
	conc, solute, diluent := 1.25, 50.0, 50.0
	csv := "/data/absorbance.csv"
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, &models.Run{
		ID: "11111111-1111-1111-1111-111111111111", SessionID: "s1", Variant: models.VariantConcentration,
		Status: models.StatusCompleted, TargetConcentration: &conc, SoluteFlowRate: &solute,
		DiluentFlowRate: &diluent, FlowUnit: "UM", CSVPath: &csv, CreatedAt: base,
	}))
	require.NoError(t, repo.Create(ctx, &models.Run{
		ID: "22222222-2222-2222-2222-222222222222", SessionID: "s2", Variant: models.VariantInline,
		Status: models.StatusFailed, CreatedAt: base.Add(time.Minute),
	}))

	var out bytes.Buffer
	require.NoError(t, listRuns(ctx, &out, repo, "", 10))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[2], "22222222"))
	assert.Contains(t, lines[3], "50 UM")
	assert.Contains(t, lines[3], csv)

	out.Reset()
	require.NoError(t, listRuns(ctx, &out, repo, "s2", 10))
	assert.NotContains(t, out.String(), "11111111")

	out.Reset()
	require.NoError(t, listRuns(ctx, &out, repo, "nobody", 10))
	assert.Equal(t, "No runs found\n", out.String())
}
