package console

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/nanosynth/internal/processing"
	"github.com/RMahshie/nanosynth/internal/pump"
	"github.com/RMahshie/nanosynth/internal/spectrometer"
)

func newConsole(input string) (*Console, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return New(strings.NewReader(input), out), out
}

func TestIntegrationTime_RetriesUntilValid(t *testing.T) {
	c, out := newConsole("abc\n7999\n3600001\n8000\n")

	micros, err := c.IntegrationTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8000, micros)
	assert.Equal(t, 3, strings.Count(out.String(), "Invalid input"))
	assert.Contains(t, out.String(), "range: 8000 - 3600000")
}

func TestSelectDevice(t *testing.T) {
	devices := []spectrometer.Descriptor{
		{Model: "QE-PRO", SerialNumber: "QEP01234"},
		{Model: "USB4000", SerialNumber: "USB5678"},
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"by serial", "USB5678\n", "USB5678"},
		{"by index", "1\n", "QEP01234"},
		{"retry after bad selection", "nope\n3\nQEP01234\n", "QEP01234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, out := newConsole(tt.input)
			d, err := c.SelectDevice(context.Background(), devices)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.SerialNumber)
			assert.Contains(t, out.String(), "2. <Spectrometer USB4000:USB5678>")
		})
	}

	c, _ := newConsole("")
	_, err := c.SelectDevice(context.Background(), nil)
	assert.ErrorIs(t, err, spectrometer.ErrNoDeviceFound)
}

func TestTargetConcentration_RePromptsOnMappingError(t *testing.T) {
	mapper := processing.FlowMapper{StockConcentration: 2.5, TotalFlowRate: 100}
	validate := func(c float64) error {
		_, err := mapper.Map(c)
		return err
	}

	c, out := newConsole("3\n-0.5\nx\n1.25\n")
	v, err := c.TargetConcentration(context.Background(), validate)
	require.NoError(t, err)
	assert.Equal(t, 1.25, v)
	assert.Contains(t, out.String(), "exceeds stock concentration")
	assert.Contains(t, out.String(), "must not be negative")
}

func TestFlowUnit(t *testing.T) {
	c, _ := newConsole("furlongs\nmL/hr\n")
	u, err := c.FlowUnit(context.Background(), "unit: ")
	require.NoError(t, err)
	assert.Equal(t, pump.MillilitersPerHour, u)
}

func TestPumpSettings(t *testing.T) {
	c, _ := newConsole("0\n14.5\n10\n-1\n1.5\nUM\n")
	s, err := c.PumpSettings(context.Background(), "two inlet")
	require.NoError(t, err)
	assert.Equal(t, pump.Settings{
		Diameter: 14.5,
		Volume:   10,
		Rate:     pump.FlowRate{Value: 1.5, Unit: pump.MicrolitersPerMinute},
	}, s)
}

func TestDelay(t *testing.T) {
	c, out := newConsole("inf\nNaN\n1e300\n2.5\n")
	d, err := c.Delay(context.Background(), "delay: ")
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, d)
	assert.Equal(t, 3, strings.Count(out.String(), "Invalid input"))
}

func TestParseFloat_RejectsNonFinite(t *testing.T) {
	parsers := map[string]func(string) (float64, error){
		"float":        ParseFloat,
		"positive":     ParsePositive,
		"non-negative": ParseNonNegative,
	}
	for name, parse := range parsers {
		for _, input := range []string{"NaN", "nan", "Inf", "+Inf", "-Inf", "infinity"} {
			t.Run(name+"/"+input, func(t *testing.T) {
				_, err := parse(input)
				assert.ErrorIs(t, err, ErrInvalidNumber)
			})
		}
	}
}

func TestTargetConcentration_RejectsNaN(t *testing.T) {
	mapper := processing.FlowMapper{StockConcentration: 2.5, TotalFlowRate: 100}
	validate := func(c float64) error {
		_, err := mapper.Map(c)
		return err
	}

	c, out := newConsole("nan\ninf\n0.5\n")
	v, err := c.TargetConcentration(context.Background(), validate)
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)
	assert.Equal(t, 2, strings.Count(out.String(), "Invalid input"))
}

func TestContinue(t *testing.T) {
	c, _ := newConsole("\nq\n Q \n")

	more, err := c.Continue(context.Background(), "? ")
	require.NoError(t, err)
	assert.True(t, more)

	more, err = c.Continue(context.Background(), "? ")
	require.NoError(t, err)
	assert.False(t, more)

	more, err = c.Continue(context.Background(), "? ")
	require.NoError(t, err)
	assert.False(t, more)

	_, err = c.Continue(context.Background(), "? ")
	assert.ErrorIs(t, err, io.EOF)
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "sample.csv")
	input := filepath.Join(dir, "sample.txt") + "\n" + filepath.Join(dir, "missing", "a.csv") + "\n" + good + "\n"

	c, out := newConsole(input)
	path, err := c.OutputPath(context.Background())
	require.NoError(t, err)
	assert.Equal(t, good, path)
	assert.Equal(t, 2, strings.Count(out.String(), "Invalid input"))
}

func TestReadLine_Cancelled(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()
	defer r.Close()

	c := New(r, io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = c.ReadLine(ctx, "waiting")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClose_ReleasesReader(t *testing.T) {
	c, _ := newConsole("first\nsecond\n")

	l, err := c.ReadLine(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "first", l)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	select {
	case <-c.stopped:
	case <-time.After(time.Second):
		t.Fatal("reader goroutine still blocked after Close")
	}

	_, err = c.ReadLine(context.Background(), "")
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLine_LastLineWithoutNewline(t *testing.T) {
	c, _ := newConsole("first\r\nlast")

	l, err := c.ReadLine(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "first", l)

	l, err = c.ReadLine(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "last", l)

	_, err = c.ReadLine(context.Background(), "")
	assert.ErrorIs(t, err, io.EOF)
}
