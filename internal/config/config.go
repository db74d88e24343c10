package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Spectrometer SpectrometerConfig
	Pumps        PumpConfig
	Schedule     ScheduleConfig
	Output       OutputConfig
	Database     DatabaseConfig
	AWS          AWSConfig
	MQTT         MQTTConfig
	Server       ServerConfig
}

// SpectrometerConfig holds spectrometer selection and averaging configuration
type SpectrometerConfig struct {
	Backend        string
	ID             string
	Averages       int
	InlineAverages int
	Pixels         int
}

// PumpConfig holds serial settings and the port of every pump
type PumpConfig struct {
	Driver           string
	BaudRate         int
	ReadTimeout      time.Duration
	SettleDelay      time.Duration
	HAuCl4Port       string
	CitratePort      string
	WaterPort        string
	MethylOrangePort string
	TwoInletPort     string
	OneInletPort     string
}

// ScheduleConfig holds the fixed delays of the concentration-control start sequence
type ScheduleConfig struct {
	SoluteLead         time.Duration
	ReagentGap         time.Duration
	StockConcentration float64
}

// OutputConfig holds local persistence configuration
type OutputConfig struct {
	Dir          string
	PlotsEnabled bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// AWSConfig holds AWS/S3 configuration
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	S3Endpoint      string
}

// MQTTConfig holds run event publishing configuration
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
}

// ServerConfig holds status API configuration
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

var keys = []string{
	"ENVIRONMENT",
	"LOG_LEVEL",
	"SPECTROMETER_BACKEND",
	"SPECTROMETER_ID",
	"SPECTROMETER_AVERAGES",
	"SPECTROMETER_INLINE_AVERAGES",
	"SPECTROMETER_PIXELS",
	"PUMP_DRIVER",
	"PUMP_BAUD",
	"PUMP_READ_TIMEOUT",
	"PUMP_SETTLE_DELAY",
	"PUMP_HAUCL4_PORT",
	"PUMP_CITRATE_PORT",
	"PUMP_WATER_PORT",
	"PUMP_METHYL_ORANGE_PORT",
	"PUMP_TWO_INLET_PORT",
	"PUMP_ONE_INLET_PORT",
	"SCHEDULE_SOLUTE_LEAD",
	"SCHEDULE_REAGENT_GAP",
	"STOCK_CONCENTRATION_MM",
	"OUTPUT_DIR",
	"PLOTS_ENABLED",
	"DATABASE_URL",
	"AWS_REGION",
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"S3_BUCKET",
	"S3_ENDPOINT",
	"MQTT_BROKER",
	"MQTT_TOPIC",
	"MQTT_CLIENT_ID",
	"STATUS_ADDR",
	"ALLOWED_ORIGINS",
}

// SetDefaults registers the default value of every key
func SetDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SPECTROMETER_BACKEND", "simulated")
	v.SetDefault("SPECTROMETER_ID", "")
	v.SetDefault("SPECTROMETER_AVERAGES", 10)
	v.SetDefault("SPECTROMETER_INLINE_AVERAGES", 20)
	v.SetDefault("SPECTROMETER_PIXELS", 1044)
	v.SetDefault("PUMP_DRIVER", "serial")
	v.SetDefault("PUMP_BAUD", 9600)
	v.SetDefault("PUMP_READ_TIMEOUT", "1s")
	v.SetDefault("PUMP_SETTLE_DELAY", "500ms")
	v.SetDefault("PUMP_HAUCL4_PORT", "COM7")
	v.SetDefault("PUMP_CITRATE_PORT", "COM8")
	v.SetDefault("PUMP_WATER_PORT", "COM9")
	v.SetDefault("PUMP_METHYL_ORANGE_PORT", "COM10")
	v.SetDefault("PUMP_TWO_INLET_PORT", "COM4")
	v.SetDefault("PUMP_ONE_INLET_PORT", "COM5")
	v.SetDefault("SCHEDULE_SOLUTE_LEAD", "60s")
	v.SetDefault("SCHEDULE_REAGENT_GAP", "30s")
	v.SetDefault("STOCK_CONCENTRATION_MM", 2.5)
	v.SetDefault("OUTPUT_DIR", "./data")
	v.SetDefault("PLOTS_ENABLED", true)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("MQTT_BROKER", "")
	v.SetDefault("MQTT_TOPIC", "nanosynth/runs")
	v.SetDefault("MQTT_CLIENT_ID", "nanosynth")
	v.SetDefault("STATUS_ADDR", "")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
}

// Load loads configuration from defaults, an optional .env.<ENVIRONMENT> file
// and environment variables, in increasing order of precedence. Values bound
// to command-line flags on v take precedence over all of them.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	// Environment variables override .env file values
	v.AutomaticEnv()
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	env := v.GetString("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}

	// Read .env file (ignore error if file doesn't exist)
	if v.ConfigFileUsed() == "" {
		v.SetConfigName(".env." + env)
		v.AddConfigPath(".")
	}
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	var cfg Config
	cfg.Spectrometer.Backend = v.GetString("SPECTROMETER_BACKEND")
	cfg.Spectrometer.ID = v.GetString("SPECTROMETER_ID")
	cfg.Spectrometer.Averages = v.GetInt("SPECTROMETER_AVERAGES")
	cfg.Spectrometer.InlineAverages = v.GetInt("SPECTROMETER_INLINE_AVERAGES")
	cfg.Spectrometer.Pixels = v.GetInt("SPECTROMETER_PIXELS")
	cfg.Pumps.Driver = v.GetString("PUMP_DRIVER")
	cfg.Pumps.BaudRate = v.GetInt("PUMP_BAUD")
	cfg.Pumps.ReadTimeout = v.GetDuration("PUMP_READ_TIMEOUT")
	cfg.Pumps.SettleDelay = v.GetDuration("PUMP_SETTLE_DELAY")
	cfg.Pumps.HAuCl4Port = v.GetString("PUMP_HAUCL4_PORT")
	cfg.Pumps.CitratePort = v.GetString("PUMP_CITRATE_PORT")
	cfg.Pumps.WaterPort = v.GetString("PUMP_WATER_PORT")
	cfg.Pumps.MethylOrangePort = v.GetString("PUMP_METHYL_ORANGE_PORT")
	cfg.Pumps.TwoInletPort = v.GetString("PUMP_TWO_INLET_PORT")
	cfg.Pumps.OneInletPort = v.GetString("PUMP_ONE_INLET_PORT")
	cfg.Schedule.SoluteLead = v.GetDuration("SCHEDULE_SOLUTE_LEAD")
	cfg.Schedule.ReagentGap = v.GetDuration("SCHEDULE_REAGENT_GAP")
	cfg.Schedule.StockConcentration = v.GetFloat64("STOCK_CONCENTRATION_MM")
	cfg.Output.Dir = v.GetString("OUTPUT_DIR")
	cfg.Output.PlotsEnabled = v.GetBool("PLOTS_ENABLED")
	cfg.Database.URL = v.GetString("DATABASE_URL")
	cfg.AWS.Region = v.GetString("AWS_REGION")
	cfg.AWS.AccessKeyID = v.GetString("AWS_ACCESS_KEY_ID")
	cfg.AWS.SecretAccessKey = v.GetString("AWS_SECRET_ACCESS_KEY")
	cfg.AWS.S3Bucket = v.GetString("S3_BUCKET")
	cfg.AWS.S3Endpoint = v.GetString("S3_ENDPOINT")
	cfg.MQTT.Broker = v.GetString("MQTT_BROKER")
	cfg.MQTT.Topic = v.GetString("MQTT_TOPIC")
	cfg.MQTT.ClientID = v.GetString("MQTT_CLIENT_ID")
	cfg.Server.Addr = v.GetString("STATUS_ADDR")
	cfg.Server.AllowedOrigins = splitList(v.GetString("ALLOWED_ORIGINS"))

	log.Debug().
		Str("environment", env).
		Str("spectrometer_backend", cfg.Spectrometer.Backend).
		Str("pump_driver", cfg.Pumps.Driver).
		Dur("solute_lead", cfg.Schedule.SoluteLead).
		Dur("reagent_gap", cfg.Schedule.ReagentGap).
		Bool("database", cfg.Database.URL != "").
		Bool("archive", cfg.AWS.S3Bucket != "").
		Bool("telemetry", cfg.MQTT.Broker != "").
		Msg("Configuration loaded")

	return &cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
