// Package config loads the YAML configuration shared by every binary.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where binaries look when -config is not given.
const DefaultPath = "gait_config.yaml"

// Config holds all application configuration values.
type Config struct {
	MQTT        MQTT        `yaml:"mqtt"`
	Sampling    Sampling    `yaml:"sampling"`
	Calibration Calibration `yaml:"calibration"`
	IMU         IMU         `yaml:"imu"`
	GPS         GPS         `yaml:"gps"`
	Store       Store       `yaml:"store"`
	Web         Web         `yaml:"web"`
	Kafka       Kafka       `yaml:"kafka"`
	Display     Display     `yaml:"display"`
	Target      Target      `yaml:"target"`
}

type MQTT struct {
	Broker string `yaml:"broker"`

	ClientIDRecorder string `yaml:"client_id_recorder"`
	ClientIDProducer string `yaml:"client_id_producer"`
	ClientIDGPS      string `yaml:"client_id_gps"`
	ClientIDConsole  string `yaml:"client_id_console"`
	ClientIDDisplay  string `yaml:"client_id_display"`

	TopicSamples string `yaml:"topic_samples"`
	TopicLive    string `yaml:"topic_live"`
	TopicSteps   string `yaml:"topic_steps"`
	TopicSummary string `yaml:"topic_summary"`
	TopicGPS     string `yaml:"topic_gps"`
}

// Source kinds for Sampling.Source.
const (
	SourceMock   = "mock"
	SourceMQTT   = "mqtt"
	SourceIMU    = "imu"
	SourceReplay = "replay"
)

type Sampling struct {
	Hz         float64 `yaml:"hz"`
	Source     string  `yaml:"source"`
	CadenceSPM float64 `yaml:"mock_cadence_spm"` // mock source only
	SwayG      float64 `yaml:"mock_sway_g"`      // mock source only
	Buffer     int     `yaml:"buffer"`           // MQTT source queue length
	ReplayFile string  `yaml:"replay_file"`      // replay source only, JSON lines
}

type Calibration struct {
	Seconds float64 `yaml:"seconds"`
	Side    string  `yaml:"side"`
}

type IMU struct {
	SPIDevice    string  `yaml:"spi_device"`
	CSPin        string  `yaml:"cs_pin"`
	AccelRange   byte    `yaml:"accel_range"` // 0=±2g, 1=±4g, 2=±8g, 3=±16g
	GravityAlpha float64 `yaml:"gravity_alpha"`
}

type GPS struct {
	Enabled    bool   `yaml:"enabled"`
	SerialPort string `yaml:"serial_port"`
	BaudRate   uint   `yaml:"baud_rate"`
}

type Store struct {
	Path string `yaml:"path"`
}

type Web struct {
	Listen string `yaml:"listen"`
}

type Kafka struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type Display struct {
	I2CBus         string        `yaml:"i2c_bus"`
	I2CAddr        uint16        `yaml:"i2c_addr"`
	UpdateInterval time.Duration `yaml:"update_interval"`
}

type Target struct {
	Policy string `yaml:"policy"`
}

// Default returns the configuration used for any field the file omits.
func Default() Config {
	return Config{
		MQTT: MQTT{
			Broker:           "tcp://localhost:1883",
			ClientIDRecorder: "gait-recorder",
			ClientIDProducer: "gait-producer",
			ClientIDGPS:      "gait-gps-producer",
			ClientIDConsole:  "gait-console",
			ClientIDDisplay:  "gait-display",
			TopicSamples:     "gait/samples",
			TopicLive:        "gait/live",
			TopicSteps:       "gait/steps",
			TopicSummary:     "gait/summary",
			TopicGPS:         "gait/gps",
		},
		Sampling:    Sampling{Hz: 100, Source: SourceMock, CadenceSPM: 100, SwayG: 0.05, Buffer: 512},
		Calibration: Calibration{Seconds: 10, Side: "left"},
		IMU:         IMU{SPIDevice: "/dev/spidev0.0", CSPin: "GPIO8", AccelRange: 1, GravityAlpha: 0.1},
		GPS:         GPS{SerialPort: "/dev/serial0", BaudRate: 9600},
		Store:       Store{Path: "gait.db"},
		Web:         Web{Listen: ":8080"},
		Kafka:       Kafka{Topic: "gait-sessions"},
		Display:     Display{I2CBus: "", I2CAddr: 0x3C, UpdateInterval: 500 * time.Millisecond},
		Target:      Target{Policy: "personal"},
	}
}

// Load reads the configuration file at path on top of Default and
// validates it.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(raw []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

// validate checks required fields and ranges, returning the first problem.
func (c *Config) validate() error {
	if c.MQTT.Broker == "" {
		return invalid("mqtt.broker is required")
	}
	if c.Sampling.Hz <= 0 {
		return invalid("sampling.hz must be positive, got %v", c.Sampling.Hz)
	}
	switch c.Sampling.Source {
	case SourceMock, SourceMQTT, SourceIMU, SourceReplay:
	default:
		return invalid("sampling.source must be mock, mqtt, imu or replay, got %q", c.Sampling.Source)
	}
	if c.Sampling.Source == SourceReplay && c.Sampling.ReplayFile == "" {
		return invalid("sampling.replay_file is required for the replay source")
	}
	if c.Sampling.Source == SourceMQTT && c.MQTT.TopicSamples == "" {
		return invalid("mqtt.topic_samples is required for the mqtt source")
	}
	if c.Sampling.Buffer <= 0 {
		return invalid("sampling.buffer must be positive")
	}
	if c.Calibration.Seconds <= 0 {
		return invalid("calibration.seconds must be positive")
	}
	if c.Calibration.Side != "left" && c.Calibration.Side != "right" {
		return invalid("calibration.side must be left or right, got %q", c.Calibration.Side)
	}
	if c.IMU.AccelRange > 3 {
		return invalid("imu.accel_range must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", c.IMU.AccelRange)
	}
	if c.Sampling.Source == SourceIMU && (c.IMU.SPIDevice == "" || c.IMU.CSPin == "") {
		return invalid("imu.spi_device and imu.cs_pin are required for the imu source")
	}
	if c.GPS.Enabled && (c.GPS.SerialPort == "" || c.GPS.BaudRate == 0) {
		return invalid("gps.serial_port and gps.baud_rate are required when gps is enabled")
	}
	if c.Store.Path == "" {
		return invalid("store.path is required")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return invalid("kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	if c.Display.UpdateInterval <= 0 {
		return invalid("display.update_interval must be positive")
	}
	switch c.Target.Policy {
	case "norms", "personal", "ramped":
	default:
		return invalid("target.policy must be norms, personal or ramped, got %q", c.Target.Policy)
	}
	return nil
}
