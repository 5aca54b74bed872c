package config

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	URL  string `yaml:"url"`
	User string `yaml:"user"`
	// Password is hashed into PasswordMD5 when the latter is empty.
	Password           string        `yaml:"password"`
	PasswordMD5        string        `yaml:"password_md5"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Timeout            time.Duration `yaml:"timeout"`
	BreakerFails       int           `yaml:"breaker_fails"`
	BreakerOpen        time.Duration `yaml:"breaker_open"`
}

// Tool is a query tool a device can name in its read_app setting.
type Tool struct {
	Command string `yaml:"command"`
	Mode    string `yaml:"mode"`
}

type Collector struct {
	AddressCache   string          `yaml:"address_cache"`
	Tools          map[string]Tool `yaml:"tools"`
	ToolDir        string          `yaml:"tool_dir"`
	ToolTimeout    time.Duration   `yaml:"tool_timeout"`
	ReadApp        string          `yaml:"read_app"` // overrides the read_app of every device
	UpdateInterval time.Duration   `yaml:"update_interval"`
	Period         time.Duration   `yaml:"period"`
	Device         int             `yaml:"device"` // poll only this device when set
	Object         int             `yaml:"object"` // poll only this object id when set
}

type Verifier struct {
	Enabled   bool `yaml:"enabled"`
	QueueSize int  `yaml:"queue_size"`
}

type Transmitter struct {
	Enabled    bool          `yaml:"enabled"`
	Period     time.Duration `yaml:"period"`
	MaxBatch   int           `yaml:"max_batch"`
	MaxPending int           `yaml:"max_pending"`
}

type Notifier struct {
	Enabled   bool          `yaml:"enabled"`
	QueueSize int           `yaml:"queue_size"`
	Topic     string        `yaml:"topic"`
	DedupTTL  time.Duration `yaml:"dedup_ttl"`
}

type MQTT struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
}

// Influx is optional; history is off while URL is empty.
type Influx struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

type Config struct {
	Server        Server        `yaml:"server"`
	Collector     Collector     `yaml:"collector"`
	Verifier      Verifier      `yaml:"verifier"`
	Transmitter   Transmitter   `yaml:"transmitter"`
	Notifier      Notifier      `yaml:"notifier"`
	MQTT          MQTT          `yaml:"mqtt"`
	Influx        Influx        `yaml:"influx"`
	HTTPPort      int           `yaml:"http_port"`
	GRPCPort      int           `yaml:"grpc_port"`
	StatsInterval time.Duration `yaml:"stats_interval"`
}

func Default() Config {
	return Config{
		Server: Server{
			URL:          "http://localhost:8080",
			Timeout:      10 * time.Second,
			BreakerFails: 5,
			BreakerOpen:  10 * time.Second,
		},
		Collector: Collector{
			AddressCache: "address_cache",
			Tools: map[string]Tool{
				"bacrpm": {Command: "bacrpm", Mode: "multi"},
				"bacrp":  {Command: "bacrp", Mode: "single"},
			},
			ToolTimeout:    10 * time.Second,
			UpdateInterval: 60 * time.Second,
			Period:         10 * time.Millisecond,
		},
		Verifier:    Verifier{Enabled: true, QueueSize: 1024},
		Transmitter: Transmitter{Enabled: true, Period: 100 * time.Millisecond, MaxBatch: 10, MaxPending: 10000},
		Notifier: Notifier{
			Enabled:   true,
			QueueSize: 1024,
			Topic:     "event/transition/{device}/{object}",
			DedupTTL:  30 * time.Second,
		},
		MQTT:          MQTT{Host: "localhost", Port: 1883, ClientID: "bacnet-gateway"},
		HTTPPort:      8080,
		GRPCPort:      9090,
		StatsInterval: time.Minute,
	}
}

// Load reads the optional YAML file at path over the defaults, then applies
// the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if cfg.Server.PasswordMD5 == "" && cfg.Server.Password != "" {
		sum := md5.Sum([]byte(cfg.Server.Password))
		cfg.Server.PasswordMD5 = strings.ToUpper(hex.EncodeToString(sum[:]))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.URL = envStr("SERVER_URL", c.Server.URL)
	c.Server.User = envStr("SERVER_USER", c.Server.User)
	c.Server.Password = envStr("SERVER_PASSWORD", c.Server.Password)
	c.Server.PasswordMD5 = envStr("SERVER_PASSWORD_MD5", c.Server.PasswordMD5)
	c.Server.InsecureSkipVerify = envBool("SERVER_INSECURE_SKIP_VERIFY", c.Server.InsecureSkipVerify)
	c.Server.Timeout = envDuration("SERVER_TIMEOUT", c.Server.Timeout)

	c.Collector.AddressCache = envStr("ADDRESS_CACHE", c.Collector.AddressCache)
	c.Collector.ToolDir = envStr("TOOL_DIR", c.Collector.ToolDir)
	c.Collector.ToolTimeout = envDuration("TOOL_TIMEOUT", c.Collector.ToolTimeout)
	c.Collector.ReadApp = envStr("READ_APP", c.Collector.ReadApp)
	c.Collector.UpdateInterval = envDuration("UPDATE_INTERVAL", c.Collector.UpdateInterval)
	c.Collector.Device = envInt("DEVICE", c.Collector.Device)
	c.Collector.Object = envInt("OBJECT", c.Collector.Object)

	c.Verifier.Enabled = envBool("ENABLE_VERIFIER", c.Verifier.Enabled)
	c.Notifier.Enabled = envBool("ENABLE_NOTIFIER", c.Notifier.Enabled)
	c.Transmitter.Enabled = envBool("ENABLE_TRANSMITTER", c.Transmitter.Enabled)
	c.Transmitter.Period = envDuration("TRANSMITTER_PERIOD", c.Transmitter.Period)
	c.Transmitter.MaxBatch = envInt("TRANSMITTER_MAX_BATCH", c.Transmitter.MaxBatch)
	c.Transmitter.MaxPending = envInt("TRANSMITTER_MAX_PENDING", c.Transmitter.MaxPending)
	c.Notifier.Topic = envStr("NOTIFIER_TOPIC", c.Notifier.Topic)
	c.Notifier.DedupTTL = envDuration("NOTIFIER_DEDUP_TTL", c.Notifier.DedupTTL)

	c.MQTT.Host = envStr("MQTT_HOST", c.MQTT.Host)
	c.MQTT.Port = envInt("MQTT_PORT", c.MQTT.Port)
	c.MQTT.User = envStr("MQTT_USER", c.MQTT.User)
	c.MQTT.Password = envStr("MQTT_PASSWORD", c.MQTT.Password)
	c.MQTT.ClientID = envStr("HOSTNAME", c.MQTT.ClientID)

	c.Influx.URL = envStr("INFLUX_URL", c.Influx.URL)
	c.Influx.Token = envStr("INFLUX_TOKEN", c.Influx.Token)
	c.Influx.Org = envStr("INFLUX_ORG", c.Influx.Org)
	c.Influx.Bucket = envStr("INFLUX_BUCKET", c.Influx.Bucket)

	c.HTTPPort = envInt("HTTP_PORT", c.HTTPPort)
	c.GRPCPort = envInt("GRPC_PORT", c.GRPCPort)
	c.StatsInterval = envDuration("STATS_INTERVAL", c.StatsInterval)
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.URL == "" {
		errs = append(errs, errors.New("server url is required"))
	}
	if c.Collector.AddressCache == "" {
		errs = append(errs, errors.New("address cache path is required"))
	}
	for name, t := range c.Collector.Tools {
		if strings.TrimSpace(t.Command) == "" {
			errs = append(errs, fmt.Errorf("tool %q has no command", name))
		}
	}
	if c.Collector.ReadApp != "" {
		if _, ok := c.Collector.Tools[c.Collector.ReadApp]; !ok {
			errs = append(errs, fmt.Errorf("read app %q is not a configured tool", c.Collector.ReadApp))
		}
	}
	if c.Transmitter.MaxBatch < 1 {
		errs = append(errs, errors.New("transmitter max batch must be positive"))
	}
	return errors.Join(errs...)
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// envDuration accepts Go durations ("1m30s") or plain seconds.
func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(n * float64(time.Second))
	}
	return def
}
