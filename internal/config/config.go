package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Camera   CameraConfig   `yaml:"camera"`
	Detector DetectorConfig `yaml:"detector"`
	Storage  StorageConfig  `yaml:"storage"`
	Record   RecordConfig   `yaml:"record"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type CameraConfig struct {
	Driver  string   `yaml:"driver"` // v4l, still, dir
	Device  string   `yaml:"device"`
	Format  string   `yaml:"format"`
	Size    string   `yaml:"size"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Dir     string   `yaml:"dir"`
	Quality int      `yaml:"jpeg_quality"`
}

type DetectorConfig struct {
	Settle         time.Duration `yaml:"settle_interval"`
	CaptureTimeout time.Duration `yaml:"capture_timeout"`
	StatsWorkers   int           `yaml:"stats_workers"`
	SeriesScope    string        `yaml:"series_scope"` // run, process
	AnalysisWidth  int           `yaml:"analysis_width"`
	Blur           float32       `yaml:"blur"`
}

type StorageConfig struct {
	Dir  string `yaml:"dir"`
	Keep int    `yaml:"keep"` // 0 disables storage
}

type RecordConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	FPS     int    `yaml:"fps"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json
}

const (
	ScopeRun     = "run"
	ScopeProcess = "process"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Camera: CameraConfig{
			Driver:  "v4l",
			Device:  "/dev/video0",
			Quality: 85,
		},
		Detector: DetectorConfig{
			Settle:         500 * time.Millisecond,
			CaptureTimeout: 5 * time.Second,
			StatsWorkers:   2,
			SeriesScope:    ScopeRun,
		},
		Storage: StorageConfig{
			Keep: 50,
		},
		Record: RecordConfig{
			FPS: 2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads path over the defaults. An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.SetStrict(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads .env files if present, then the YAML file at path, then
// applies environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. PORT is honoured for
// platforms that assign the listening port.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if port := getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	if v := getenv("ENTROPYCAM_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv("ENTROPYCAM_DRIVER"); v != "" {
		c.Camera.Driver = v
	}
	if v := getenv("ENTROPYCAM_DEVICE"); v != "" {
		c.Camera.Device = v
	}
	if v := getenv("ENTROPYCAM_STORAGE_DIR"); v != "" {
		c.Storage.Dir = v
	}
}

func (c *Config) Validate() error {
	switch c.Camera.Driver {
	case "v4l", "still", "dir":
	default:
		return fmt.Errorf("unknown camera driver %q", c.Camera.Driver)
	}
	if c.Camera.Driver == "dir" && c.Camera.Dir == "" {
		return fmt.Errorf("camera driver dir needs camera.dir")
	}
	if c.Camera.Quality < 1 || c.Camera.Quality > 100 {
		return fmt.Errorf("jpeg_quality must be 1-100, got %d", c.Camera.Quality)
	}
	if c.Detector.Settle < 0 || c.Detector.CaptureTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.Detector.StatsWorkers < 0 || c.Detector.AnalysisWidth < 0 || c.Detector.Blur < 0 {
		return fmt.Errorf("stats_workers, analysis_width and blur must not be negative")
	}
	switch c.Detector.SeriesScope {
	case ScopeRun, ScopeProcess:
	default:
		return fmt.Errorf("unknown series_scope %q", c.Detector.SeriesScope)
	}
	if c.Storage.Keep < 0 {
		return fmt.Errorf("storage.keep must not be negative")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(strings.ToUpper(l.Level)))
	return lvl, err
}

// Logger builds the process logger.
func (l LogConfig) Logger() *slog.Logger {
	lvl, _ := l.SlogLevel()
	opts := &slog.HandlerOptions{Level: lvl}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
