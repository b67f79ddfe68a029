// Package config loads the server configuration from an optional YAML file
// and SMART_TOOLS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/ironsheep/smart-tools-mcp/internal/geometry"
	"github.com/ironsheep/smart-tools-mcp/internal/grabcut"
	"github.com/ironsheep/smart-tools-mcp/internal/scissors"
	"github.com/ironsheep/smart-tools-mcp/internal/ssim"
	"github.com/ironsheep/smart-tools-mcp/internal/worker"
)

// EnvPrefix prefixes every environment override, e.g. SMART_TOOLS_LOG_LEVEL.
const EnvPrefix = "SMART_TOOLS"

// Transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Arena    ArenaConfig    `mapstructure:"arena"`
	GrabCut  GrabCutConfig  `mapstructure:"grabcut"`
	Scissors ScissorsConfig `mapstructure:"scissors"`
	SSIM     SSIMConfig     `mapstructure:"ssim"`
	SAM      SAMConfig      `mapstructure:"sam"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// Mode is "development" (console) or "production" (JSON).
	Mode string `mapstructure:"mode"`
}

type ServerConfig struct {
	Transport    string        `mapstructure:"transport"`
	HTTPAddr     string        `mapstructure:"http_addr"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type WorkerConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

type ArenaConfig struct {
	// Debug turns buffer lifecycle violations into panics.
	Debug bool `mapstructure:"debug"`
}

type GrabCutConfig struct {
	RectIterations int `mapstructure:"rect_iterations"`
	MaskIterations int `mapstructure:"mask_iterations"`
	BorderWidth    int `mapstructure:"border_width"`
}

type ScissorsConfig struct {
	MaxROISide      int     `mapstructure:"max_roi_side"`
	CannyLow        float64 `mapstructure:"canny_low"`
	CannyHigh       float64 `mapstructure:"canny_high"`
	GradientCeiling float64 `mapstructure:"gradient_ceiling"`
}

type SSIMConfig struct {
	CanonicalSize int     `mapstructure:"canonical_size"`
	Threshold     float64 `mapstructure:"threshold"`
	MergeIoU      float64 `mapstructure:"merge_iou"`
}

type SAMConfig struct {
	// DefaultType is used when a request names no shape type.
	DefaultType string `mapstructure:"default_type"`
}

// Load reads the configuration. An empty path skips the file and uses
// defaults plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.mode", d.Log.Mode)

	v.SetDefault("server.transport", d.Server.Transport)
	v.SetDefault("server.http_addr", d.Server.HTTPAddr)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)

	v.SetDefault("worker.queue_size", d.Worker.QueueSize)
	v.SetDefault("arena.debug", d.Arena.Debug)

	v.SetDefault("grabcut.rect_iterations", d.GrabCut.RectIterations)
	v.SetDefault("grabcut.mask_iterations", d.GrabCut.MaskIterations)
	v.SetDefault("grabcut.border_width", d.GrabCut.BorderWidth)

	v.SetDefault("scissors.max_roi_side", d.Scissors.MaxROISide)
	v.SetDefault("scissors.canny_low", d.Scissors.CannyLow)
	v.SetDefault("scissors.canny_high", d.Scissors.CannyHigh)
	v.SetDefault("scissors.gradient_ceiling", d.Scissors.GradientCeiling)

	v.SetDefault("ssim.canonical_size", d.SSIM.CanonicalSize)
	v.SetDefault("ssim.threshold", d.SSIM.Threshold)
	v.SetDefault("ssim.merge_iou", d.SSIM.MergeIoU)

	v.SetDefault("sam.default_type", d.SAM.DefaultType)
}

// Default returns the built-in configuration.
func Default() *Config {
	gc := grabcut.DefaultConfig()
	sc := scissors.DefaultConfig()
	mc := ssim.DefaultConfig()
	return &Config{
		Log: LogConfig{Level: "info", Mode: "production"},
		Server: ServerConfig{
			Transport:    TransportStdio,
			HTTPAddr:     ":8080",
			Mode:         "release",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Worker: WorkerConfig{QueueSize: worker.DefaultQueueSize},
		GrabCut: GrabCutConfig{
			RectIterations: gc.RectIterations,
			MaskIterations: gc.MaskIterations,
			BorderWidth:    gc.BorderWidth,
		},
		Scissors: ScissorsConfig{
			MaxROISide:      sc.MaxROISide,
			CannyLow:        float64(sc.CannyLow),
			CannyHigh:       float64(sc.CannyHigh),
			GradientCeiling: sc.GradientCeiling,
		},
		SSIM: SSIMConfig{
			CanonicalSize: mc.CanonicalSize,
			Threshold:     mc.Threshold,
			MergeIoU:      mc.MergeIoU,
		},
		SAM: SAMConfig{DefaultType: string(geometry.ShapePolygon)},
	}
}

// Validate rejects unknown enum values and clamps tuning values back to
// their defaults when out of range.
func (c *Config) Validate() error {
	d := Default()

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	switch c.Log.Mode {
	case "development", "production":
	default:
		return fmt.Errorf("%w: log.mode %q", ErrInvalid, c.Log.Mode)
	}
	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("%w: server.transport %q", ErrInvalid, c.Server.Transport)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("%w: server.mode %q", ErrInvalid, c.Server.Mode)
	}
	switch geometry.ShapeType(c.SAM.DefaultType) {
	case geometry.ShapeRect, geometry.ShapeRotatedRect, geometry.ShapeCircle, geometry.ShapePolygon:
	default:
		return fmt.Errorf("%w: sam.default_type %q", ErrInvalid, c.SAM.DefaultType)
	}

	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = d.Server.HTTPAddr
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = d.Server.ReadTimeout
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = d.Server.WriteTimeout
	}
	if c.Worker.QueueSize <= 0 {
		c.Worker.QueueSize = d.Worker.QueueSize
	}

	if c.GrabCut.RectIterations <= 0 {
		c.GrabCut.RectIterations = d.GrabCut.RectIterations
	}
	if c.GrabCut.MaskIterations <= 0 {
		c.GrabCut.MaskIterations = d.GrabCut.MaskIterations
	}
	if c.GrabCut.BorderWidth < 0 {
		c.GrabCut.BorderWidth = d.GrabCut.BorderWidth
	}

	if c.Scissors.MaxROISide <= 0 {
		c.Scissors.MaxROISide = d.Scissors.MaxROISide
	}
	if c.Scissors.CannyLow <= 0 || c.Scissors.CannyHigh <= c.Scissors.CannyLow {
		c.Scissors.CannyLow = d.Scissors.CannyLow
		c.Scissors.CannyHigh = d.Scissors.CannyHigh
	}
	if c.Scissors.GradientCeiling <= 0 {
		c.Scissors.GradientCeiling = d.Scissors.GradientCeiling
	}

	if c.SSIM.CanonicalSize <= 0 {
		c.SSIM.CanonicalSize = d.SSIM.CanonicalSize
	}
	if c.SSIM.Threshold <= 0 || c.SSIM.Threshold > 1 {
		c.SSIM.Threshold = d.SSIM.Threshold
	}
	if c.SSIM.MergeIoU <= 0 || c.SSIM.MergeIoU > 1 {
		c.SSIM.MergeIoU = d.SSIM.MergeIoU
	}
	return nil
}

// Segmenter returns the GrabCut tuning.
func (c GrabCutConfig) Segmenter() grabcut.Config {
	return grabcut.Config{
		RectIterations: c.RectIterations,
		MaskIterations: c.MaskIterations,
		BorderWidth:    c.BorderWidth,
	}
}

// Tracer returns the intelligent scissors tuning.
func (c ScissorsConfig) Tracer() scissors.Config {
	return scissors.Config{
		MaxROISide:      c.MaxROISide,
		CannyLow:        float32(c.CannyLow),
		CannyHigh:       float32(c.CannyHigh),
		GradientCeiling: c.GradientCeiling,
	}
}

// Matcher returns the SSIM tuning.
func (c SSIMConfig) Matcher() ssim.Config {
	return ssim.Config{
		CanonicalSize: c.CanonicalSize,
		Threshold:     c.Threshold,
		MergeIoU:      c.MergeIoU,
	}
}
