package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ironsheep/image-annotator-mcp/internal/detection"
	"github.com/ironsheep/image-annotator-mcp/internal/interaction"
	"github.com/ironsheep/image-annotator-mcp/internal/ocr"
	"github.com/ironsheep/image-annotator-mcp/internal/render"
	"github.com/ironsheep/image-annotator-mcp/internal/tools"
	"github.com/ironsheep/image-annotator-mcp/internal/viewport"
)

// Duration is a time.Duration written as a string such as "100ms" in TOML.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds the engine and server settings. Fields may be loaded from a
// TOML file and overridden by command-line flags.
type Config struct {
	LogLevel string `toml:"log_level"`

	Stage struct {
		Width  int `toml:"width"`
		Height int `toml:"height"`
	} `toml:"stage"`

	Viewport struct {
		MinScale       float64  `toml:"min_scale"`
		MaxScale       float64  `toml:"max_scale"`
		ZoomSpeed      float64  `toml:"zoom_speed"`
		PanMargin      float64  `toml:"pan_margin"`
		Clamp          string   `toml:"clamp"`
		ResizeDebounce Duration `toml:"resize_debounce"`
	} `toml:"viewport"`

	Interaction struct {
		DeferDeselect     Duration `toml:"defer_deselect"`
		DeferWhileDrawing Duration `toml:"defer_while_drawing"`
		HitTolerance      float64  `toml:"hit_tolerance"`
	} `toml:"interaction"`

	Tools struct {
		MinSize       float64 `toml:"min_size"`
		CloseRadius   float64 `toml:"close_radius"`
		BrushSize     float64 `toml:"brush_size"`
		KeyPointWidth float64 `toml:"keypoint_width"`
	} `toml:"tools"`

	History struct {
		Limit int `toml:"limit"`
	} `toml:"history"`

	Cache struct {
		Images int `toml:"images"`
	} `toml:"cache"`

	Labels struct {
		File  string `toml:"file"`
		Watch bool   `toml:"watch"`
	} `toml:"labels"`

	Render struct {
		MaxSize     int     `toml:"max_size"`
		FillOpacity float64 `toml:"fill_opacity"`
		StrokeWidth float64 `toml:"stroke_width"`
		GridSize    int     `toml:"grid_size"`
		ShowLabels  bool    `toml:"show_labels"`
	} `toml:"render"`

	Detection struct {
		MinArea       int      `toml:"min_area"`
		MinConfidence float64  `toml:"min_confidence"`
		Timeout       Duration `toml:"timeout"`
	} `toml:"detection"`

	OCR struct {
		Language string `toml:"language"`
	} `toml:"ocr"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	c := &Config{LogLevel: "info"}
	c.Stage.Width, c.Stage.Height = 800, 600

	vp := viewport.DefaultOptions()
	c.Viewport.MinScale = vp.MinScale
	c.Viewport.MaxScale = vp.MaxScale
	c.Viewport.ZoomSpeed = vp.ZoomSpeed
	c.Viewport.PanMargin = vp.PanMargin
	c.Viewport.Clamp = string(vp.Clamp)
	c.Viewport.ResizeDebounce = Duration(vp.ResizeDebounce)

	in := interaction.DefaultOptions()
	c.Interaction.DeferDeselect = Duration(in.DeferDeselect)
	c.Interaction.DeferWhileDrawing = Duration(in.DeferWhileDrawing)
	c.Interaction.HitTolerance = in.HitTolerance

	tl := tools.DefaultOptions()
	c.Tools.MinSize = tl.MinSize
	c.Tools.CloseRadius = tl.CloseRadius
	c.Tools.BrushSize = tl.BrushSize
	c.Tools.KeyPointWidth = tl.KeyPointWidth

	c.History.Limit = 100
	c.Cache.Images = 16
	c.Labels.Watch = true

	c.Render.MaxSize = 1024
	c.Render.FillOpacity = 0.2
	c.Render.StrokeWidth = 2
	c.Render.ShowLabels = true

	c.Detection.MinArea = 100
	c.Detection.MinConfidence = 0.5
	c.Detection.Timeout = Duration(10 * time.Second)

	c.OCR.Language = "eng"
	return c
}

// Validate clamps/normalizes values to safe ranges. It fails only on values
// that have no sensible fallback, such as an unknown clamp policy.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Stage.Width <= 0 || c.Stage.Height <= 0 {
		c.Stage = def.Stage
	}

	v := &c.Viewport
	if v.MinScale <= 0 {
		v.MinScale = def.Viewport.MinScale
	}
	if v.MaxScale <= 0 || v.MaxScale < v.MinScale {
		v.MaxScale = max(def.Viewport.MaxScale, v.MinScale)
	}
	if v.ZoomSpeed <= 0 {
		v.ZoomSpeed = def.Viewport.ZoomSpeed
	}
	if v.PanMargin < 0 {
		v.PanMargin = 0
	}
	switch viewport.ClampPolicy(v.Clamp) {
	case viewport.ClampMargin, viewport.ClampContain, viewport.ClampNone:
	case "":
		v.Clamp = def.Viewport.Clamp
	default:
		return fmt.Errorf("config: viewport.clamp: unknown policy %q", v.Clamp)
	}
	if v.ResizeDebounce < 0 {
		v.ResizeDebounce = def.Viewport.ResizeDebounce
	}

	in := &c.Interaction
	if in.DeferDeselect < 0 {
		in.DeferDeselect = def.Interaction.DeferDeselect
	}
	if in.DeferWhileDrawing < 0 {
		in.DeferWhileDrawing = 0
	}
	if in.HitTolerance < 0 {
		in.HitTolerance = 0
	}

	t := &c.Tools
	if t.MinSize <= 0 {
		t.MinSize = def.Tools.MinSize
	}
	if t.CloseRadius <= 0 {
		t.CloseRadius = def.Tools.CloseRadius
	}
	if t.BrushSize <= 0 {
		t.BrushSize = def.Tools.BrushSize
	}
	if t.KeyPointWidth <= 0 {
		t.KeyPointWidth = def.Tools.KeyPointWidth
	}

	if c.History.Limit <= 0 {
		c.History.Limit = def.History.Limit
	}
	if c.Cache.Images <= 0 {
		c.Cache.Images = def.Cache.Images
	}

	r := &c.Render
	if r.MaxSize < 0 {
		r.MaxSize = 0
	}
	if r.FillOpacity < 0 || r.FillOpacity > 1 {
		r.FillOpacity = def.Render.FillOpacity
	}
	if r.StrokeWidth <= 0 {
		r.StrokeWidth = def.Render.StrokeWidth
	}
	if r.GridSize < 0 {
		r.GridSize = 0
	}

	d := &c.Detection
	if d.MinArea <= 0 {
		d.MinArea = def.Detection.MinArea
	}
	if d.MinConfidence < 0 || d.MinConfidence > 1 {
		d.MinConfidence = def.Detection.MinConfidence
	}
	if d.Timeout <= 0 {
		d.Timeout = def.Detection.Timeout
	}
	if c.OCR.Language == "" {
		c.OCR.Language = def.OCR.Language
	}
	return nil
}

// Load attempts to read configuration from the given TOML file path. If the
// file does not exist it returns DefaultConfig(). On a decode or validation
// error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}

// Save writes the configuration to the given path in TOML format.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ViewportOptions converts the viewport section.
func (c *Config) ViewportOptions() viewport.Options {
	return viewport.Options{
		MinScale:       c.Viewport.MinScale,
		MaxScale:       c.Viewport.MaxScale,
		ZoomSpeed:      c.Viewport.ZoomSpeed,
		PanMargin:      c.Viewport.PanMargin,
		Clamp:          viewport.ClampPolicy(c.Viewport.Clamp),
		ResizeDebounce: time.Duration(c.Viewport.ResizeDebounce),
	}
}

// InteractionOptions converts the interaction section.
func (c *Config) InteractionOptions() interaction.Options {
	return interaction.Options{
		DeferDeselect:     time.Duration(c.Interaction.DeferDeselect),
		DeferWhileDrawing: time.Duration(c.Interaction.DeferWhileDrawing),
		HitTolerance:      c.Interaction.HitTolerance,
	}
}

// ToolOptions converts the tools section.
func (c *Config) ToolOptions() tools.Options {
	return tools.Options{
		MinSize:       c.Tools.MinSize,
		CloseRadius:   c.Tools.CloseRadius,
		BrushSize:     c.Tools.BrushSize,
		KeyPointWidth: c.Tools.KeyPointWidth,
	}
}

// RenderOptions converts the render section.
func (c *Config) RenderOptions() render.Options {
	return render.Options{
		MaxSize:     c.Render.MaxSize,
		FillOpacity: c.Render.FillOpacity,
		StrokeWidth: c.Render.StrokeWidth,
		GridSize:    c.Render.GridSize,
		ShowLabels:  c.Render.ShowLabels,
	}
}

// DetectionOptions converts the detection section. The timeout is applied
// by the caller.
func (c *Config) DetectionOptions() detection.Options {
	o := detection.DefaultOptions()
	o.MinArea = c.Detection.MinArea
	o.MinConfidence = c.Detection.MinConfidence
	return o
}

// OCROptions converts the ocr section.
func (c *Config) OCROptions() ocr.Options {
	o := ocr.DefaultOptions()
	o.Language = c.OCR.Language
	return o
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", s)
}
