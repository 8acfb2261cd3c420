// Package config provides application configuration management.
//
// Configuration comes from defaults, then AUDIOTAP_* environment variables,
// then command-line flags. There is no configuration file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/oszuidwest/zwfm-audiotap/internal/audio"
	"github.com/oszuidwest/zwfm-audiotap/internal/types"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "AUDIOTAP_"

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// validate is the shared validator instance for configuration validation.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names in error messages instead of struct field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})

	// Drivers register themselves per platform and build tag.
	if err := validate.RegisterValidation("driver", func(fl validator.FieldLevel) bool {
		return slices.Contains(audio.Drivers(), fl.Field().String())
	}); err != nil {
		panic(err)
	}
}

// AudioConfig holds capture device settings.
type AudioConfig struct {
	Driver         string `json:"driver" validate:"required,driver"`
	Device         string `json:"device" validate:"required,max=256"`
	Channels       int    `json:"channels" validate:"gte=1,lte=32"`
	SampleRate     int    `json:"sample_rate" validate:"gte=4000,lte=384000"`
	FrameBlockSize int    `json:"frame_block_size" validate:"gte=1,lte=65536"`
}

// TapConfig holds capture loop settings.
type TapConfig struct {
	Blocks     int `json:"blocks" validate:"gte=0"`                 // Blocks to capture (0 = until stopped)
	MaxRetries int `json:"max_retries" validate:"gte=0,lte=10000"` // Consecutive overruns before giving up
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `json:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" validate:"oneof=text json"`
}

// EventsConfig holds the capture event journal settings.
type EventsConfig struct {
	Path string `json:"path" validate:"omitempty,max=4096,excludes=.."` // Empty disables the journal
}

// Config holds all application configuration.
type Config struct {
	Audio  AudioConfig  `json:"audio"`
	Tap    TapConfig    `json:"tap"`
	Log    LogConfig    `json:"log"`
	Events EventsConfig `json:"events"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Audio: AudioConfig{
			Driver:         types.DefaultDriver,
			Device:         types.DefaultDevice,
			Channels:       types.DefaultChannels,
			SampleRate:     types.DefaultSampleRate,
			FrameBlockSize: types.DefaultFrameBlockSize,
		},
		Tap: TapConfig{
			MaxRetries: types.MaxRetries,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// envBinding maps one environment variable suffix to a config field.
type envBinding struct {
	name string
	set  func(string) error
}

func (c *Config) envBindings() []envBinding {
	return []envBinding{
		{"DRIVER", setString(&c.Audio.Driver)},
		{"DEVICE", setString(&c.Audio.Device)},
		{"CHANNELS", setInt(&c.Audio.Channels)},
		{"SAMPLE_RATE", setInt(&c.Audio.SampleRate)},
		{"FRAME_BLOCK_SIZE", setInt(&c.Audio.FrameBlockSize)},
		{"BLOCKS", setInt(&c.Tap.Blocks)},
		{"MAX_RETRIES", setInt(&c.Tap.MaxRetries)},
		{"LOG_LEVEL", setString(&c.Log.Level)},
		{"LOG_FORMAT", setString(&c.Log.Format)},
		{"EVENTS", setString(&c.Events.Path)},
	}
}

// ApplyEnv overrides fields from AUDIOTAP_* variables found by lookup,
// which is normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	for _, b := range c.envBindings() {
		value, ok := lookup(EnvPrefix + b.name)
		if !ok {
			continue
		}
		if err := b.set(value); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, b.name, err))
		}
	}
	return errors.Join(errs...)
}

// BindFlags registers flags on fs that write into c. Current field values
// become the flag defaults, so call ApplyEnv first to let flags win.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Audio.Driver, "driver", c.Audio.Driver, "Audio driver (alsa, arecord, portaudio)")
	fs.StringVar(&c.Audio.Device, "device", c.Audio.Device, "Capture device (alsa: default, hw:C,D or card title; plugin names such as plughw:C,D need -driver arecord)")
	fs.IntVar(&c.Audio.Channels, "channels", c.Audio.Channels, "Number of interleaved channels")
	fs.IntVar(&c.Audio.SampleRate, "rate", c.Audio.SampleRate, "Requested sample rate in Hz")
	fs.IntVar(&c.Audio.FrameBlockSize, "frames", c.Audio.FrameBlockSize, "Requested frames per capture block")
	fs.IntVar(&c.Tap.Blocks, "blocks", c.Tap.Blocks, "Number of blocks to capture (0 = until interrupted)")
	fs.IntVar(&c.Tap.MaxRetries, "max-retries", c.Tap.MaxRetries, "Consecutive overruns tolerated before giving up")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&c.Log.Format, "log-format", c.Log.Format, "Log format (text, json)")
	fs.StringVar(&c.Events.Path, "events", c.Events.Path, "Path to capture event journal (JSON lines)")
}

// Validate checks all configuration fields. It returns a *types.ValidationError
// listing every invalid field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	verr := types.NewValidationError()
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			verr.Add(fieldPath(e.Namespace()), formatValidationMessage(e), e.Value())
		}
	} else {
		// Fallback for non-validation errors
		verr.Add("", err.Error(), nil)
	}
	return verr
}

// fieldPath strips the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	_, path, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return path
}

// formatValidationMessage creates a human-readable message from a validator error.
func formatValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "driver":
		return fmt.Sprintf("must be a registered driver (%s)", strings.Join(audio.Drivers(), ", "))
	case "excludes":
		return fmt.Sprintf("cannot contain '%s'", e.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}

func setString(dst *string) func(string) error {
	return func(v string) error {
		*dst = strings.TrimSpace(v)
		return nil
	}
}

func setInt(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("not an integer: %q", v)
		}
		*dst = n
		return nil
	}
}
