package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config is the whole loader configuration, usually read from engine.toml.
type Config struct {
	Log     LogConfig     `toml:"log"`
	Jobs    JobsConfig    `toml:"jobs"`
	Storage StorageConfig `toml:"storage"`
	Images  ImagesConfig  `toml:"images"`
	Shader  ShaderConfig  `toml:"shader"`
	Cubemap CubemapConfig `toml:"cubemap"`
	Watch   WatchConfig   `toml:"watch"`
	Pool    PoolConfig    `toml:"pool"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type JobsConfig struct {
	// Workers is the number of goroutines running general jobs.
	Workers int `toml:"workers"`
	// QueueSize is the buffer of the worker queue. Submissions past it
	// are handed off to a goroutine instead of blocking.
	QueueSize int `toml:"queue_size"`
}

// StorageConfig maps every storage location to a directory on disk.
type StorageConfig struct {
	Package  string `toml:"package"`
	Engine   string `toml:"engine"`
	SaveData string `toml:"save_data"`
	Cache    string `toml:"cache"`
	DLC      string `toml:"dlc"`
	Root     string `toml:"root"`
}

type ImagesConfig struct {
	FlipY           bool `toml:"flip_y"`
	DropOpaqueAlpha bool `toml:"drop_opaque_alpha"`
}

type ShaderConfig struct {
	Language string `toml:"language"`
}

type CubemapConfig struct {
	ParallelFaces bool `toml:"parallel_faces"`
}

type WatchConfig struct {
	Enabled bool `toml:"enabled"`
}

type PoolConfig struct {
	Enabled bool `toml:"enabled"`
}

var ErrInvalidConfig = errors.New("invalid configuration")

func DefaultConfig() *Config {
	return &Config{
		Log:  LogConfig{Level: "info"},
		Jobs: JobsConfig{Workers: 4, QueueSize: 64},
		Storage: StorageConfig{
			Package:  "assets",
			Engine:   "assets/engine",
			SaveData: "save",
			Cache:    "cache",
			DLC:      "dlc",
			Root:     "",
		},
		Shader: ShaderConfig{Language: "GLSL"},
		Pool:   PoolConfig{Enabled: true},
	}
}

// LoadConfig reads the TOML file at path on top of DefaultConfig and then
// applies ANIMA_* environment overrides (a .env file next to the process is
// honoured). An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"ANIMA_LOG_LEVEL":         &c.Log.Level,
		"ANIMA_STORAGE_PACKAGE":   &c.Storage.Package,
		"ANIMA_STORAGE_ENGINE":    &c.Storage.Engine,
		"ANIMA_STORAGE_SAVE_DATA": &c.Storage.SaveData,
		"ANIMA_STORAGE_CACHE":     &c.Storage.Cache,
		"ANIMA_STORAGE_DLC":       &c.Storage.DLC,
		"ANIMA_STORAGE_ROOT":      &c.Storage.Root,
		"ANIMA_SHADER_LANGUAGE":   &c.Shader.Language,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"ANIMA_JOBS_WORKERS":    &c.Jobs.Workers,
		"ANIMA_JOBS_QUEUE_SIZE": &c.Jobs.QueueSize,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"ANIMA_IMAGES_FLIP_Y":            &c.Images.FlipY,
		"ANIMA_IMAGES_DROP_OPAQUE_ALPHA": &c.Images.DropOpaqueAlpha,
		"ANIMA_CUBEMAP_PARALLEL_FACES":   &c.Cubemap.ParallelFaces,
		"ANIMA_WATCH_ENABLED":            &c.Watch.Enabled,
		"ANIMA_POOL_ENABLED":             &c.Pool.Enabled,
	}
	for key, dst := range bools {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, key, v)
			}
			*dst = b
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Jobs.Workers < 1 {
		return fmt.Errorf("%w: jobs.workers must be >= 1, got %d", ErrInvalidConfig, c.Jobs.Workers)
	}
	if c.Jobs.QueueSize < 0 {
		return fmt.Errorf("%w: jobs.queue_size must be >= 0, got %d", ErrInvalidConfig, c.Jobs.QueueSize)
	}
	if c.Shader.Language == "" {
		return fmt.Errorf("%w: shader.language must not be empty", ErrInvalidConfig)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level)
	}
	return nil
}
