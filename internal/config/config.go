package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"

	kriging "github.com/flywave/go-okgrid"
	"github.com/flywave/go-okgrid/geojson"
)

const (
	defaultPort         = 8080
	defaultMaxBodyBytes = 32 << 20
	envPrefix           = "OKGRID_"
)

// Config is the file and environment driven configuration of the okgrid
// binaries.
type Config struct {
	Kriging kriging.Config `yaml:"kriging"`
	Input   Input          `yaml:"input"`
	Server  Server         `yaml:"server"`
}

type Input struct {
	Delimiter            string `yaml:"delimiter"`
	CompositeCoordinates bool   `yaml:"compositeCoordinates"`
	SkipHeader           bool   `yaml:"skipHeader"`
	// HalfCell writes and reads Esri cell corners instead of node origins.
	HalfCell bool `yaml:"halfCell"`
	// HeightModel names the vertical datum of GeoJSON Z values (hae, egm84,
	// egm96, egm2008); empty leaves Z untouched.
	HeightModel  string  `yaml:"heightModel"`
	HeightOffset float64 `yaml:"heightOffset"`
}

type Server struct {
	Port         int    `yaml:"port"`
	MaxBodyBytes int64  `yaml:"maxBodyBytes"`
	BearerToken  string `yaml:"-"`
}

func Default() Config {
	return Config{
		Kriging: kriging.DefaultConfig(),
		Server: Server{
			Port:         defaultPort,
			MaxBodyBytes: defaultMaxBodyBytes,
		},
	}
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func (c Config) XYZOptions() kriging.XYZOptions {
	return kriging.XYZOptions{
		Delimiter:            c.Input.Delimiter,
		CompositeCoordinates: c.Input.CompositeCoordinates,
		SkipHeader:           c.Input.SkipHeader,
	}
}

// Load reads the YAML file at path over the defaults, then applies
// OKGRID_* environment variables (optionally from .env). A missing file
// leaves the defaults in place.
func Load(path string) (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			klog.V(1).InfoS("config file not found, using defaults", "path", path)
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid server max body bytes: %d", c.Server.MaxBodyBytes)
	}
	if _, err := geojson.ParseVerticalDatum(c.Input.HeightModel); err != nil {
		return err
	}
	return c.Kriging.Validate()
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func envFloat(key string, dst *float64) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	*dst = f
	return nil
}

func envInt(key string, dst *int) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	*dst = b
	return nil
}

func applyEnv(cfg *Config) error {
	k := &cfg.Kriging
	if v, ok := lookup("MODEL"); ok {
		t, err := kriging.ParseModelType(v)
		if err != nil {
			return fmt.Errorf("invalid %sMODEL: %w", envPrefix, err)
		}
		k.Model = t
	}
	if v, ok := lookup("NUGGET"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sNUGGET: %w", envPrefix, err)
		}
		k.NuggetHint = &f
	}
	if v, ok := lookup("INTERPOLATOR"); ok {
		k.Interpolator = v
	}
	// whitespace is a valid delimiter, so it is not trimmed
	if v, ok := os.LookupEnv(envPrefix + "DELIMITER"); ok && v != "" {
		cfg.Input.Delimiter = v
	}
	if v, ok := lookup("HEIGHT_MODEL"); ok {
		cfg.Input.HeightModel = v
	}
	if v, ok := os.LookupEnv(envPrefix + "BEARER_TOKEN"); ok {
		cfg.Server.BearerToken = strings.TrimSpace(v)
	}

	for _, set := range []func() error{
		func() error { return envInt("BINS", &k.Bins) },
		func() error { return envFloat("MAX_LAG", &k.MaxLag) },
		func() error { return envFloat("CELL_SIZE", &k.CellSize) },
		func() error { return envFloat("NODATA", &k.NoData) },
		func() error { return envBool("FIX_NUGGET", &k.FixNugget) },
		func() error { return envInt("MAX_ITERATIONS", &k.MaxIterations) },
		func() error { return envInt("MAX_CELLS", &k.MaxCells) },
		func() error { return envFloat("TOLERANCE", &k.Tolerance) },
		func() error { return envBool("REGULARIZE", &k.Regularize) },
		func() error { return envFloat("RIDGE_EPSILON", &k.RidgeEpsilon) },
		func() error { return envFloat("MAX_CONDITION", &k.MaxCondition) },
		func() error { return envBool("EXACT_VALUES", &k.ExactValues) },
		func() error { return envInt("WORKERS", &k.Workers) },
		func() error { return envBool("MASK_OUTSIDE_HULL", &k.MaskOutsideHull) },
		func() error { return envFloat("DECLUSTER_SIZE", &k.DeclusterSize) },
		func() error { return envBool("COMPOSITE_COORDINATES", &cfg.Input.CompositeCoordinates) },
		func() error { return envBool("SKIP_HEADER", &cfg.Input.SkipHeader) },
		func() error { return envBool("HALF_CELL", &cfg.Input.HalfCell) },
		func() error { return envFloat("HEIGHT_OFFSET", &cfg.Input.HeightOffset) },
		func() error { return envInt("PORT", &cfg.Server.Port) },
	} {
		if err := set(); err != nil {
			return err
		}
	}
	return nil
}
