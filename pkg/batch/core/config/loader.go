package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/epiflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	Expander       EnvironmentExpander
	EnvFilePath    string `name:"envFilePath" optional:"true"`
	ExternalPath   string `name:"externalConfigPath" optional:"true"`
}

// NewConfigProvider is the fx constructor for *Config.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := load(params.EnvFilePath, params.EmbeddedConfig, params.ExternalPath, params.Expander)
	if err != nil {
		return nil, err
	}
	logger.SetLogLevel(cfg.Epiflow.System.Logging.Level)
	return cfg, nil
}

// LoadConfig loads configuration outside of fx, e.g. from the CLI before the container exists.
func LoadConfig(envFilePath string, embedded EmbeddedConfig, externalPath string) (*Config, error) {
	return load(envFilePath, embedded, externalPath, NewOsEnvironmentExpander())
}

func load(envFilePath string, embedded EmbeddedConfig, externalPath string, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Debugf(".env file (%s) not loaded: %v", envFilePath, err)
		}
	}
	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}

	cfg := NewConfig()

	if len(embedded) > 0 {
		if err := decodeYAML(embedded, expander, cfg); err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to decode embedded config", err, false)
		}
	}

	if externalPath != "" {
		raw, err := os.ReadFile(externalPath)
		if err != nil {
			return nil, exception.NewBatchErrorf(moduleName, err, "failed to read config file %s", externalPath)
		}
		if err := decodeYAML(raw, expander, cfg); err != nil {
			return nil, exception.NewBatchErrorf(moduleName, err, "failed to decode config file %s", externalPath)
		}
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to apply environment overrides", err, false)
	}

	if err := cfg.Validate(); err != nil {
		return nil, exception.NewBatchError(moduleName, "invalid configuration", err, false)
	}
	return cfg, nil
}

// decodeYAML expands ${VAR} placeholders and decodes over the values already in cfg,
// so keys absent from the document keep their previous value.
func decodeYAML(raw []byte, expander EnvironmentExpander, cfg *Config) error {
	expanded, err := expander.Expand(raw)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(expanded, cfg)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	e := c.Epiflow

	if e.Forecast.HorizonDays <= 0 {
		errs = append(errs, fmt.Errorf("forecast.horizon_days must be positive, got %d", e.Forecast.HorizonDays))
	}
	if e.Forecast.IntervalWidth <= 0 || e.Forecast.IntervalWidth >= 1 {
		errs = append(errs, fmt.Errorf("forecast.interval_width must be in (0,1), got %g", e.Forecast.IntervalWidth))
	}
	if e.Forecast.ChangepointRange <= 0 || e.Forecast.ChangepointRange > 1 {
		errs = append(errs, fmt.Errorf("forecast.changepoint_range must be in (0,1], got %g", e.Forecast.ChangepointRange))
	}
	switch strings.ToLower(e.Infrastructure.Metrics.Backend) {
	case "prometheus", "otlp", "none", "":
	default:
		errs = append(errs, fmt.Errorf("infrastructure.metrics.backend %q is not one of prometheus, otlp, none", e.Infrastructure.Metrics.Backend))
	}
	for _, ref := range []string{e.Outputs.StorageRef, e.Sources.SnapshotStorageRef, e.Outputs.PublishRef} {
		if ref == "" {
			continue
		}
		if _, ok := e.Adapter.Storage[ref]; !ok {
			errs = append(errs, fmt.Errorf("storage connection %q is referenced but not defined under adapter.storage", ref))
		}
	}
	if e.Outputs.StorageRef == "" {
		errs = append(errs, errors.New("outputs.storage_ref must not be empty"))
	}
	return errors.Join(errs...)
}

// loadStructFromEnv walks val and overrides every scalar or string-slice field
// whose upper-cased yaml path is set in the environment.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		yamlTag := strings.Split(typ.Field(i).Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", typ.Field(i).Name, envVarName, err)
		}
	}
	return nil
}

// setField converts value into field's kind. Maps are left alone; they are YAML-only.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		parts := make([]string, 0)
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		field.Set(reflect.ValueOf(parts))
	}
	return nil
}
