// Package config defines epiflow's configuration tree and how it is loaded.
//
// Values are layered: NewConfig defaults, then the embedded application.yaml,
// then an optional external YAML file, then environment variables (optionally
// read from a .env file). Environment names follow the yaml path in upper case,
// e.g. EPIFLOW_FETCH_TIMEOUT_SECONDS or EPIFLOW_FORECAST_METRICS=Confirmed,Deaths.
package config

import "time"

// EmbeddedConfig is the raw application.yaml compiled into the binary.
type EmbeddedConfig []byte

// Config is the root of the configuration tree.
type Config struct {
	Epiflow EpiflowConfig `yaml:"epiflow"`
}

// EpiflowConfig holds every setting of the application.
type EpiflowConfig struct {
	Pipeline       PipelineConfig       `yaml:"pipeline"`
	System         SystemConfig         `yaml:"system"`
	Sources        SourcesConfig        `yaml:"sources"`
	Fetch          FetchConfig          `yaml:"fetch"`
	Outputs        OutputsConfig        `yaml:"outputs"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	Forecast       ForecastConfig       `yaml:"forecast"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Adapter        AdapterConfig        `yaml:"adapter"`
}

// PipelineConfig names the pipeline run.
type PipelineConfig struct {
	Name string `yaml:"name"`
}

// SystemConfig holds process-wide settings.
type SystemConfig struct {
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SourcesConfig locates every input.
// Remote sources are HTTP(S) URLs; snapshot paths are object names inside the
// storage connection named by SnapshotStorageRef.
type SourcesConfig struct {
	ConfirmedURL       string `yaml:"confirmed_url"`
	DeathsURL          string `yaml:"deaths_url"`
	RecoveredURL       string `yaml:"recovered_url"`
	VaccinationsURL    string `yaml:"vaccinations_url"`
	LocationsURL       string `yaml:"locations_url"`
	SnapshotStorageRef string `yaml:"snapshot_storage_ref"`
	SummaryPath        string `yaml:"summary_path"`
	DailyPath          string `yaml:"daily_path"`
}

// FetchConfig controls HTTP downloads.
type FetchConfig struct {
	TimeoutSeconds    int         `yaml:"timeout_seconds"`
	RequestsPerSecond float64     `yaml:"requests_per_second"`
	Burst             int         `yaml:"burst"`
	UserAgent         string      `yaml:"user_agent"`
	Retry             RetryConfig `yaml:"retry"`
}

// Timeout returns the per-request timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// RetryConfig bounds retries around a single fetch.
type RetryConfig struct {
	MaxAttempts           int     `yaml:"max_attempts"`
	InitialIntervalMillis int     `yaml:"initial_interval_millis"`
	MaxIntervalMillis     int     `yaml:"max_interval_millis"`
	Multiplier            float64 `yaml:"multiplier"`
}

// OutputsConfig controls where artifacts go.
type OutputsConfig struct {
	StorageRef string `yaml:"storage_ref"`
	Prefix     string `yaml:"prefix"`
	Parquet    bool   `yaml:"parquet"`
	// ParquetCompression is SNAPPY, GZIP or NONE.
	ParquetCompression string `yaml:"parquet_compression"`
	// PublishRef optionally names a second storage connection that receives a copy of every artifact.
	PublishRef string `yaml:"publish_ref"`
}

// ReconciliationConfig extends the built-in alias table and exclusion set.
type ReconciliationConfig struct {
	Aliases    map[string]string `yaml:"aliases"`
	Exclusions []string          `yaml:"exclusions"`
	// CodeOverrides maps case-source spellings to ISO alpha-3 codes the ISO table does not know.
	CodeOverrides map[string]string `yaml:"code_overrides"`
}

// ForecastConfig tunes the forecasting stage.
type ForecastConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Metrics          []string `yaml:"metrics"`
	HorizonDays      int      `yaml:"horizon_days"`
	IntervalWidth    float64  `yaml:"interval_width"`
	Changepoints     int      `yaml:"changepoints"`
	ChangepointRange float64  `yaml:"changepoint_range"`
	FourierOrder     int      `yaml:"fourier_order"`
	Regularization   float64  `yaml:"regularization"`
}

// InfrastructureConfig groups observability backends.
type InfrastructureConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig selects the metric backend: "prometheus", "otlp" or "none".
type MetricsConfig struct {
	Backend        string     `yaml:"backend"`
	Namespace      string     `yaml:"namespace"`
	PushgatewayURL string     `yaml:"pushgateway_url"`
	OTLP           OTLPConfig `yaml:"otlp"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled     bool       `yaml:"enabled"`
	ServiceName string     `yaml:"service_name"`
	OTLP        OTLPConfig `yaml:"otlp"`
}

// OTLPConfig describes an OTLP collector endpoint.
type OTLPConfig struct {
	Endpoint string `yaml:"endpoint"`
	// Protocol is "http" or "grpc".
	Protocol string `yaml:"protocol"`
	Insecure bool   `yaml:"insecure"`
}

// AdapterConfig holds untyped adapter blocks decoded by each adapter.
type AdapterConfig struct {
	Storage map[string]map[string]interface{} `yaml:"storage"`
}

// DefaultSnapshotStorage and DefaultOutputStorage are the connection names used when YAML names none.
const (
	DefaultSnapshotStorage = "snapshots"
	DefaultOutputStorage   = "artifacts"
)

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Epiflow: EpiflowConfig{
			Pipeline: PipelineConfig{Name: "epidemicPipeline"},
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Sources: SourcesConfig{
				ConfirmedURL:       "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_time_series/time_series_covid19_confirmed_global.csv",
				DeathsURL:          "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_time_series/time_series_covid19_deaths_global.csv",
				RecoveredURL:       "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_time_series/time_series_covid19_recovered_global.csv",
				VaccinationsURL:    "https://raw.githubusercontent.com/owid/covid-19-data/master/public/data/vaccinations/vaccinations.csv",
				LocationsURL:       "https://raw.githubusercontent.com/owid/covid-19-data/master/public/data/vaccinations/locations.csv",
				SnapshotStorageRef: DefaultSnapshotStorage,
				SummaryPath:        "worldometer_coronavirus_summary_data.csv",
				DailyPath:          "worldometer_coronavirus_daily_data.csv",
			},
			Fetch: FetchConfig{
				TimeoutSeconds:    60,
				RequestsPerSecond: 2,
				Burst:             2,
				UserAgent:         "epiflow/1.0",
				Retry: RetryConfig{
					MaxAttempts:           4,
					InitialIntervalMillis: 500,
					MaxIntervalMillis:     10000,
					Multiplier:            2,
				},
			},
			Outputs: OutputsConfig{StorageRef: DefaultOutputStorage, ParquetCompression: "SNAPPY"},
			Forecast: ForecastConfig{
				Enabled:          true,
				Metrics:          []string{"Confirmed", "Deaths", "Recovered", "Active"},
				HorizonDays:      365,
				IntervalWidth:    0.8,
				Changepoints:     25,
				ChangepointRange: 0.8,
				FourierOrder:     10,
				Regularization:   0.05,
			},
			Infrastructure: InfrastructureConfig{
				Metrics: MetricsConfig{Backend: "prometheus", Namespace: "epiflow"},
				Tracing: TracingConfig{ServiceName: "epiflow"},
			},
			Adapter: AdapterConfig{
				Storage: map[string]map[string]interface{}{
					DefaultSnapshotStorage: {"type": "local", "base_dir": "data"},
					DefaultOutputStorage:   {"type": "local", "base_dir": "data"},
				},
			},
		},
	}
}
