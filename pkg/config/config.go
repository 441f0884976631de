// Package config loads runtime configuration from the environment and an
// optional YAML profile. Every constant the domain modules and the
// correlator use lives here and is passed in at construction time.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds runtime configuration.
type Config struct {
	TenantID          string   `yaml:"tenant_id"`
	LogLevel          string   `yaml:"log_level"`
	HashSecondary     string   `yaml:"hash_secondary"`
	LoopCycleSeconds  int      `yaml:"loop_cycle_seconds"`
	HarvestPeriodDays int      `yaml:"harvest_period_days"`
	ModulePriority    []string `yaml:"module_priority"`

	Exposure   Exposure   `yaml:"exposure"`
	Thresholds Thresholds `yaml:"thresholds"`

	Sink    SinkConfig    `yaml:"sink"`
	Archive ArchiveConfig `yaml:"archive"`

	AttestationKey   string   `yaml:"-"`
	ViolationRules   []string `yaml:"violation_rules"`
	ValidateReceipts bool     `yaml:"validate_receipts"`

	OTelEnabled     bool   `yaml:"otel_enabled"`
	OTelEndpoint    string `yaml:"otel_endpoint"`
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// Exposure holds the documented dollar figures per domain.
type Exposure struct {
	TariffFY2025Revenue      float64 `yaml:"tariff_fy2025_revenue"`
	TariffRefundLiability    float64 `yaml:"tariff_refund_liability"`
	BorderFourYearAllocation float64 `yaml:"border_four_year_allocation"`
	BorderICEFY2025          float64 `yaml:"border_ice_fy2025"`
	GulfPIFInvestment        float64 `yaml:"gulf_pif_investment"`
	GulfAffinityAUM          float64 `yaml:"gulf_affinity_aum"`
	GulfFeesCollected        float64 `yaml:"gulf_fees_collected"`
	GolfAnnualRevenue        float64 `yaml:"golf_annual_revenue"`
	GolfLIVPIFInvestment     float64 `yaml:"golf_liv_pif_investment"`
	LicenseAnnualRevenue     float64 `yaml:"license_annual_revenue"`
	LicensePIFProjectValue   float64 `yaml:"license_pif_project_value"`
}

// PIFTotal is the documented Saudi PIF exposure.
func (e Exposure) PIFTotal() float64 {
	return e.GulfPIFInvestment + e.GolfLIVPIFInvestment
}

// Total is the headline exposure across the five domains.
func (e Exposure) Total() float64 {
	return e.TariffFY2025Revenue + e.BorderFourYearAllocation + e.GulfAffinityAUM + e.GolfAnnualRevenue + e.LicenseAnnualRevenue
}

// Thresholds used by the domain scoring functions.
type Thresholds struct {
	Favoritism            float64 `yaml:"favoritism"`
	OpacityCritical       float64 `yaml:"opacity_critical"`
	FeeToReturnsExcessive float64 `yaml:"fee_to_returns_excessive"`
	EmolumentsDisclosure  float64 `yaml:"emoluments_disclosure"`
	PIFSignificantFlow    float64 `yaml:"pif_significant_flow"`
}

// SinkConfig selects and addresses the receipt sink.
type SinkConfig struct {
	Kind         string   `yaml:"kind"` // stdout | file | sqlite | postgres | redis | kafka
	FilePath     string   `yaml:"file_path"`
	SQLitePath   string   `yaml:"sqlite_path"`
	PostgresDSN  string   `yaml:"-"`
	RedisAddr    string   `yaml:"redis_addr"`
	RedisDB      int      `yaml:"redis_db"`
	RedisStream  string   `yaml:"redis_stream"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	RedisPassword string `yaml:"-"`
}

// ArchiveConfig selects the sealed segment archive backend.
type ArchiveConfig struct {
	Kind       string `yaml:"kind"` // fs | s3 | gcs
	Dir        string `yaml:"dir"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Region   string `yaml:"s3_region"`
	S3Endpoint string `yaml:"s3_endpoint"`
	S3Prefix   string `yaml:"s3_prefix"`
	GCSBucket  string `yaml:"gcs_bucket"`
	GCSPrefix  string `yaml:"gcs_prefix"`
}

// DefaultExposure returns the documented figures.
func DefaultExposure() Exposure {
	return Exposure{
		TariffFY2025Revenue:      195_000_000_000,
		TariffRefundLiability:    90_000_000_000,
		BorderFourYearAllocation: 170_100_000_000,
		BorderICEFY2025:          28_700_000_000,
		GulfPIFInvestment:        2_000_000_000,
		GulfAffinityAUM:          5_400_000_000,
		GulfFeesCollected:        157_000_000,
		GolfAnnualRevenue:        354_000_000,
		GolfLIVPIFInvestment:     4_580_000_000,
		LicenseAnnualRevenue:     36_000_000,
		LicensePIFProjectValue:   2_033_000_000,
	}
}

// DefaultThresholds returns the documented thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Favoritism:            0.15,
		OpacityCritical:       0.80,
		FeeToReturnsExcessive: 10.0,
		EmolumentsDisclosure:  10_000,
		PIFSignificantFlow:    1_000_000_000,
	}
}

// DefaultModulePriority orders domains by the value of their verification.
func DefaultModulePriority() []string {
	return []string{"border", "tariff", "gulf", "golf", "license"}
}

// Default returns the configuration with no environment applied.
func Default() *Config {
	return &Config{
		TenantID:          "trumpproof",
		LogLevel:          "INFO",
		HashSecondary:     "blake3",
		LoopCycleSeconds:  60,
		HarvestPeriodDays: 30,
		ModulePriority:    DefaultModulePriority(),
		Exposure:          DefaultExposure(),
		Thresholds:        DefaultThresholds(),
		Sink: SinkConfig{
			Kind:        "stdout",
			FilePath:    "receipts.jsonl",
			SQLitePath:  "receipts.db",
			PostgresDSN: "postgres://trumpproof@localhost:5432/trumpproof?sslmode=disable",
			RedisAddr:   "localhost:6379",
			RedisStream: "trumpproof:receipts",
			KafkaTopic:  "trumpproof.receipts",
		},
		Archive: ArchiveConfig{
			Kind:     "fs",
			Dir:      "data/segments",
			S3Region: "us-east-1",
		},
		ValidateReceipts: true,
		OTelEndpoint:     "localhost:4317",
	}
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := Default()

	cfg.TenantID = envOr("TENANT_ID", cfg.TenantID)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.HashSecondary = envOr("HASH_SECONDARY", cfg.HashSecondary)
	cfg.LoopCycleSeconds = envInt("LOOP_CYCLE_SECONDS", cfg.LoopCycleSeconds)
	cfg.HarvestPeriodDays = envInt("HARVEST_PERIOD_DAYS", cfg.HarvestPeriodDays)
	if p := os.Getenv("MODULE_PRIORITY"); p != "" {
		cfg.ModulePriority = splitList(p, ",")
	}

	cfg.Sink.Kind = envOr("RECEIPT_SINK", cfg.Sink.Kind)
	cfg.Sink.FilePath = envOr("RECEIPT_FILE", cfg.Sink.FilePath)
	cfg.Sink.SQLitePath = envOr("SQLITE_PATH", cfg.Sink.SQLitePath)
	cfg.Sink.PostgresDSN = envOr("DATABASE_URL", cfg.Sink.PostgresDSN)
	cfg.Sink.RedisAddr = envOr("REDIS_ADDR", cfg.Sink.RedisAddr)
	cfg.Sink.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.Sink.RedisDB = envInt("REDIS_DB", cfg.Sink.RedisDB)
	cfg.Sink.RedisStream = envOr("REDIS_STREAM", cfg.Sink.RedisStream)
	if b := os.Getenv("KAFKA_BROKERS"); b != "" {
		cfg.Sink.KafkaBrokers = splitList(b, ",")
	}
	cfg.Sink.KafkaTopic = envOr("KAFKA_TOPIC", cfg.Sink.KafkaTopic)

	cfg.Archive.Kind = envOr("ARCHIVE_STORAGE_TYPE", cfg.Archive.Kind)
	cfg.Archive.Dir = envOr("ARCHIVE_DIR", cfg.Archive.Dir)
	cfg.Archive.S3Bucket = os.Getenv("ARCHIVE_S3_BUCKET")
	cfg.Archive.S3Region = envOr("ARCHIVE_S3_REGION", envOr("AWS_REGION", cfg.Archive.S3Region))
	cfg.Archive.S3Endpoint = os.Getenv("ARCHIVE_S3_ENDPOINT")
	cfg.Archive.S3Prefix = os.Getenv("ARCHIVE_S3_PREFIX")
	cfg.Archive.GCSBucket = os.Getenv("ARCHIVE_GCS_BUCKET")
	cfg.Archive.GCSPrefix = os.Getenv("ARCHIVE_GCS_PREFIX")

	cfg.AttestationKey = os.Getenv("ATTESTATION_KEY")
	if r := os.Getenv("VIOLATION_RULES"); r != "" {
		cfg.ViolationRules = splitList(r, ";")
	}

	cfg.ValidateReceipts = envBool("RECEIPT_VALIDATE", cfg.ValidateReceipts)

	cfg.OTelEnabled = os.Getenv("OTEL_ENABLED") == "true"
	cfg.OTelEndpoint = envOr("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTelEndpoint)
	cfg.MetricsTextfile = os.Getenv("METRICS_TEXTFILE")

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return b
}

func splitList(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
