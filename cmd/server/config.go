package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/climmo/pkg/importer"
	"github.com/hazyhaar/climmo/pkg/report"
)

type config struct {
	Addr         string          `yaml:"addr"`
	DataDir      string          `yaml:"data_dir"`
	ReferenceDir string          `yaml:"reference_dir"`
	Datasets     report.Paths    `yaml:"datasets"`
	ResultsDir   string          `yaml:"results_dir"`
	Cache        cacheConfig     `yaml:"cache"`
	Redis        redisConfig     `yaml:"redis"`
	Postgres     postgresConfig  `yaml:"postgres"`
	Log          logConfig       `yaml:"log"`
	Checker      checkerConfig   `yaml:"checker"`
	TLS          tlsConfig       `yaml:"tls"`
	Filters      report.Settings `yaml:"filters"`
}

type cacheConfig struct {
	MaxFrames int `yaml:"max_frames"`
}

type redisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type postgresConfig struct {
	DSN    string `yaml:"dsn"`
	Prefix string `yaml:"prefix"`
}

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type checkerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type tlsConfig struct {
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

func defaultConfig() config {
	return config{
		Addr:       ":8430",
		DataDir:    "data",
		ResultsDir: filepath.Join("data", "resultats"),
		Cache:      cacheConfig{MaxFrames: 8},
		Redis:      redisConfig{TTL: time.Hour},
		Log:        logConfig{Level: "info", Format: "text"},
		TLS:        tlsConfig{Mode: "off"},
		Filters:    report.DefaultSettings(),
	}
}

// loadConfig reads .env, then the YAML file, then CLIMMO_* variables. A
// missing file gives the defaults.
func loadConfig(path string, logger *slog.Logger) config {
	if err := godotenv.Load(); err == nil {
		logger.Debug(".env loaded")
	}

	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		logger.Info("no config file, using defaults", "path", path)
	case err != nil:
		logger.Error("read config", "error", err)
		os.Exit(1)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			logger.Error("parse config", "error", err)
			os.Exit(1)
		}
	}
	applyEnv(&cfg, logger)
	cfg.fillDatasets()
	return cfg
}

func applyEnv(cfg *config, logger *slog.Logger) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				logger.Warn("ignoring invalid env value", "key", key, "value", v)
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				logger.Warn("ignoring invalid env value", "key", key, "value", v)
				return
			}
			*dst = d
		}
	}

	str("CLIMMO_ADDR", &cfg.Addr)
	str("CLIMMO_DATA_DIR", &cfg.DataDir)
	str("CLIMMO_REFERENCE_DIR", &cfg.ReferenceDir)
	str("CLIMMO_TRANSACTIONS", &cfg.Datasets.Transactions)
	str("CLIMMO_RISQUES", &cfg.Datasets.Risques)
	str("CLIMMO_COMMUNES", &cfg.Datasets.Communes)
	str("CLIMMO_RESULTS_DIR", &cfg.ResultsDir)
	num("CLIMMO_CACHE_MAX_FRAMES", &cfg.Cache.MaxFrames)
	str("CLIMMO_REDIS_ADDR", &cfg.Redis.Addr)
	str("CLIMMO_REDIS_PASSWORD", &cfg.Redis.Password)
	num("CLIMMO_REDIS_DB", &cfg.Redis.DB)
	dur("CLIMMO_REDIS_TTL", &cfg.Redis.TTL)
	str("CLIMMO_POSTGRES_DSN", &cfg.Postgres.DSN)
	str("CLIMMO_LOG_LEVEL", &cfg.Log.Level)
	str("CLIMMO_LOG_FORMAT", &cfg.Log.Format)
	dur("CLIMMO_CHECKER_INTERVAL", &cfg.Checker.Interval)
	str("CLIMMO_TLS_MODE", &cfg.TLS.Mode)
	str("CLIMMO_TLS_CERT", &cfg.TLS.CertFile)
	str("CLIMMO_TLS_KEY", &cfg.TLS.KeyFile)
}

// fillDatasets points unset dataset paths at the importer's output layout.
func (c *config) fillDatasets() {
	if c.Datasets.Transactions == "" {
		c.Datasets.Transactions = importer.DatasetPath(c.DataDir, report.Transactions)
	}
	if c.Datasets.Risques == "" {
		c.Datasets.Risques = importer.DatasetPath(c.DataDir, report.Risques)
	}
	if c.Datasets.Communes == "" {
		c.Datasets.Communes = importer.DatasetPath(c.DataDir, report.Communes)
	}
}
