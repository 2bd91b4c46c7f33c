// Package config содержит логику чтения конфигурации сервиса отчётов.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса отчётов.
// DatabaseURI включает хранилище на PostgreSQL; без него набор данных
// читается из CSV-каталога DataDir и отчёты считаются в памяти.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	DataDir     string `env:"DATA_DIR"`
	OutputDir   string `env:"OUTPUT_DIR"`
	Reports     string `env:"REPORTS"`
	Once        bool   `env:"RUN_ONCE"`
	Import      bool   `env:"IMPORT_DATASET"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных
// окружения. Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envDataDir := cfg.DataDir
	envOutputDir := cfg.OutputDir
	envReports := cfg.Reports
	envOnce := cfg.Once
	envImport := cfg.Import

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.DataDir, "i", "", "directory with the CSV dataset")
	flag.StringVar(&cfg.OutputDir, "o", "reports", "output directory for CSV reports")
	flag.StringVar(&cfg.Reports, "reports", "", "comma-separated report names to run (default all)")
	flag.BoolVar(&cfg.Once, "once", false, "run reports once, write CSV and exit")
	flag.BoolVar(&cfg.Import, "import", false, "import the CSV dataset into the database before running")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envDataDir != "" {
		cfg.DataDir = envDataDir
	}
	if envOutputDir != "" {
		cfg.OutputDir = envOutputDir
	}
	if envReports != "" {
		cfg.Reports = envReports
	}
	if _, ok := os.LookupEnv("RUN_ONCE"); ok {
		cfg.Once = envOnce
	}
	if _, ok := os.LookupEnv("IMPORT_DATASET"); ok {
		cfg.Import = envImport
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "reports"
	}

	if cfg.DatabaseURI == "" && cfg.DataDir == "" {
		return nil, errors.New("either database URI (-d) or dataset directory (-i) is required")
	}
	if cfg.Import && (cfg.DatabaseURI == "" || cfg.DataDir == "") {
		return nil, errors.New("import requires both database URI (-d) and dataset directory (-i)")
	}

	return cfg, nil
}

// ReportList возвращает список имён отчётов из поля Reports. Пустое поле
// означает все отчёты.
func (c *Config) ReportList() []string {
	if c.Reports == "" {
		return nil
	}

	parts := strings.Split(c.Reports, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			res = append(res, name)
		}
	}
	return res
}
