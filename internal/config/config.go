package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/lcalzada-xor/vmap/internal/core/services/scoring"
)

// Config holds all application configuration.
type Config struct {
	Addr                string
	DBPath              string
	StaticDir           string
	WeightProfilePath   string
	MinSignatureMatches int
	Debug               bool

	Weights scoring.WeightProfile
}

// Load parses command line flags and environment variables to populate
// Config. Flags take precedence over environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Addr = getEnv("VMAP_ADDR", ":8080")
	cfg.DBPath = getEnv("VMAP_DB", getDefaultDBPath())
	cfg.StaticDir = getEnv("VMAP_STATIC", "")
	cfg.WeightProfilePath = getEnv("VMAP_WEIGHTS", "")
	cfg.MinSignatureMatches = getEnvInt("VMAP_MIN_SIGNATURE_MATCHES", 3)
	cfg.Debug = getEnvBool("VMAP_DEBUG", false)

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP server address")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to SQLite database")
	flag.StringVar(&cfg.StaticDir, "static", cfg.StaticDir, "Dashboard static files directory (empty to disable)")
	flag.StringVar(&cfg.WeightProfilePath, "weights", cfg.WeightProfilePath, "Path to VRR weight profile YAML (empty for defaults)")
	flag.IntVar(&cfg.MinSignatureMatches, "min-signature-matches", cfg.MinSignatureMatches, "CSV header columns required to attribute a scanner format")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable verbose debug logging")
	flag.Parse()

	weights, err := loadWeights(cfg.WeightProfilePath)
	if err != nil {
		return nil, err
	}
	cfg.Weights = weights

	return cfg, nil
}

// loadWeights reads a weight profile from YAML, or returns the default
// profile when no path is configured. Validation happens in the scorer.
func loadWeights(path string) (scoring.WeightProfile, error) {
	if path == "" {
		return scoring.DefaultProfile(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return scoring.WeightProfile{}, fmt.Errorf("reading weight profile: %w", err)
	}

	var profile scoring.WeightProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return scoring.WeightProfile{}, fmt.Errorf("parsing weight profile: %w", err)
	}
	return profile, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getDefaultDBPath returns the default database path in the user's home
// directory, creating ~/.vmap if needed.
func getDefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("could not resolve home directory, using current dir", "error", err)
		return "vmap.db"
	}

	vmapDir := filepath.Join(home, ".vmap")
	if err := os.MkdirAll(vmapDir, 0755); err != nil {
		slog.Warn("could not create .vmap directory, using current dir", "error", err)
		return "vmap.db"
	}
	return filepath.Join(vmapDir, "vmap.db")
}
