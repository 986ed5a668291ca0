package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Web       WebConfig       `yaml:"web"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Model     ModelConfig     `yaml:"model"`
}

type WebConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// ExtractorConfig описывает запуск внешнего парсера ссылок
type ExtractorConfig struct {
	BinaryPath  string        `yaml:"binary_path"`
	ScratchRoot string        `yaml:"scratch_root"`
	Timeout     time.Duration `yaml:"-"`
	// длительность в YAML задаётся строкой вида "2m"
	RawTimeout string `yaml:"timeout"`
}

type ModelConfig struct {
	ArtifactPath string `yaml:"artifact_path"`
}

// Load читает .env, затем опциональный YAML; env переменные имеют приоритет
func Load() (*Config, error) {
	// .env опционален: в проде всё приходит из окружения
	_ = godotenv.Load()

	cfg := &Config{
		Web: WebConfig{
			ListenAddr: ":8080",
		},
		Extractor: ExtractorConfig{
			ScratchRoot: os.TempDir(),
			Timeout:     2 * time.Minute,
		},
	}

	if path := os.Getenv("PHISHTRAP_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		if cfg.Extractor.RawTimeout != "" {
			d, err := time.ParseDuration(cfg.Extractor.RawTimeout)
			if err != nil {
				return nil, fmt.Errorf("parsing extractor timeout: %w", err)
			}
			cfg.Extractor.Timeout = d
		}
	}

	applyEnv(cfg)

	if cfg.Extractor.BinaryPath == "" {
		return nil, fmt.Errorf("extractor binary path is not set (EXTRACTOR_BINARY)")
	}
	if cfg.Model.ArtifactPath == "" {
		return nil, fmt.Errorf("model artifact path is not set (MODEL_ARTIFACT)")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("WEB_LISTEN_ADDR"); v != "" {
		cfg.Web.ListenAddr = v
	}
	if v := os.Getenv("EXTRACTOR_BINARY"); v != "" {
		cfg.Extractor.BinaryPath = v
	}
	if v := os.Getenv("EXTRACTOR_SCRATCH_ROOT"); v != "" {
		cfg.Extractor.ScratchRoot = v
	}
	if v := os.Getenv("EXTRACTOR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Extractor.Timeout = d
		}
	}
	if v := os.Getenv("MODEL_ARTIFACT"); v != "" {
		cfg.Model.ArtifactPath = v
	}
}
