package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/audiosearch/internal/db"
	"github.com/kailas-cloud/audiosearch/internal/domain"
	"github.com/kailas-cloud/audiosearch/internal/domain/ranking"
	"github.com/kailas-cloud/audiosearch/internal/domain/traversal"
)

// Config holds the audiosearch service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Index     IndexConfig     `yaml:"index"`
	Segmenter SegmenterConfig `yaml:"segmenter"`
	Ranker    RankerConfig    `yaml:"ranker"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Decoder   DecoderConfig   `yaml:"decoder"`
	Sources   SourcesConfig   `yaml:"sources"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. Empty APIKeys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int `yaml:"max_upload_mb"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	DialTimeoutSec   int      `yaml:"dial_timeout_sec"`
	ClientName       string   `yaml:"client_name"`
}

// StorageConfig holds key layout settings.
type StorageConfig struct {
	KeyPrefix    string `yaml:"key_prefix"`
	ResetOnStart bool   `yaml:"reset_on_start"`
}

// IndexConfig holds vector index, retrieval and seeding settings.
type IndexConfig struct {
	Algorithm       string `yaml:"algorithm"` // hnsw, flat
	Distance        string `yaml:"distance"`  // cosine, l2, ip
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	TopK            int    `yaml:"top_k"`
	MaxBatchSize    int    `yaml:"max_batch_size"`
	Workers         int    `yaml:"workers"`
	SeedGlob        string `yaml:"seed_glob"`
}

// SegmenterConfig holds window settings in seconds.
type SegmenterConfig struct {
	ChunkDuration float64 `yaml:"chunk_duration"`
	ChunkStride   float64 `yaml:"chunk_stride"`
	Workers       int     `yaml:"workers"`
}

// RankerConfig holds aggregation settings. An empty Metric follows the index distance.
type RankerConfig struct {
	Metric    string `yaml:"metric"`
	Ranking   string `yaml:"ranking"`         // min, max
	Traversal string `yaml:"traversal_paths"` // r, c
	Workers   int    `yaml:"workers"`
}

// EmbeddingConfig holds log-mel embedder and cache settings.
type EmbeddingConfig struct {
	Model       string      `yaml:"model"`
	NumMels     int         `yaml:"num_mels"`
	WindowMs    float64     `yaml:"window_ms"`
	HopMs       float64     `yaml:"hop_ms"`
	LowFreq     float64     `yaml:"low_freq"`
	HighFreq    float64     `yaml:"high_freq"`
	PreEmphasis *float64    `yaml:"pre_emphasis"`
	Cache       CacheConfig `yaml:"cache"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"`
}

// DecoderConfig holds audio decoding settings.
type DecoderConfig struct {
	SampleRate int `yaml:"sample_rate"` // target rate; every input is resampled to it
}

// SourcesConfig holds settings for fetching audio by uri.
type SourcesConfig struct {
	FileRoot       string      `yaml:"file_root"`
	HTTPTimeoutSec int         `yaml:"http_timeout_sec"`
	S3             S3Config    `yaml:"s3"`
	Minio          MinioConfig `yaml:"minio"`
}

// S3Config enables s3:// uris through the AWS SDK default credential chain.
type S3Config struct {
	Enabled      bool   `yaml:"enabled"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// MinioConfig enables minio:// uris against an S3-compatible endpoint.
type MinioConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// ConfigPathEnv names an explicit config file that overrides the env lookup.
const ConfigPathEnv = "CONFIG_PATH"

// Load reads config/<env>.yaml, or the file named by $CONFIG_PATH.
func Load(env string) (Config, error) {
	if p := os.Getenv(ConfigPathEnv); p != "" {
		return LoadFile(p)
	}
	return LoadFile(findConfigPath(env))
}

// LoadFile reads, expands, defaults and validates one YAML file.
func LoadFile(configPath string) (Config, error) {
	raw, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", configPath, err)
	}
	raw, err = expandEnvVars(raw)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", configPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", configPath, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// GetEnv returns $ENV, or "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	def := domain.DefaultPipelineConfig()

	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 32
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "audiosearch:"
	}
	if c.Index.Algorithm == "" {
		c.Index.Algorithm = "hnsw"
	}
	if c.Index.Distance == "" {
		c.Index.Distance = def.Metric
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Index.TopK <= 0 {
		c.Index.TopK = def.TopK
	}
	if c.Index.MaxBatchSize <= 0 {
		c.Index.MaxBatchSize = 100
	}
	if c.Index.Workers <= 0 {
		c.Index.Workers = 4
	}
	if c.Segmenter.ChunkDuration == 0 {
		c.Segmenter.ChunkDuration = def.ChunkDuration
	}
	if c.Segmenter.ChunkStride == 0 {
		c.Segmenter.ChunkStride = def.ChunkStride
	}
	if c.Segmenter.Workers <= 0 {
		c.Segmenter.Workers = 4
	}
	if c.Ranker.Metric == "" {
		c.Ranker.Metric = strings.ToLower(c.Index.Distance)
	}
	if c.Ranker.Ranking == "" {
		c.Ranker.Ranking = def.Ranking
	}
	if c.Ranker.Traversal == "" {
		c.Ranker.Traversal = string(traversal.Root)
	}
	if c.Ranker.Workers <= 0 {
		c.Ranker.Workers = 4
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "logmel"
	}
	if c.Embedding.NumMels <= 0 {
		c.Embedding.NumMels = 40
	}
	if c.Embedding.WindowMs <= 0 {
		c.Embedding.WindowMs = 25
	}
	if c.Embedding.HopMs <= 0 {
		c.Embedding.HopMs = 10
	}
	if c.Embedding.LowFreq <= 0 {
		c.Embedding.LowFreq = 20
	}
	if c.Embedding.PreEmphasis == nil {
		p := 0.97
		c.Embedding.PreEmphasis = &p
	}
	if c.Embedding.Cache.TTLSec <= 0 {
		c.Embedding.Cache.TTLSec = 86400
	}
	if c.Decoder.SampleRate <= 0 {
		c.Decoder.SampleRate = def.TargetSampleRate
	}
	if c.Sources.HTTPTimeoutSec <= 0 {
		c.Sources.HTTPTimeoutSec = 30
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Database.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	if _, err := db.ParseAlgorithm(c.Index.Algorithm); err != nil {
		return fmt.Errorf("index.algorithm: %w", err)
	}
	if _, err := db.ParseDistance(c.Index.Distance); err != nil {
		return fmt.Errorf("index.distance: %w", err)
	}
	if c.Segmenter.ChunkDuration <= 0 {
		return fmt.Errorf("segmenter.chunk_duration must be positive, got %v", c.Segmenter.ChunkDuration)
	}
	if c.Segmenter.ChunkStride <= 0 {
		return fmt.Errorf("segmenter.chunk_stride must be positive, got %v", c.Segmenter.ChunkStride)
	}
	if _, err := ranking.Parse(c.Ranker.Ranking); err != nil {
		return fmt.Errorf("ranker.ranking: %w", err)
	}
	if _, err := traversal.ParsePath(c.Ranker.Traversal); err != nil {
		return fmt.Errorf("ranker.traversal_paths: %w", err)
	}
	if c.Sources.Minio.Enabled && c.Sources.Minio.Endpoint == "" {
		return fmt.Errorf("sources.minio.endpoint is required when minio is enabled")
	}
	return nil
}

// findConfigPath looks in ./config first, then in the config directory
// next to this module's sources, which lets tests run from any package.
func findConfigPath(env string) string {
	name := env + ".yaml"
	candidates := []string{filepath.Join("config", name)}
	if _, file, _, ok := runtime.Caller(0); ok {
		root := filepath.Join(filepath.Dir(file), "..", "..")
		candidates = append(candidates, filepath.Join(root, "config", name))
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return c
		}
	}
	return candidates[0]
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?:(:-|:\?)([^}]*))?\}`)

// expandEnvVars substitutes ${VAR}, ${VAR:-default} and ${VAR:?message}.
// The last form fails when VAR is unset or empty.
func expandEnvVars(data []byte) ([]byte, error) {
	var missing []string
	out := envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		m := envRef.FindSubmatch(ref)
		name, op, arg := string(m[1]), string(m[2]), string(m[3])
		if v := os.Getenv(name); v != "" {
			return []byte(v)
		}
		switch op {
		case ":-":
			return []byte(arg)
		case ":?":
			msg := name
			if arg != "" {
				msg += ": " + arg
			}
			missing = append(missing, msg)
		}
		return nil
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, "; "))
	}
	return out, nil
}
