package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid port", func(c *Config) { c.HTTP.Port = 0 }},
		{"missing addrs", func(c *Config) { c.Database.Addrs = nil }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "memcached" }},
		{"unknown algorithm", func(c *Config) { c.Index.Algorithm = "ivf" }},
		{"unknown distance", func(c *Config) { c.Index.Distance = "manhattan" }},
		{"negative duration", func(c *Config) { c.Segmenter.ChunkDuration = -1 }},
		{"negative stride", func(c *Config) { c.Segmenter.ChunkStride = -0.5 }},
		{"unknown ranking", func(c *Config) { c.Ranker.Ranking = "avg" }},
		{"unknown traversal", func(c *Config) { c.Ranker.Traversal = "m" }},
		{"minio without endpoint", func(c *Config) { c.Sources.Minio.Enabled = true }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.Driver != "valkey" {
		t.Errorf("expected Driver=valkey, got %q", cfg.Database.Driver)
	}
	if cfg.Storage.KeyPrefix != "audiosearch:" {
		t.Errorf("expected KeyPrefix='audiosearch:', got %q", cfg.Storage.KeyPrefix)
	}
	if cfg.Segmenter.ChunkDuration != 1 || cfg.Segmenter.ChunkStride != 1 {
		t.Errorf("expected 1s windows, got %+v", cfg.Segmenter)
	}
	if cfg.Ranker.Metric != "cosine" || cfg.Ranker.Ranking != "min" || cfg.Ranker.Traversal != "r" {
		t.Errorf("unexpected ranker defaults: %+v", cfg.Ranker)
	}
	if cfg.Decoder.SampleRate != 16000 {
		t.Errorf("expected SampleRate=16000, got %d", cfg.Decoder.SampleRate)
	}
	if cfg.Index.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Index.TopK)
	}
	if cfg.Embedding.PreEmphasis == nil || *cfg.Embedding.PreEmphasis != 0.97 {
		t.Errorf("expected PreEmphasis=0.97")
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	zero := 0.0
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 5, WriteTimeoutSec: 6, ShutdownSec: 7},
		Index:     IndexConfig{Distance: "L2", HNSWM: 8, TopK: 3},
		Segmenter: SegmenterConfig{ChunkDuration: 2, ChunkStride: 0.5},
		Embedding: EmbeddingConfig{PreEmphasis: &zero},
		Storage:   StorageConfig{KeyPrefix: "custom:"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 5 || cfg.HTTP.WriteTimeoutSec != 6 {
		t.Errorf("timeouts overridden: %+v", cfg.HTTP)
	}
	if cfg.Index.HNSWM != 8 || cfg.Index.TopK != 3 {
		t.Errorf("index overridden: %+v", cfg.Index)
	}
	if cfg.Ranker.Metric != "l2" {
		t.Errorf("ranker metric should follow index distance, got %q", cfg.Ranker.Metric)
	}
	if cfg.Segmenter.ChunkStride != 0.5 {
		t.Errorf("stride overridden: %v", cfg.Segmenter.ChunkStride)
	}
	if *cfg.Embedding.PreEmphasis != 0 {
		t.Errorf("explicit zero pre_emphasis overridden")
	}
	if cfg.Storage.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Storage.KeyPrefix)
	}
}

func TestLoadFile_ExpandsEnv(t *testing.T) {
	t.Setenv("AS_TEST_PORT", "9090")
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	yml := `
http:
  port: ${AS_TEST_PORT}
database:
  addrs: ["${AS_TEST_ADDR:-localhost:6379}"]
segmenter:
  chunk_duration: 2.0
  chunk_stride: 0.5
ranker:
  ranking: max
index:
  seed_glob: "toy-data/*.mp3"
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d", cfg.HTTP.Port)
	}
	if cfg.Database.Addrs[0] != "localhost:6379" {
		t.Errorf("addrs = %v", cfg.Database.Addrs)
	}
	if cfg.Segmenter.ChunkDuration != 2 || cfg.Segmenter.ChunkStride != 0.5 {
		t.Errorf("segmenter = %+v", cfg.Segmenter)
	}
	if cfg.Ranker.Ranking != "max" {
		t.Errorf("ranking = %q", cfg.Ranker.Ranking)
	}
	if cfg.Index.SeedGlob != "toy-data/*.mp3" {
		t.Errorf("seed_glob = %q", cfg.Index.SeedGlob)
	}
}

func TestLoadFile_InvalidRanking(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	yml := "http:\n  port: 8080\ndatabase:\n  addrs: [\"localhost:6379\"]\nranker:\n  ranking: avg\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for unknown ranking")
	}
}

func TestLoad_LocalConfig(t *testing.T) {
	cfg, err := Load("local")
	if err != nil {
		t.Fatalf("Load(local): %v", err)
	}
	if cfg.HTTP.Port == 0 || len(cfg.Database.Addrs) == 0 {
		t.Errorf("local config incomplete: %+v", cfg)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("AS_SET", "value")
	got, err := expandEnvVars([]byte("a=${AS_SET} b=${AS_UNSET_XYZ:-fallback} c=${AS_UNSET_XYZ} d=${AS_SET:?unused}"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "a=value b=fallback c= d=value" {
		t.Errorf("expandEnvVars = %q", got)
	}
}

func TestExpandEnvVars_Required(t *testing.T) {
	_, err := expandEnvVars([]byte("password: ${AS_UNSET_SECRET:?set the valkey password}"))
	if err == nil {
		t.Fatal("expected error for missing required variable")
	}
	if !strings.Contains(err.Error(), "AS_UNSET_SECRET: set the valkey password") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_ConfigPathOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.yaml")
	yml := "http:\n  port: 7070\ndatabase:\n  addrs: [\"db:6379\"]\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnv, path)

	cfg, err := Load("does-not-exist")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 7070 || cfg.Database.Addrs[0] != "db:6379" {
		t.Errorf("override not used: %+v", cfg.HTTP)
	}
}
