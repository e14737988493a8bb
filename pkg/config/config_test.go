package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	content := `
model:
  name: "test-transformer"
  architecture: "transformer"
  vocab_size: 64
  max_seq_len: 32
  d_model: 16
  num_heads: 4
  num_layers: 2
  d_hidden: 32
  norm_placement: "pre"
  dropout: 0.0
data:
  path: "./data/test"
  batch_size: 8
  shuffle: false
  drop_last: true
  seed: 7
training:
  lr: 0.05
  epochs: 3
  batch: 8
  seed: 7
  optimizer: "sgd"
  loss: "cross_entropy"
  metric: "accuracy"
checkpoint: "./ckpt/test.ckpt"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadAppConfig(path)
	if err != nil {
		t.Fatalf("LoadAppConfig failed: %v", err)
	}
	if cfg.Model.Name != "test-transformer" {
		t.Fatalf("model.name mismatch: %v", cfg.Model.Name)
	}
	if cfg.Model.DModel != 16 || cfg.Model.NumHeads != 4 {
		t.Fatalf("model.d_model/num_heads mismatch: %+v", cfg.Model)
	}
	if cfg.Data.BatchSize != 8 {
		t.Fatalf("data.batch_size mismatch: %v", cfg.Data.BatchSize)
	}
	if cfg.Data.DropLast != true {
		t.Fatalf("data.drop_last mismatch: %v", cfg.Data.DropLast)
	}
	if cfg.Data.Seed != 7 {
		t.Fatalf("data.seed mismatch: %v", cfg.Data.Seed)
	}
	if cfg.Training.LR != 0.05 {
		t.Fatalf("training.lr mismatch: %v", cfg.Training.LR)
	}
	if cfg.Training.Optimizer != "sgd" {
		t.Fatalf("training.optimizer mismatch: %v", cfg.Training.Optimizer)
	}
	if cfg.Training.Loss != "cross_entropy" {
		t.Fatalf("training.loss mismatch: %v", cfg.Training.Loss)
	}
	if cfg.Training.Metric != "accuracy" {
		t.Fatalf("training.metric mismatch: %v", cfg.Training.Metric)
	}
	if cfg.Checkpoint != "./ckpt/test.ckpt" {
		t.Fatalf("checkpoint mismatch: %v", cfg.Checkpoint)
	}
}

func TestLoadAppConfig_DefaultsAndEnv(t *testing.T) {
	os.Setenv("TINYAI_LR", "0.123")
	os.Setenv("TINYAI_EPOCHS", "2")
	os.Setenv("TINYAI_BATCH", "16")
	os.Setenv("TINYAI_LOSS", "mse")
	os.Setenv("TINYAI_METRIC", "mae")
	os.Setenv("TINYAI_SEED", "99")
	defer func() {
		os.Unsetenv("TINYAI_LR")
		os.Unsetenv("TINYAI_EPOCHS")
		os.Unsetenv("TINYAI_BATCH")
		os.Unsetenv("TINYAI_LOSS")
		os.Unsetenv("TINYAI_METRIC")
		os.Unsetenv("TINYAI_SEED")
	}()

	cfg, err := LoadAppConfig("")
	if err != nil {
		t.Fatalf("LoadAppConfig(default) failed: %v", err)
	}
	if cfg.Training.LR != 0.123 {
		t.Fatalf("env override lr failed: %v", cfg.Training.LR)
	}
	if cfg.Training.Epochs != 2 {
		t.Fatalf("env override epochs failed: %v", cfg.Training.Epochs)
	}
	if cfg.Data.BatchSize != 16 {
		t.Fatalf("env override batch failed: %v", cfg.Data.BatchSize)
	}
	if cfg.Training.Loss != "mse" {
		t.Fatalf("env override loss failed: %v", cfg.Training.Loss)
	}
	if cfg.Training.Metric != "mae" {
		t.Fatalf("env override metric failed: %v", cfg.Training.Metric)
	}
	if cfg.Training.Seed != 99 {
		t.Fatalf("env override seed failed: %v", cfg.Training.Seed)
	}
}

func TestValidateRejectsMismatchedHeadsAndDModel(t *testing.T) {
	cfg := DefaultAppConfig()
	cfg.Model.NumHeads = 3 // DModel=64 is not divisible by 3
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for non-divisible heads")
	}
}

func TestValidateRejectsUnsupportedArchitecture(t *testing.T) {
	cfg := DefaultAppConfig()
	cfg.Model.Architecture = "convnet-v9"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unsupported architecture")
	}
}
