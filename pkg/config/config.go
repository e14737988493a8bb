package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig collects the top-level settings for one training run.
type AppConfig struct {
	// Model — network architecture hyperparameters.
	Model ModelConfig `json:"model" yaml:"model"`

	// Data — dataset location and batching behavior.
	Data DataConfig `json:"data" yaml:"data"`

	// Training — optimizer and schedule parameters.
	Training TrainingConfig `json:"training" yaml:"training"`

	// Checkpoint path (where to save/load model state).
	Checkpoint string `json:"checkpoint" yaml:"checkpoint"`
}

// ModelConfig describes one network built from the layer catalog.
// Architecture selects which fields apply: "transformer" and "moe" read
// DModel/NumHeads/NumLayers/DHidden (and NumExperts/TopK for "moe"); "rnn"
// reads RNNKind/RNNHiddenSize instead.
type ModelConfig struct {
	// Name — human-readable model identifier, e.g. "char-transformer".
	Name string `json:"name" yaml:"name"`

	// Architecture selects the top-level model family.
	Architecture string `json:"architecture" yaml:"architecture"`

	// VocabSize/MaxSeqLen size the embedding table and positional encoding.
	VocabSize int `json:"vocab_size" yaml:"vocab_size"`
	MaxSeqLen int `json:"max_seq_len" yaml:"max_seq_len"`

	// DModel/NumHeads/NumLayers/DHidden configure transformer and MoE blocks.
	DModel    int `json:"d_model" yaml:"d_model"`
	NumHeads  int `json:"num_heads" yaml:"num_heads"`
	NumLayers int `json:"num_layers" yaml:"num_layers"`
	DHidden   int `json:"d_hidden" yaml:"d_hidden"`

	// NumExperts/TopK configure MoE routing; ignored otherwise.
	NumExperts int `json:"num_experts" yaml:"num_experts"`
	TopK       int `json:"top_k" yaml:"top_k"`

	// RNNKind selects "simple", "lstm" or "gru"; RNNHiddenSize its width.
	RNNKind       string `json:"rnn_kind" yaml:"rnn_kind"`
	RNNHiddenSize int    `json:"rnn_hidden_size" yaml:"rnn_hidden_size"`

	// NormPlacement selects "pre" or "post" LayerNorm placement.
	NormPlacement string `json:"norm_placement" yaml:"norm_placement"`

	// Dropout applied within attention/feed-forward/RNN sublayers.
	Dropout float64 `json:"dropout" yaml:"dropout"`
}

// DataConfig describes where to read training data from and how to batch it.
type DataConfig struct {
	// Path to the dataset (file or directory).
	Path string `json:"path" yaml:"path"`

	// BatchSize.
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Shuffle toggles shuffling between epochs.
	Shuffle bool `json:"shuffle" yaml:"shuffle"`

	// DropLast discards an incomplete trailing batch.
	DropLast bool `json:"drop_last" yaml:"drop_last"`

	// Seed for shuffling / reproducibility.
	Seed int64 `json:"seed" yaml:"seed"`
}

// TrainingConfig holds optimizer and schedule settings.
type TrainingConfig struct {
	LR     float64 `json:"lr" yaml:"lr"`
	Epochs int     `json:"epochs" yaml:"epochs"`
	Batch  int     `json:"batch" yaml:"batch"`
	Seed   int64   `json:"seed" yaml:"seed"`

	// Optimizer selects "sgd" or "adam".
	Optimizer string `json:"optimizer" yaml:"optimizer"`

	// Loss/Metric select the training objective and reported metric.
	Loss   string `json:"loss" yaml:"loss"`     // "mse" | "cross_entropy"
	Metric string `json:"metric" yaml:"metric"` // "mae" | "accuracy"

	// AuxLossWeight scales a MoE load-balance loss into the total loss.
	AuxLossWeight float64 `json:"aux_loss_weight" yaml:"aux_loss_weight"`

	// BPTTTruncateLength caps backprop-through-time depth for RNN
	// architectures; 0 means untruncated.
	BPTTTruncateLength int `json:"bptt_truncate_length" yaml:"bptt_truncate_length"`
}

// DefaultAppConfig returns a configuration with safe, small defaults.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Model: ModelConfig{
			Name:          "tiny-transformer",
			Architecture:  "transformer",
			VocabSize:     256,
			MaxSeqLen:     128,
			DModel:        64,
			NumHeads:      4,
			NumLayers:     2,
			DHidden:       256,
			NumExperts:    4,
			TopK:          2,
			RNNKind:       "lstm",
			RNNHiddenSize: 64,
			NormPlacement: "pre",
			Dropout:       0.1,
		},
		Data: DataConfig{
			Path:      "./data",
			BatchSize: 32,
			Shuffle:   true,
			DropLast:  false,
			Seed:      42,
		},
		Training: TrainingConfig{
			LR:                 0.001,
			Epochs:             10,
			Batch:              32,
			Seed:               42,
			Optimizer:          "adam",
			Loss:               "cross_entropy",
			Metric:             "accuracy",
			AuxLossWeight:      0.01,
			BPTTTruncateLength: 0,
		},
		Checkpoint: "./checkpoints/model.ckpt",
	}
}

// LoadConfig reads a config file at path and unmarshals it into out.
// JSON (.json) and YAML (.yaml, .yml) are supported; an unrecognized
// extension tries JSON first, then YAML.
func LoadConfig(path string, out interface{}) error {
	if path == "" {
		return errors.New("LoadConfig: empty path")
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("LoadConfig: read file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(bs, out); err != nil {
			return fmt.Errorf("LoadConfig: json unmarshal: %w", err)
		}
		return nil
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(bs, out); err != nil {
			return fmt.Errorf("LoadConfig: yaml unmarshal: %w", err)
		}
		return nil
	default:
		if err := json.Unmarshal(bs, out); err == nil {
			return nil
		}
		if err := yaml.Unmarshal(bs, out); err == nil {
			return nil
		}
		return fmt.Errorf("LoadConfig: unsupported format and parsing failed (json/yaml tried)")
	}
}

// LoadAppConfig loads an AppConfig from path (or defaults if path is
// empty), then applies environment overrides and validates the result.
func LoadAppConfig(path string) (AppConfig, error) {
	cfg := DefaultAppConfig()

	if path == "" {
		applyEnvOverrides(&cfg)
		if err := cfg.Validate(); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	if err := LoadConfig(path, &cfg); err != nil {
		return cfg, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate performs basic sanity checks on the configuration.
func (c *AppConfig) Validate() error {
	switch c.Model.Architecture {
	case "transformer", "moe":
		if c.Model.DModel <= 0 {
			return errors.New("Model.DModel must be > 0")
		}
		if c.Model.NumHeads <= 0 || c.Model.DModel%c.Model.NumHeads != 0 {
			return errors.New("Model.NumHeads must divide Model.DModel")
		}
		if c.Model.Architecture == "moe" {
			if c.Model.NumExperts <= 0 {
				return errors.New("Model.NumExperts must be > 0")
			}
			if c.Model.TopK <= 0 || c.Model.TopK > c.Model.NumExperts {
				return errors.New("Model.TopK must be in [1, NumExperts]")
			}
		}
	case "rnn":
		if c.Model.RNNHiddenSize <= 0 {
			return errors.New("Model.RNNHiddenSize must be > 0")
		}
		switch c.Model.RNNKind {
		case "simple", "lstm", "gru":
		default:
			return fmt.Errorf("unsupported model.rnn_kind: %s", c.Model.RNNKind)
		}
	default:
		return fmt.Errorf("unsupported model.architecture: %s", c.Model.Architecture)
	}

	switch c.Model.NormPlacement {
	case "pre", "post":
	default:
		return fmt.Errorf("unsupported model.norm_placement: %s", c.Model.NormPlacement)
	}

	if c.Data.BatchSize <= 0 {
		if c.Training.Batch > 0 {
			c.Data.BatchSize = c.Training.Batch
		} else {
			return errors.New("Data.BatchSize must be > 0")
		}
	}
	if c.Training.Epochs <= 0 {
		return errors.New("Training.Epochs must be > 0")
	}
	if c.Training.LR <= 0 {
		return errors.New("Training.LR must be > 0")
	}
	if strings.TrimSpace(c.Data.Path) == "" {
		return errors.New("Data.Path must be set")
	}

	switch c.Training.Optimizer {
	case "sgd", "adam":
	default:
		return fmt.Errorf("unsupported training.optimizer: %s", c.Training.Optimizer)
	}

	switch c.Training.Loss {
	case "mse", "cross_entropy":
	default:
		return fmt.Errorf("unsupported training.loss: %s", c.Training.Loss)
	}

	switch c.Training.Metric {
	case "mae", "accuracy":
	default:
		return fmt.Errorf("unsupported training.metric: %s", c.Training.Metric)
	}

	if c.Training.Seed == 0 && c.Data.Seed != 0 {
		c.Training.Seed = c.Data.Seed
	}

	return nil
}

// applyEnvOverrides lets a handful of environment variables override
// config-file values, useful for quick experiments without editing YAML.
//
//	TINYAI_CHECKPOINT, TINYAI_LR, TINYAI_EPOCHS, TINYAI_BATCH,
//	TINYAI_DATA_PATH, TINYAI_SEED, TINYAI_LOSS, TINYAI_METRIC,
//	TINYAI_OPTIMIZER, TINYAI_DROP_LAST
func applyEnvOverrides(c *AppConfig) {
	if v := os.Getenv("TINYAI_CHECKPOINT"); v != "" {
		c.Checkpoint = v
	}
	if v := os.Getenv("TINYAI_DATA_PATH"); v != "" {
		c.Data.Path = v
	}
	if v := os.Getenv("TINYAI_LR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Training.LR = f
		}
	}
	if v := os.Getenv("TINYAI_EPOCHS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			c.Training.Epochs = i
		}
	}
	if v := os.Getenv("TINYAI_BATCH"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			c.Training.Batch = i
			c.Data.BatchSize = i
		}
	}
	if v := os.Getenv("TINYAI_SEED"); v != "" {
		if s, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Training.Seed = s
			c.Data.Seed = s
		}
	}
	if v := os.Getenv("TINYAI_LOSS"); v != "" {
		c.Training.Loss = v
	}
	if v := os.Getenv("TINYAI_METRIC"); v != "" {
		c.Training.Metric = v
	}
	if v := os.Getenv("TINYAI_OPTIMIZER"); v != "" {
		c.Training.Optimizer = v
	}
	if v := os.Getenv("TINYAI_DROP_LAST"); v != "" {
		l := strings.ToLower(strings.TrimSpace(v))
		if l == "1" || l == "true" || l == "yes" {
			c.Data.DropLast = true
		} else if l == "0" || l == "false" || l == "no" {
			c.Data.DropLast = false
		}
	}
}
