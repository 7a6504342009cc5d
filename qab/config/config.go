package config

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/qa-batcher/qab"
	"github.com/ZanzyTHEbar/qa-batcher/qab/batcher"
	"github.com/ZanzyTHEbar/qa-batcher/qab/common"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Batch BatchConfig `mapstructure:"batch"`
	Data  DataConfig  `mapstructure:"data"`
	Log   LogConfig   `mapstructure:"log"`
}

// BatchConfig stores the batching parameters of a stream.
type BatchConfig struct {
	Size          int    `mapstructure:"size"`
	ContextLen    int    `mapstructure:"contextLen"`
	QuestionLen   int    `mapstructure:"questionLen"`
	WordLen       int    `mapstructure:"wordLen"`
	DiscardLong   bool   `mapstructure:"discardLong"`
	RefillBatches int    `mapstructure:"refillBatches"`
	Seed          uint64 `mapstructure:"seed"` // 0 seeds randomly
	Prefetch      int    `mapstructure:"prefetch"`
	Mode          string `mapstructure:"mode"`
}

// DataConfig stores the input file locations.
type DataConfig struct {
	VocabFile    string `mapstructure:"vocabFile"`
	CharsFile    string `mapstructure:"charsFile"` // empty uses the built-in charset
	ContextFile  string `mapstructure:"contextFile"`
	QuestionFile string `mapstructure:"questionFile"`
	AnswerFile   string `mapstructure:"answerFile"`
	UUIDFile     string `mapstructure:"uuidFile"`
}

// LogConfig stores logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// NewLogger builds the application logger at the configured level.
func (l LogConfig) NewLogger(w io.Writer) zerolog.Logger {
	return internal.NewLogger(w, l.Level)
}

// LoadConfig reads configuration from file or environment variables.
// Environment variables use the QAB_ prefix, e.g. QAB_BATCH_SIZE.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("..")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetDefault("batch.size", 100)
	v.SetDefault("batch.contextLen", 600)
	v.SetDefault("batch.questionLen", 30)
	v.SetDefault("batch.wordLen", 16)
	v.SetDefault("batch.discardLong", false)
	v.SetDefault("batch.refillBatches", internal.DefaultRefillBatch)
	v.SetDefault("batch.seed", 0)
	v.SetDefault("batch.prefetch", 0)
	v.SetDefault("batch.mode", string(batcher.ModeTrain))

	// Empty defaults register the keys so env overrides reach Unmarshal.
	for _, key := range []string{"vocabFile", "charsFile", "contextFile", "questionFile", "answerFile", "uuidFile"} {
		v.SetDefault("data."+key, "")
	}
	v.SetDefault("log.level", internal.DefaultLogLevel)

	v.SetEnvPrefix(internal.DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return &cfg, nil
}

// Validate checks the batching parameters, log level and the input files the
// configured mode needs.
func (c *Config) Validate() error {
	if err := c.Batch.Validate(); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level %q: %w", c.Log.Level, common.ErrInvalidConfig)
	}
	return c.Data.Validate(batcher.Mode(c.Batch.Mode))
}

// Validate checks the batching parameters.
func (b *BatchConfig) Validate() error {
	vu := common.NewValidationUtils()
	for _, f := range []struct {
		name  string
		value int
	}{
		{"batch.size", b.Size},
		{"batch.contextLen", b.ContextLen},
		{"batch.questionLen", b.QuestionLen},
		{"batch.wordLen", b.WordLen},
		{"batch.refillBatches", b.RefillBatches},
	} {
		if err := vu.ValidatePositive(f.value, f.name); err != nil {
			return err
		}
	}
	if b.Prefetch < 0 {
		return fmt.Errorf("batch.prefetch must be >= 0, got %d: %w", b.Prefetch, common.ErrInvalidConfig)
	}
	switch batcher.Mode(b.Mode) {
	case batcher.ModeTrain, batcher.ModeEval:
		return nil
	default:
		return fmt.Errorf("batch.mode %q: %w", b.Mode, common.ErrInvalidConfig)
	}
}

// Validate checks that the files needed in mode are named and exist. An optional
// charset file is checked only when set.
func (d *DataConfig) Validate(mode batcher.Mode) error {
	vu := common.NewValidationUtils()
	eu := common.NewErrorUtils()
	required := map[string]string{
		"data.vocabFile":    d.VocabFile,
		"data.contextFile":  d.ContextFile,
		"data.questionFile": d.QuestionFile,
	}
	if mode == batcher.ModeEval {
		required["data.uuidFile"] = d.UUIDFile
	} else {
		required["data.answerFile"] = d.AnswerFile
	}
	order := []string{"data.vocabFile", "data.contextFile", "data.questionFile", "data.answerFile", "data.uuidFile"}
	for _, name := range order {
		value, ok := required[name]
		if !ok {
			continue
		}
		if err := vu.ValidateRequiredString(value, name); err != nil {
			return err
		}
	}
	if d.CharsFile != "" {
		required["data.charsFile"] = d.CharsFile
		order = append(order, "data.charsFile")
	}
	for _, name := range order {
		path, ok := required[name]
		if !ok {
			continue
		}
		if err := vu.ValidateFileExists(path); err != nil {
			return eu.WrapError(err, "%s", name)
		}
	}
	return nil
}

// Paths returns the stream inputs for mode: spans in train mode, uuids in eval.
func (d *DataConfig) Paths(mode batcher.Mode) batcher.Paths {
	p := batcher.Paths{Context: d.ContextFile, Question: d.QuestionFile, Answer: d.AnswerFile}
	if mode == batcher.ModeEval {
		p.Answer = d.UUIDFile
	}
	return p
}

// ToOptions converts the batching parameters to stream options.
func (b *BatchConfig) ToOptions(logger zerolog.Logger) batcher.Options {
	opts := batcher.Options{
		BatchSize:     b.Size,
		ContextLen:    b.ContextLen,
		QuestionLen:   b.QuestionLen,
		WordLen:       b.WordLen,
		DiscardLong:   b.DiscardLong,
		RefillBatches: b.RefillBatches,
		Mode:          batcher.Mode(b.Mode),
		Prefetch:      b.Prefetch,
		Logger:        logger,
	}
	if b.Seed != 0 {
		opts.Rand = rand.New(rand.NewPCG(b.Seed, 0))
	}
	return opts
}
