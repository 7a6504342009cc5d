// Package pipeline wires configuration, lookup tables and the batch stream together.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ZanzyTHEbar/qa-batcher/qab/batcher"
	"github.com/ZanzyTHEbar/qa-batcher/qab/common"
	"github.com/ZanzyTHEbar/qa-batcher/qab/config"
	"github.com/ZanzyTHEbar/qa-batcher/qab/vocab"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// New validates cfg, loads the lookup tables and opens a stream over the configured
// inputs. The caller must Close the returned stream.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*batcher.Stream, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config: %w", common.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tables, err := LoadTables(ctx, cfg.Data, logger)
	if err != nil {
		return nil, err
	}

	mode := batcher.Mode(cfg.Batch.Mode)
	return batcher.Open(ctx, cfg.Data.Paths(mode), tables, cfg.Batch.ToOptions(logger))
}

// FromFile loads the configuration at configPath (or the default search path when
// empty) and opens a stream logging to w at the configured level.
func FromFile(ctx context.Context, configPath string, w io.Writer) (*batcher.Stream, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, cfg.Log.NewLogger(w))
}

// LoadTables reads the vocabulary and the charset concurrently. An empty CharsFile
// selects vocab.DefaultCharset.
func LoadTables(ctx context.Context, data config.DataConfig, logger zerolog.Logger) (batcher.Tables, error) {
	start := time.Now()
	eu := common.NewErrorUtils()

	var (
		words *vocab.Vocab
		chars *vocab.Charset
	)

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(context.Context) error {
		v, err := vocab.LoadVocab(data.VocabFile)
		if err != nil {
			return eu.LogAndWrapError(logger, err, zerolog.ErrorLevel, "load vocabulary")
		}
		if v.Size() <= 2 {
			return fmt.Errorf("%s holds no words: %w", data.VocabFile, common.ErrInvalidVocab)
		}
		words = v
		return nil
	})
	p.Go(func(context.Context) error {
		if data.CharsFile == "" {
			chars = vocab.DefaultCharset()
			return nil
		}
		cs, err := vocab.LoadCharset(data.CharsFile)
		if err != nil {
			return eu.LogAndWrapError(logger, err, zerolog.ErrorLevel, "load charset")
		}
		chars = cs
		return nil
	})
	if err := p.Wait(); err != nil {
		return batcher.Tables{}, err
	}

	logger.Info().
		Int("words", words.Size()).
		Int("chars", chars.Size()).
		Dur("took", time.Since(start)).
		Msg("Loaded lookup tables")

	return batcher.Tables{Words: words, Chars: chars}, nil
}
