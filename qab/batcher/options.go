package batcher

import (
	"fmt"
	"math/rand/v2"

	"github.com/ZanzyTHEbar/qa-batcher/qab/common"

	"github.com/rs/zerolog"
)

// Mode selects what the third input stream holds.
type Mode string

const (
	// ModeTrain reads "start end" answer spans and applies the discard/truncate policy.
	ModeTrain Mode = "train"
	// ModeEval reads one external uuid per line; spans are not read and long
	// examples are always truncated so every uuid gets a row.
	ModeEval Mode = "eval"
)

// DefaultRefillBatches bounds a refill to this many batches worth of examples.
const DefaultRefillBatches = 160

// Options configures a batch stream.
type Options struct {
	BatchSize   int
	ContextLen  int
	QuestionLen int
	WordLen     int
	DiscardLong bool

	// RefillBatches caps one refill at RefillBatches*BatchSize examples.
	RefillBatches int
	Mode          Mode

	// Prefetch > 0 runs one producer goroutine that keeps up to Prefetch
	// finalized batches ready ahead of the consumer.
	Prefetch int

	// Rand shuffles batch order. Nil means a randomly seeded source.
	Rand   *rand.Rand
	Logger zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.RefillBatches <= 0 {
		o.RefillBatches = DefaultRefillBatches
	}
	if o.Mode == "" {
		o.Mode = ModeTrain
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return o
}

func (o Options) validate() error {
	vu := common.NewValidationUtils()
	for _, f := range []struct {
		name  string
		value int
	}{
		{"batch size", o.BatchSize},
		{"context length", o.ContextLen},
		{"question length", o.QuestionLen},
		{"word length", o.WordLen},
	} {
		if err := vu.ValidatePositive(f.value, f.name); err != nil {
			return err
		}
	}
	if o.Prefetch < 0 {
		return fmt.Errorf("prefetch must be >= 0, got %d: %w", o.Prefetch, common.ErrInvalidConfig)
	}
	switch o.Mode {
	case ModeTrain, ModeEval:
	default:
		return fmt.Errorf("unknown mode %q: %w", o.Mode, common.ErrInvalidConfig)
	}
	return nil
}

// refillLimit is the most examples read per refill.
func (o Options) refillLimit() int {
	return o.RefillBatches * o.BatchSize
}
