package batcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/qa-batcher/qab/common"
	"github.com/ZanzyTHEbar/qa-batcher/qab/tokenizer"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

// Paths names the three line-aligned input files of a stream.
type Paths struct {
	Context  string
	Question string
	Answer   string // spans in train mode, uuids in eval mode
}

// Stream lazily produces padded batches from three aligned inputs.
//
// Next pulls one batch at a time. When the internal buffer is empty it is refilled
// with up to RefillBatches*BatchSize examples, bucketed by question length and
// shuffled. A Stream has a single consumer and cannot be restarted; once exhausted
// every call to Next returns io.EOF.
type Stream struct {
	id     uuid.UUID
	opts   Options
	tables Tables
	asm    *Assembler
	log    zerolog.Logger

	buf     [][]Example
	err     error // sticky terminal error, io.EOF included
	closed  bool
	metrics *common.RefillMetrics

	closers   []io.Closer
	closeOnce sync.Once
	closeErr  error

	// prefetch mode only
	out     chan *Batch
	prodErr error // written by the producer before out is closed
	cancel  context.CancelFunc
	wg      conc.WaitGroup
}

// NewStream builds a stream over src. The caller keeps ownership of the readers.
//
// With Prefetch > 0 the producer checks for cancellation between examples only, so a
// reader that blocks (a pipe, a slow network file) holds up Close until its current
// read returns.
func NewStream(ctx context.Context, src Sources, tables Tables, opts Options) (*Stream, error) {
	return newStream(ctx, src, tables, opts, nil)
}

// Open opens the three files and builds a stream that owns them. The files are
// closed when the stream is exhausted, fails, or is closed; if any file cannot be
// opened the ones already opened are closed before returning.
func Open(ctx context.Context, paths Paths, tables Tables, opts Options) (*Stream, error) {
	eu := common.NewErrorUtils()
	vu := common.NewValidationUtils()

	files := make([]*os.File, 0, 3)
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	for _, p := range []string{paths.Context, paths.Question, paths.Answer} {
		if err := vu.ValidateFileExists(p); err != nil {
			closeAll()
			return nil, eu.LogAndWrapError(opts.Logger, err, zerolog.ErrorLevel, "check input")
		}
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, eu.LogAndWrapError(opts.Logger, err, zerolog.ErrorLevel, "open input %s", p)
		}
		files = append(files, f)
	}

	src := Sources{Context: files[0], Question: files[1], Answer: files[2]}
	s, err := newStream(ctx, src, tables, opts, []io.Closer{files[0], files[1], files[2]})
	if err != nil {
		closeAll()
		return nil, err
	}
	return s, nil
}

func newStream(ctx context.Context, src Sources, tables Tables, opts Options, closers []io.Closer) (*Stream, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := src.validate(); err != nil {
		return nil, err
	}
	if tables.Words == nil || tables.Chars == nil {
		return nil, fmt.Errorf("word and char tables are required: %w", common.ErrInvalidConfig)
	}

	id := uuid.New()
	opts.Logger = opts.Logger.With().Str("stream", id.String()).Logger()

	s := &Stream{
		id:      id,
		opts:    opts,
		tables:  tables,
		asm:     NewAssembler(src, tokenizer.NewWhitespace(tables.Words), opts),
		log:     opts.Logger,
		metrics: &common.RefillMetrics{},
		closers: closers,
	}

	s.log.Debug().
		Str("mode", string(opts.Mode)).
		Int("batch_size", opts.BatchSize).
		Int("context_len", opts.ContextLen).
		Int("question_len", opts.QuestionLen).
		Int("word_len", opts.WordLen).
		Bool("discard_long", opts.DiscardLong).
		Int("prefetch", opts.Prefetch).
		Msg("Opened batch stream")

	if opts.Prefetch > 0 {
		pctx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.out = make(chan *Batch, opts.Prefetch)
		s.wg.Go(func() { s.produce(pctx) })
	}
	return s, nil
}

// ID identifies the stream in logs.
func (s *Stream) ID() uuid.UUID {
	return s.id
}

// Next returns the next batch. It returns io.EOF once the inputs are exhausted and
// keeps returning it; read or parse failures are returned once and then repeated.
// The input files are released as soon as the stream ends either way.
func (s *Stream) Next(ctx context.Context) (*Batch, error) {
	if s.closed {
		return nil, common.ErrStreamClosed
	}
	if s.err != nil {
		return nil, s.err
	}

	var (
		b   *Batch
		err error
	)
	if s.out != nil {
		b, err = s.receive(ctx)
	} else {
		b, err = s.pull(ctx)
	}
	if err != nil {
		s.finish(err)
		return nil, err
	}
	return b, nil
}

// Batches ranges over the remaining batches. A terminal error other than io.EOF is
// yielded once as the last element.
func (s *Stream) Batches(ctx context.Context) iter.Seq2[*Batch, error] {
	return func(yield func(*Batch, error) bool) {
		for {
			b, err := s.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(b, nil) {
				return
			}
		}
	}
}

func (s *Stream) finish(err error) {
	s.err = err
	if errors.Is(err, io.EOF) {
		stats := s.asm.Stats()
		s.log.Info().
			Int("read", stats.Read).
			Int("kept", stats.Kept).
			Int("truncated", stats.Truncated).
			Uint64("malformed", stats.Malformed.GetCardinality()).
			Uint64("discarded", stats.Discarded.GetCardinality()).
			Msg("Batch stream exhausted")
	} else {
		s.log.Error().Err(err).Msg("Batch stream failed")
	}
	if s.out == nil {
		s.release()
	}
}

// receive takes the next batch from the producer.
func (s *Stream) receive(ctx context.Context) (*Batch, error) {
	select {
	case b, ok := <-s.out:
		if !ok {
			return nil, s.prodErr
		}
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// produce is the single writer of s.out. It owns the assembler and the buffer
// until it returns, and releases the inputs on every exit path.
func (s *Stream) produce(ctx context.Context) {
	defer close(s.out)
	defer s.release()

	for {
		b, err := s.pull(ctx)
		if err != nil {
			s.prodErr = err
			return
		}
		select {
		case s.out <- b:
		case <-ctx.Done():
			s.prodErr = ctx.Err()
			return
		}
	}
}

// pull pops the front batch, refilling the buffer first when it is empty.
func (s *Stream) pull(ctx context.Context) (*Batch, error) {
	if len(s.buf) == 0 {
		if err := s.refill(ctx); err != nil {
			return nil, err
		}
	}
	if len(s.buf) == 0 {
		return nil, io.EOF
	}

	chunk := s.buf[0]
	s.buf[0] = nil
	s.buf = s.buf[1:]
	return newBatch(chunk, s.tables, s.opts), nil
}

func (s *Stream) refill(ctx context.Context) error {
	if s.asm.Exhausted() {
		return nil
	}

	start := time.Now()
	s.log.Debug().Msg("Refilling batches")

	examples, err := s.asm.Fill(ctx, s.opts.refillLimit())
	if err != nil {
		s.metrics.UpdateMetrics(start, false, len(examples), 0)
		return err
	}

	s.buf = BucketAndBatch(examples, s.opts.BatchSize, s.opts.Rand)
	s.metrics.UpdateMetrics(start, true, len(examples), len(s.buf))

	s.log.Info().
		Int("examples", len(examples)).
		Int("batches", len(s.buf)).
		Dur("took", time.Since(start)).
		Msg("Refilled batches")
	return nil
}

// Stats returns the assembler counters so far.
func (s *Stream) Stats() Stats {
	return s.asm.Stats()
}

// Metrics exposes refill timings and counts; GetMetrics takes a snapshot.
func (s *Stream) Metrics() common.PerformanceMetrics {
	return s.metrics
}

// Close stops the producer, if any, and releases the inputs. It is safe to call
// more than once and after the stream has ended. In prefetch mode Close waits for
// the producer, which first finishes any read already in progress.
func (s *Stream) Close() error {
	if s.closed {
		return s.closeErr
	}
	s.closed = true

	if s.cancel != nil {
		s.cancel()
		for range s.out {
		}
		s.wg.Wait()
	}
	s.release()
	return s.closeErr
}

func (s *Stream) release() {
	s.closeOnce.Do(func() {
		var errs []error
		for _, c := range s.closers {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		s.closeErr = errors.Join(errs...)
		if len(s.closers) > 0 {
			s.log.Debug().Err(s.closeErr).Msg("Released stream inputs")
		}
	})
}
