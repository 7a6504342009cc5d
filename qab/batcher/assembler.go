package batcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/qa-batcher/qab/common"
	"github.com/ZanzyTHEbar/qa-batcher/qab/tokenizer"

	"github.com/RoaringBitmap/roaring"
	"github.com/rs/zerolog"
)

// Sources are the three line-aligned inputs of a stream. Answer holds "start end"
// spans in train mode and one uuid per line in eval mode.
type Sources struct {
	Context  io.Reader
	Question io.Reader
	Answer   io.Reader
}

func (s Sources) validate() error {
	if s.Context == nil || s.Question == nil || s.Answer == nil {
		return fmt.Errorf("all three sources are required: %w", common.ErrInvalidConfig)
	}
	return nil
}

// Stats counts what the assembler did with its input. Malformed and Discarded hold
// the 1-based line numbers that were skipped.
type Stats struct {
	Read      int
	Kept      int
	Truncated int
	Malformed *roaring.Bitmap
	Discarded *roaring.Bitmap
}

// Assembler turns aligned line triples into Examples, one at a time.
type Assembler struct {
	context  *bufio.Reader
	question *bufio.Reader
	answer   *bufio.Reader

	tok  tokenizer.Tokenizer
	opts Options
	log  zerolog.Logger

	line      int
	exhausted bool

	mu    sync.Mutex
	stats Stats
}

// NewAssembler reads from src, tokenizing with tok. Options must already carry defaults.
func NewAssembler(src Sources, tok tokenizer.Tokenizer, opts Options) *Assembler {
	return &Assembler{
		context:  bufio.NewReader(src.Context),
		question: bufio.NewReader(src.Question),
		answer:   bufio.NewReader(src.Answer),
		tok:      tok,
		opts:     opts,
		log:      opts.Logger,
		stats: Stats{
			Malformed: roaring.New(),
			Discarded: roaring.New(),
		},
	}
}

// readLine returns the next line, including a final line with no newline.
// ok is false at end of input.
func readLine(r *bufio.Reader) (line string, ok bool, err error) {
	line, err = r.ReadString('\n')
	if errors.Is(err, io.EOF) {
		return line, line != "", nil
	}
	if err != nil {
		return "", false, err
	}
	return line, true, nil
}

// Exhausted reports whether any of the inputs has run out.
func (a *Assembler) Exhausted() bool {
	return a.exhausted
}

// Next returns the next retained example, or io.EOF once any input is exhausted.
// Ill-formed spans and discarded examples are skipped; read and span-parse
// failures are returned as errors.
func (a *Assembler) Next() (Example, error) {
	for {
		if a.exhausted {
			return Example{}, io.EOF
		}

		contextLine, qnLine, ansLine, ok, err := a.readTriple()
		if err != nil {
			return Example{}, err
		}
		if !ok {
			a.exhausted = true
			return Example{}, io.EOF
		}

		a.line++
		a.mu.Lock()
		a.stats.Read++
		a.mu.Unlock()

		ex, keep, err := a.build(contextLine, qnLine, ansLine)
		if err != nil {
			return Example{}, err
		}
		if keep {
			a.mu.Lock()
			a.stats.Kept++
			a.mu.Unlock()
			return ex, nil
		}
	}
}

func (a *Assembler) readTriple() (contextLine, qnLine, ansLine string, ok bool, err error) {
	readers := [3]*bufio.Reader{a.context, a.question, a.answer}
	names := [3]string{"context", "question", "answer"}
	var lines [3]string
	ok = true
	for i, r := range readers {
		line, more, readErr := readLine(r)
		if readErr != nil {
			return "", "", "", false, fmt.Errorf("read %s line %d: %w", names[i], a.line+1, readErr)
		}
		ok = ok && more
		lines[i] = line
	}
	return lines[0], lines[1], lines[2], ok, nil
}

func (a *Assembler) build(contextLine, qnLine, ansLine string) (Example, bool, error) {
	ex := Example{Line: a.line}
	ex.ContextTokens, ex.ContextIDs = a.tok.Tokenize(contextLine)
	ex.QnTokens, ex.QnIDs = a.tok.Tokenize(qnLine)

	if a.opts.Mode == ModeEval {
		ex.UUID = strings.TrimSpace(ansLine)
	} else {
		span, err := ParseSpan(ansLine)
		if err != nil {
			return Example{}, false, fmt.Errorf("answer line %d: %w", a.line, err)
		}
		if !span.Valid() {
			a.log.Warn().
				Int("line", a.line).
				Int("start", span.Start).
				Int("end", span.End).
				Msg("Found an ill-formed gold span, skipping example")
			a.mu.Lock()
			a.stats.Malformed.Add(uint32(a.line))
			a.mu.Unlock()
			return Example{}, false, nil
		}
		ex.AnsSpan = span
		ex.AnsTokens = answerTokens(ex.ContextTokens, span)
	}

	discard := a.opts.DiscardLong && a.opts.Mode == ModeTrain
	truncated := false

	if len(ex.QnIDs) > a.opts.QuestionLen {
		if discard {
			a.markDiscarded("question", len(ex.QnIDs))
			return Example{}, false, nil
		}
		ex.QnIDs = ex.QnIDs[:a.opts.QuestionLen]
		truncated = true
	}

	// Truncating the context does not re-check AnsSpan against the new length.
	if len(ex.ContextIDs) > a.opts.ContextLen {
		if discard {
			a.markDiscarded("context", len(ex.ContextIDs))
			return Example{}, false, nil
		}
		ex.ContextIDs = ex.ContextIDs[:a.opts.ContextLen]
		truncated = true
	}

	if truncated {
		a.mu.Lock()
		a.stats.Truncated++
		a.mu.Unlock()
	}
	return ex, true, nil
}

func (a *Assembler) markDiscarded(field string, length int) {
	a.log.Debug().
		Int("line", a.line).
		Str("field", field).
		Int("length", length).
		Msg("Discarding over-long example")
	a.mu.Lock()
	a.stats.Discarded.Add(uint32(a.line))
	a.mu.Unlock()
}

// Fill reads up to limit retained examples. Reaching the end of input is not an
// error: the examples read so far are returned and Exhausted reports true.
func (a *Assembler) Fill(ctx context.Context, limit int) ([]Example, error) {
	vu := common.NewValidationUtils()
	examples := make([]Example, 0, min(limit, 1024))
	for len(examples) < limit {
		if err := vu.ValidateContextCancellation(ctx); err != nil {
			return examples, err
		}
		ex, err := a.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return examples, err
		}
		examples = append(examples, ex)
	}
	return examples, nil
}

// Stats returns a copy of the counters, safe to read while the assembler runs.
func (a *Assembler) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.stats
	out.Malformed = a.stats.Malformed.Clone()
	out.Discarded = a.stats.Discarded.Clone()
	return out
}
