package batcher

import (
	"fmt"
	"strconv"

	"github.com/ZanzyTHEbar/qa-batcher/qab/common"
	"github.com/ZanzyTHEbar/qa-batcher/qab/tokenizer"
)

// Span is an inclusive (Start, End) token range into a context.
type Span struct {
	Start int
	End   int
}

// Valid reports whether 0 <= Start <= End.
func (s Span) Valid() bool {
	return s.Start >= 0 && s.Start <= s.End
}

// ParseSpan parses a "start end" line. Anything other than exactly two integers is
// an ErrBadSpanLine; ordering is checked separately with Valid.
func ParseSpan(line string) (Span, error) {
	fields := tokenizer.Split(line)
	if len(fields) != 2 {
		return Span{}, fmt.Errorf("got %d fields in %q: %w", len(fields), line, common.ErrBadSpanLine)
	}
	start, err := strconv.Atoi(fields[0])
	if err != nil {
		return Span{}, fmt.Errorf("start %q: %w", fields[0], common.ErrBadSpanLine)
	}
	end, err := strconv.Atoi(fields[1])
	if err != nil {
		return Span{}, fmt.Errorf("end %q: %w", fields[1], common.ErrBadSpanLine)
	}
	return Span{Start: start, End: end}, nil
}

// Example is one (context, question, answer) triple. Tokens are kept as read; ids
// may have been truncated by the length policy.
type Example struct {
	ContextTokens []string
	ContextIDs    []int
	QnTokens      []string
	QnIDs         []int
	AnsSpan       Span
	AnsTokens     []string
	UUID          string // eval mode only
	Line          int    // 1-based line number in the input files
}

// answerTokens slices the context by span, clamped so an out-of-range span never panics.
func answerTokens(context []string, span Span) []string {
	start := min(max(span.Start, 0), len(context))
	end := min(max(span.End+1, start), len(context))
	return context[start:end:end]
}
