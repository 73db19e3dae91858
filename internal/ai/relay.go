package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// ErrClientGone reports that the client-side write failed mid-stream. The
// caller decides whether to persist the partial accumulation.
var ErrClientGone = errors.New("client disconnected")

const sentinel = "[DONE]"

// Accumulator reconstructs the full answer from the raw bytes flowing to the
// client. It is an io.Writer fed the exact chunk sequence the client gets;
// framing is parsed only here, never on the client leg. Chunk boundaries are
// arbitrary: a record split across chunks is carried until its newline
// arrives, so the same byte sequence accumulates identically at any split.
type Accumulator struct {
	family Family
	logger *zap.Logger

	carry     bytes.Buffer
	answer    strings.Builder
	reasoning strings.Builder
	done      bool
}

func NewAccumulator(family Family, logger *zap.Logger) *Accumulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accumulator{family: family, logger: logger}
}

func (a *Accumulator) Write(p []byte) (int, error) {
	a.carry.Write(p)
	for {
		raw := a.carry.Bytes()
		i := bytes.IndexByte(raw, '\n')
		if i < 0 {
			return len(p), nil
		}
		line := make([]byte, i)
		copy(line, raw[:i])
		a.carry.Next(i + 1)
		a.consumeLine(line)
	}
}

// Finish consumes any unterminated trailing record. Call once at end of
// stream, before reading Answer.
func (a *Accumulator) Finish() {
	if a.carry.Len() > 0 {
		line := append([]byte(nil), a.carry.Bytes()...)
		a.carry.Reset()
		a.consumeLine(line)
	}
}

// Answer is the concatenation of all extracted fragments in arrival order.
func (a *Accumulator) Answer() string { return a.answer.String() }

// Reasoning is the side channel some providers stream alongside the answer.
// It is tracked separately and never merged into Answer.
func (a *Accumulator) Reasoning() string { return a.reasoning.String() }

// Done reports whether the terminal sentinel was observed.
func (a *Accumulator) Done() bool { return a.done }

type openAIDelta struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
}

type anthropicDelta struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (a *Accumulator) consumeLine(line []byte) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" || !strings.HasPrefix(trimmed, "data:") {
		return
	}
	data := strings.TrimSpace(strings.TrimPrefix(trimmed, "data:"))
	if data == sentinel {
		a.done = true
		return
	}

	switch a.family {
	case FamilyAnthropic:
		var d anthropicDelta
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			// One bad record must not abort accumulation or delivery.
			a.logger.Warn("skipping malformed stream record", zap.Error(err))
			return
		}
		if len(d.Content) > 0 {
			a.answer.WriteString(d.Content[0].Text)
		}
	default:
		var d openAIDelta
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			a.logger.Warn("skipping malformed stream record", zap.Error(err))
			return
		}
		if len(d.Choices) > 0 {
			a.answer.WriteString(d.Choices[0].Delta.Content)
			a.reasoning.WriteString(d.Choices[0].Delta.ReasoningContent)
		}
	}
}

type flusher interface{ Flush() }

// Relay is the pass-through transform: every chunk read from upstream is
// forwarded to the client unmodified and, in the same pass, fed to acc.
// Byte order on the client leg is receipt order; nothing is dropped or
// reordered. Returns ErrClientGone if the client write fails; the upstream
// read error otherwise. acc.Finish is called on every exit path, so the
// accumulation is complete even when the stream ends abnormally.
func Relay(ctx context.Context, upstream io.Reader, client io.Writer, acc *Accumulator) error {
	defer acc.Finish()

	fl, _ := client.(flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := upstream.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if _, werr := client.Write(chunk); werr != nil {
				return fmt.Errorf("%w: %v", ErrClientGone, werr)
			}
			if fl != nil {
				fl.Flush()
			}
			if _, aerr := acc.Write(chunk); aerr != nil {
				return aerr
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}
