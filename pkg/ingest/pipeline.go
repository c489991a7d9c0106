package ingest

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/gm-engine/pkg/state"
)

// ParseFailureMessage prefixes the error recorded when a response carried a
// block that could not be applied.
const ParseFailureMessage = "Failed to parse assistant response"

// Outcome classifies one ingestion.
type Outcome string

const (
	// OutcomeNarration: no structured block; state unchanged.
	OutcomeNarration Outcome = "narration"
	// OutcomeApplied: every command in the block was applied.
	OutcomeApplied Outcome = "applied"
	// OutcomeRejected: the block was unusable; only the error flag was set.
	OutcomeRejected Outcome = "rejected"
)

// Result is what one ingestion produced.
type Result struct {
	State   state.WorldState `json:"state"`
	Message string           `json:"message"`
	Outcome Outcome          `json:"outcome"`
	Applied []state.Command  `json:"applied"`

	// Err is the cause of a rejection, for logging and errors.Is checks.
	Err error `json:"-"`
}

// Ingest runs one generator response through extract, parse, validate,
// dispatch and reduce against ws. It never returns ws modified in place.
//
// Failures after extraction are folded into a single SET_ERROR on ws. The
// commands are reduced on a working snapshot that is dropped on failure, so
// a failing command never leaves the ones before it applied.
func Ingest(ws state.WorldState, text string) Result {
	candidate, err := Extract(text)
	if errors.Is(err, ErrNotFound) {
		return Result{
			State:   ws,
			Message: text,
			Outcome: OutcomeNarration,
		}
	}

	value, err := Parse(candidate)
	if err != nil {
		return reject(ws, text, err)
	}
	env, err := Validate(value)
	if err != nil {
		return reject(ws, text, err)
	}

	cmds := append(Dispatch(env), MetaCommands(env)...)
	next, _, err := state.ReduceAll(ws, cmds)
	if err != nil {
		return reject(ws, text, err)
	}

	return Result{
		State:   next,
		Message: env.Message,
		Outcome: OutcomeApplied,
		Applied: cmds,
	}
}

func reject(ws state.WorldState, text string, cause error) Result {
	cmd := state.SetErrorText(fmt.Sprintf("%s: %v", ParseFailureMessage, cause))
	next, err := state.Reduce(ws, cmd)
	if err != nil {
		// SET_ERROR with a string payload cannot fail.
		next = ws
	}
	return Result{
		State:   next,
		Message: Strip(text),
		Outcome: OutcomeRejected,
		Applied: []state.Command{cmd},
		Err:     cause,
	}
}

// Engine runs Ingest and logs each outcome.
type Engine struct {
	logger *slog.Logger
}

// NewEngine returns an Engine that logs to logger, or to slog.Default when
// logger is nil.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Ingest is the package-level Ingest with logging.
func (e *Engine) Ingest(ws state.WorldState, text string) Result {
	res := Ingest(ws, text)
	switch res.Outcome {
	case OutcomeNarration:
		e.logger.Debug("Response carried no structured payload", "response_length", len(text))
	case OutcomeApplied:
		e.logger.Debug("Applied response commands",
			"commands", len(res.Applied),
			"kinds", commandKinds(res.Applied))
	case OutcomeRejected:
		e.logger.Warn("Rejected response payload", "error", res.Err, "stage", Stage(res.Err))
	}
	return res
}

// Stage names the pipeline stage that produced err.
func Stage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "extract"
	case errors.Is(err, ErrMalformedPayload):
		return "parse"
	case errors.Is(err, ErrSchemaViolation):
		return "validate"
	case errors.Is(err, state.ErrIndexOutOfRange), errors.Is(err, state.ErrUnknownCommand), errors.Is(err, state.ErrInvalidPayload):
		return "reduce"
	}
	return "unknown"
}

func commandKinds(cmds []state.Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}
