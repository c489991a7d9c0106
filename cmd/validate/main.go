package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/gm-engine/internal/storage"
	"github.com/jwebster45206/gm-engine/pkg/ingest"
	"github.com/jwebster45206/gm-engine/pkg/state"
)

const usage = `Usage: %s <response.txt|-> [seed.json|seed.yaml]

Runs a saved game master response through extract, parse and validate and
prints the commands it would dispatch. With a seed file, the commands are
also applied to the seed's initial state and the result is printed.
`

func main() {
	if len(os.Args) < 2 || len(os.Args) > 3 {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}

	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, out io.Writer) error {
	text, err := readResponse(args[0], stdin)
	if err != nil {
		return err
	}

	validator := &ResponseValidator{out: out}
	env, err := validator.validate(text)
	if err != nil {
		return err
	}

	if len(args) < 2 {
		return nil
	}
	seed, err := readSeed(args[1])
	if err != nil {
		return err
	}
	ws, err := state.NewWorldState(*seed)
	if err != nil {
		return fmt.Errorf("invalid seed %s: %w", args[1], err)
	}
	return validator.apply(ws, env)
}

func readResponse(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read response %s: %w", path, err)
	}
	return string(data), nil
}

func readSeed(path string) (*state.Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed %s: %w", path, err)
	}
	seed, err := storage.DecodeSeed(data, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed %s: %w", path, err)
	}
	return seed, nil
}

// ResponseValidator reports each ingestion stage as it runs.
type ResponseValidator struct {
	out io.Writer
}

// validate returns a nil envelope, and no error, for narration-only text.
func (v *ResponseValidator) validate(text string) (*ingest.Envelope, error) {
	candidate, err := ingest.Extract(text)
	if errors.Is(err, ingest.ErrNotFound) {
		fmt.Fprintln(v.out, "extract: no ```json block; the response is narration only")
		return nil, nil
	}
	fmt.Fprintf(v.out, "extract: found block (%d bytes)\n", len(candidate))

	value, err := ingest.Parse(candidate)
	if err != nil {
		fmt.Fprintf(v.out, "parse: normalized candidate:\n%s\n", ingest.Normalize(candidate))
		return nil, err
	}
	fmt.Fprintln(v.out, "parse: ok")

	env, err := ingest.Validate(value)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(v.out, "validate: ok")
	fmt.Fprintf(v.out, "message: %s\n", env.Message)

	cmds := append(ingest.Dispatch(env), ingest.MetaCommands(env)...)
	if len(cmds) == 0 {
		fmt.Fprintln(v.out, "dispatch: no commands")
		return env, nil
	}
	fmt.Fprintf(v.out, "dispatch: %d command(s)\n", len(cmds))
	for i, cmd := range cmds {
		payload, err := json.Marshal(cmd.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s payload: %w", cmd.Type, err)
		}
		fmt.Fprintf(v.out, "  %2d. %-30s %s\n", i+1, cmd.Type, payload)
	}
	return env, nil
}

func (v *ResponseValidator) apply(ws state.WorldState, env *ingest.Envelope) error {
	if env == nil {
		fmt.Fprintln(v.out, "reduce: nothing to apply")
		return nil
	}
	cmds := append(ingest.Dispatch(env), ingest.MetaCommands(env)...)
	next, failed, err := state.ReduceAll(ws, cmds)
	if err != nil {
		return fmt.Errorf("command %d (%s): %w", failed+1, cmds[failed].Type, err)
	}

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render state: %w", err)
	}
	fmt.Fprintf(v.out, "reduce: ok\n%s\n", data)
	return nil
}
