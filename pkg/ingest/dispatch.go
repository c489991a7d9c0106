package ingest

import "github.com/jwebster45206/gm-engine/pkg/state"

// Dispatch returns the envelope's domain commands in declared slot order.
func Dispatch(env *Envelope) []state.Command {
	if env == nil {
		return nil
	}
	cmds := make([]state.Command, 0, len(env.Commands))
	for _, sc := range env.Commands {
		cmds = append(cmds, sc.Command)
	}
	return cmds
}

// MetaCommands returns the loading and error commands carried by the
// envelope, applied after the domain sequence. A null error is not a clear:
// once set, the error flag stays until an explicit ClearError, even across
// later successful turns.
func MetaCommands(env *Envelope) []state.Command {
	if env == nil {
		return nil
	}
	var cmds []state.Command
	if env.IsLoading != nil {
		cmds = append(cmds, state.SetLoading(*env.IsLoading))
	}
	if env.Error != nil {
		cmds = append(cmds, state.SetErrorText(*env.Error))
	}
	return cmds
}
