package runner

import (
	"github.com/rs/zerolog"
)

// LogListener logs the start and completion of every execution.
type LogListener struct {
	Logger zerolog.Logger
}

// OnExecutionStarted logs the start of exec.
func (l *LogListener) OnExecutionStarted(exec *Execution) {
	l.Logger.Info().
		Str("task", exec.Name).
		Str("id", exec.ID).
		Msgf("Starting '%s'...", exec.Name)
}

// OnExecutionCompleted logs the outcome of exec.
func (l *LogListener) OnExecutionCompleted(exec *Execution) {
	switch exec.State() {
	case ExecutionStateSucceeded:
		l.Logger.Info().
			Str("task", exec.Name).
			Str("id", exec.ID).
			Dur("duration", exec.Duration()).
			Msgf("Finished '%s'", exec.Name)
	case ExecutionStateCanceled:
		l.Logger.Info().
			Str("task", exec.Name).
			Str("id", exec.ID).
			Msgf("Stopped '%s'", exec.Name)
	default:
		l.Logger.Error().
			Err(exec.Err()).
			Str("task", exec.Name).
			Str("id", exec.ID).
			Bool("fatal", !IsNonFatal(exec.Err())).
			Dur("duration", exec.Duration()).
			Msgf("'%s' errored", exec.Name)
	}
}
