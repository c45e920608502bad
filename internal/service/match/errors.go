package match

import (
	"errors"
	"fmt"
)

// StageError reports a stage started before its prerequisite completed.
type StageError struct {
	Stage int
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d requires stage %d output", e.Stage, e.Stage-1)
}

// ErrUnknownStage is returned for stage numbers outside 1..3.
var ErrUnknownStage = errors.New("unknown stage")

var (
	errMissingRunID = errors.New("run id required")
	errNoTeams      = errors.New("no teams to assign")
)

// IsStageError reports whether err is a *StageError.
func IsStageError(err error) bool {
	var se *StageError
	return errors.As(err, &se)
}
