package converter

import (
	"errors"
	"fmt"

	"github.com/unalkalkan/narrator/internal/progress"
)

// StageError reports the pipeline stage a conversion failed in
type StageError struct {
	Stage progress.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage recorded in err, if any
func FailedStage(err error) (progress.Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

func stageErr(stage progress.Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}
