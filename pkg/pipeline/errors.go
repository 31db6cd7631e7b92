package pipeline

import (
	"errors"
	"fmt"
)

// Stage names the step of a run an error happened in.
type Stage string

const (
	StageQuery   Stage = "query"
	StagePrepare Stage = "prepare"
	StageFit     Stage = "fit"
	StagePublish Stage = "publish"
)

// StageError is returned by Runner.Run. Series is set for fit errors.
type StageError struct {
	Stage  Stage
	Job    string
	Series string
	Err    error
}

func (e *StageError) Error() string {
	if e.Series != "" {
		return fmt.Sprintf("job %s: %s failed for series %s: %v", e.Job, e.Stage, e.Series, e.Err)
	}
	return fmt.Sprintf("job %s: %s failed: %v", e.Job, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IsStage reports whether err is a StageError of stage.
func IsStage(err error, stage Stage) bool {
	var stageErr *StageError
	return errors.As(err, &stageErr) && stageErr.Stage == stage
}
