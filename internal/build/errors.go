package build

import "fmt"

// StageError reports the branch and stage at which a build failed.
type StageError struct {
	Branch string
	Stage  Stage
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("build of %s failed at %s: %v", e.Branch, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
