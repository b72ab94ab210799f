package packager

import (
	"errors"
	"fmt"
)

// Step names a stage of the packaging pipeline.
type Step string

// Pipeline steps in execution order.
const (
	StepDiscover Step = "discover version"
	StepPrepare  Step = "prepare directories"
	StepStage    Step = "stage sources"
	StepInstall  Step = "install dependencies"
	StepPrune    Step = "prune manifests"
	StepArchive  Step = "archive"
	StepCleanup  Step = "cleanup staging"
	StepPublish  Step = "publish"
)

var (
	// ErrVersionNotFound means no declaration file carries a version; the default is used.
	ErrVersionNotFound = errors.New("plugin version not found")
	// ErrStagingDirectory means the build root or staging directory could not be prepared.
	ErrStagingDirectory = errors.New("staging directory error")
	// ErrCopyFailure means the filtered copy into the staging directory failed.
	ErrCopyFailure = errors.New("copy failed")
	// ErrDependencyInstall means the dependency manager failed.
	ErrDependencyInstall = errors.New("dependency install failed")
	// ErrPrune means a dependency manifest could not be removed from the staged tree.
	ErrPrune = errors.New("manifest pruning failed")
	// ErrArchival means the release archive could not be produced.
	ErrArchival = errors.New("archival failed")
	// ErrCleanup means the staging directory could not be removed after archival.
	ErrCleanup = errors.New("cleanup failed")
	// ErrPublish means the archive could not be uploaded.
	ErrPublish = errors.New("publish failed")
)

// StepError attributes a fatal error to the pipeline step that produced it.
type StepError struct {
	// Step is the failed pipeline step.
	Step Step
	// Err is the underlying error, wrapping one of the package sentinels.
	Err error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the step a run failed at, or "" when err carries no step.
func FailedStep(err error) Step {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step
	}

	return ""
}
