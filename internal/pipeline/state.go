package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/alpacaproxy/proxy-release/internal/installer"
	"github.com/alpacaproxy/proxy-release/internal/manifest"
	"github.com/alpacaproxy/proxy-release/internal/nativebuild"
	"github.com/alpacaproxy/proxy-release/internal/toolexec"
)

// State is an orchestrator state.
type State string

const (
	StateIdle                      State = "Idle"
	StateExtractingFirmwareVersion State = "ExtractingFirmwareVersion"
	StateReadingManifest           State = "ReadingManifest"
	StateBuilding                  State = "Building"
	StateGeneratingInstallerScript State = "GeneratingInstallerScript"
	StateCompilingInstaller        State = "CompilingInstaller"
	StateDone                      State = "Done"
	StateFailed                    State = "Failed"
)

// Terminal reports whether no further transitions happen from s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// ErrInstallerNotProduced is returned when ISCC exits zero but the configured
// installer output does not exist.
var ErrInstallerNotProduced = errors.New("installer compiler reported success but produced no installer")

// StepError is the fatal error of a run. It records the state the run was in
// when it failed and wraps the typed cause from the step.
type StepError struct {
	State State
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.State, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Result returns the captured tool output of the failing invocation, or nil
// when the failure did not involve an external tool.
func (e *StepError) Result() *toolexec.Result {
	var withResult interface{ Result() *toolexec.Result }
	if errors.As(e.Err, &withResult) {
		return withResult.Result()
	}
	return nil
}

// StepTiming is how long one state took.
type StepTiming struct {
	State    State
	Duration time.Duration
}

// Report summarizes a run. It is returned for failed runs too, populated up to
// the failing step.
type Report struct {
	FinalState      State
	FailedState     State // empty unless FinalState is StateFailed
	FirmwareVersion string
	Manifest        *manifest.Manifest
	Binary          *nativebuild.Artifact
	Installer       *installer.Artifact
	Warnings        []string
	Steps           []StepTiming
	Duration        time.Duration
}

// Succeeded reports whether the run reached StateDone.
func (r *Report) Succeeded() bool {
	return r.FinalState == StateDone
}

// StepDuration returns the recorded duration of s, or zero if s didn't run.
func (r *Report) StepDuration(s State) time.Duration {
	for _, st := range r.Steps {
		if st.State == s {
			return st.Duration
		}
	}
	return 0
}
