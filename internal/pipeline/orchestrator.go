// Package pipeline sequences the release steps: firmware manifest, version
// manifest, native build, installer script and installer compilation.
//
// The run is strictly linear. Firmware publishing has no data dependency on the
// later steps and only ever produces a warning; it runs first. Every other
// step is fatal, and a failed step's transient files are removed before the
// run reports Failed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/alpacaproxy/proxy-release/internal/events"
	"github.com/alpacaproxy/proxy-release/internal/firmware"
	"github.com/alpacaproxy/proxy-release/internal/installer"
	"github.com/alpacaproxy/proxy-release/internal/logging"
	"github.com/alpacaproxy/proxy-release/internal/manifest"
	"github.com/alpacaproxy/proxy-release/internal/nativebuild"
	"github.com/alpacaproxy/proxy-release/internal/util/transient"
)

// ErrMissingComponent is returned by New when a planned step has nothing to run.
var ErrMissingComponent = errors.New("pipeline component not configured")

// Components are the already-resolved collaborators of a run. Steps skipped by
// Options may leave their components nil.
type Components struct {
	Publisher        *firmware.Publisher
	FirmwareHeader   string
	FirmwareManifest string

	Descriptor string

	Builder *nativebuild.Builder

	Generator *installer.Generator
	Compiler  *installer.Compiler
	// InstallerOutput is the expected installer path pattern, relative to the
	// template directory. Empty skips the post-compile check.
	InstallerOutput string
}

// Options selects which steps run. Reading the manifest always runs.
type Options struct {
	SkipFirmware  bool
	SkipBuild     bool
	SkipInstaller bool
}

// Orchestrator runs the release steps in order.
type Orchestrator struct {
	c      Components
	opts   Options
	bus    *events.EventBus
	logger *logging.Logger

	mu    sync.Mutex
	state State
}

// New creates an Orchestrator. A nil bus or logger is replaced by one that
// nobody listens to.
func New(c Components, opts Options, bus *events.EventBus, logger *logging.Logger) (*Orchestrator, error) {
	if bus == nil {
		bus = events.NewEventBus(0)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	o := &Orchestrator{c: c, opts: opts, bus: bus, logger: logger, state: StateIdle}

	if c.Descriptor == "" {
		return nil, fmt.Errorf("%w: version descriptor", ErrMissingComponent)
	}
	for _, s := range o.Plan() {
		switch {
		case s == StateExtractingFirmwareVersion && c.Publisher == nil:
			return nil, fmt.Errorf("%w: firmware publisher", ErrMissingComponent)
		case s == StateBuilding && c.Builder == nil:
			return nil, fmt.Errorf("%w: native builder", ErrMissingComponent)
		case s == StateGeneratingInstallerScript && c.Generator == nil:
			return nil, fmt.Errorf("%w: installer script generator", ErrMissingComponent)
		case s == StateCompilingInstaller && c.Compiler == nil:
			return nil, fmt.Errorf("%w: installer compiler", ErrMissingComponent)
		}
	}
	return o, nil
}

// EventBus returns the bus the orchestrator publishes on.
func (o *Orchestrator) EventBus() *events.EventBus {
	return o.bus
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Plan returns the states a successful run passes through, ending with
// StateDone.
func (o *Orchestrator) Plan() []State {
	plan := make([]State, 0, 6)
	if !o.opts.SkipFirmware {
		plan = append(plan, StateExtractingFirmwareVersion)
	}
	plan = append(plan, StateReadingManifest)
	if !o.opts.SkipBuild {
		plan = append(plan, StateBuilding)
	}
	if !o.opts.SkipInstaller {
		plan = append(plan, StateGeneratingInstallerScript, StateCompilingInstaller)
	}
	return append(plan, StateDone)
}

// run holds what one Run call accumulates between steps.
type run struct {
	report     *Report
	scope      *transient.Scope
	scriptPath string
}

// Run executes the planned steps. It always returns a Report; the error is a
// *StepError when the run ended in StateFailed.
//
// The context is checked between steps. A step interrupted by cancellation
// still removes its transient files.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	plan := o.Plan()
	total := len(plan)

	r := &run{report: &Report{}, scope: transient.NewScope()}
	defer r.scope.Release(transient.LogReporter(o.logger))

	o.mu.Lock()
	o.state = StateIdle
	o.mu.Unlock()

	o.logger.Info().Int("steps", total-1).Msg("Starting release pipeline")

	for i, state := range plan {
		if state == StateDone {
			break
		}
		if err := ctx.Err(); err != nil {
			return o.fail(r.report, state, err, total, start)
		}

		o.transition(state, i+1, total)
		stepStart := time.Now()
		err := o.runStep(ctx, state, r)
		r.report.Steps = append(r.report.Steps, StepTiming{State: state, Duration: time.Since(stepStart)})
		if err != nil {
			return o.fail(r.report, state, err, total, start)
		}
	}

	o.transition(StateDone, total, total)
	r.report.FinalState = StateDone
	r.report.Duration = time.Since(start)

	event := o.logger.Info().Dur("duration", r.report.Duration).Int("warnings", len(r.report.Warnings))
	if r.report.Binary != nil {
		event = event.Str("binary", r.report.Binary.BinaryPath)
	}
	if r.report.Installer != nil && r.report.Installer.InstallerPath != "" {
		event = event.Str("installer", r.report.Installer.InstallerPath)
	}
	event.Msg("Release pipeline finished")

	o.bus.PublishComplete(string(StateDone), len(r.report.Warnings), r.report.Duration)
	return r.report, nil
}

func (o *Orchestrator) runStep(ctx context.Context, state State, r *run) error {
	log := o.logger.Step(string(state))

	switch state {
	case StateExtractingFirmwareVersion:
		o.publishFirmware(log, r.report)
		return nil

	case StateReadingManifest:
		m, err := manifest.Read(o.c.Descriptor)
		if err != nil {
			return err
		}
		r.report.Manifest = m
		log.Info().Fields(m.Fields()).Msg("Version manifest loaded")
		return nil

	case StateBuilding:
		art, err := o.c.Builder.Build(ctx, r.report.Manifest)
		if err != nil {
			return err
		}
		r.report.Binary = art
		return nil

	case StateGeneratingInstallerScript:
		// No script is written unless it can be compiled.
		if err := o.c.Compiler.CheckTool(); err != nil {
			return err
		}
		r.scope.Acquire(o.c.Generator.ScriptPath())
		path, err := o.c.Generator.Generate(r.report.Manifest)
		if err != nil {
			return err
		}
		r.scriptPath = path
		log.Info().Str("path", path).Msg("Installer script generated")
		return nil

	case StateCompilingInstaller:
		art, err := o.c.Compiler.Compile(ctx, r.scriptPath)
		if err != nil {
			return err
		}
		if o.c.InstallerOutput != "" {
			dir := filepath.Dir(o.c.Generator.Template)
			art.InstallerPath = installer.OutputPath(dir, o.c.InstallerOutput, r.report.Manifest)
			if !transient.Exists(art.InstallerPath) {
				return fmt.Errorf("%w: %s", ErrInstallerNotProduced, art.InstallerPath)
			}
		}
		r.report.Installer = art
		return nil
	}

	return fmt.Errorf("no step for state %s", state)
}

// publishFirmware never fails the run: a missing or unreadable define is
// recorded as a warning and the previous manifest stays in place.
func (o *Orchestrator) publishFirmware(log *logging.Logger, report *Report) {
	version, err := o.c.Publisher.Publish(o.c.FirmwareHeader, o.c.FirmwareManifest)
	if err != nil {
		report.Warnings = append(report.Warnings, err.Error())
		log.Warn().Err(err).Str("header", o.c.FirmwareHeader).Msg("Firmware version not published, continuing")
		o.bus.PublishLog(events.WarnLevel, "Firmware version not published", string(StateExtractingFirmwareVersion), err)
		return
	}
	report.FirmwareVersion = version
	log.Info().Str("version", version).Str("path", o.c.FirmwareManifest).Msg("Firmware version manifest written")
}

func (o *Orchestrator) fail(report *Report, state State, err error, total int, start time.Time) (*Report, error) {
	stepErr := &StepError{State: state, Err: err}

	o.logger.Error().Err(err).Str("state", string(state)).Msg("Release pipeline failed")
	o.bus.PublishStepFailed(string(state), err)
	o.transition(StateFailed, 0, total)

	report.FinalState = StateFailed
	report.FailedState = state
	report.Duration = time.Since(start)
	o.bus.PublishComplete(string(StateFailed), len(report.Warnings), report.Duration)
	return report, stepErr
}

func (o *Orchestrator) transition(next State, index, total int) {
	o.mu.Lock()
	prev := o.state
	o.state = next
	o.mu.Unlock()

	o.logger.Debug().Str("from", string(prev)).Str("to", string(next)).Msg("State change")
	o.bus.PublishStateChange(string(prev), string(next), index, total)
}
