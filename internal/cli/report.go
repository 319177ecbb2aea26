package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/alpacaproxy/proxy-release/internal/pipeline"
	"github.com/alpacaproxy/proxy-release/internal/toolexec"
)

var (
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
	okColor   = color.New(color.FgGreen, color.Bold)
	dimColor  = color.New(color.Faint)
)

// PrintFailure writes err to w. When the failure came from an external tool,
// the command line, exit code and captured output are printed verbatim.
func PrintFailure(w io.Writer, err error) {
	failColor.Fprintf(w, "✗ %v\n", err)

	res := failedResult(err)
	if res == nil {
		return
	}
	fmt.Fprintf(w, "  command:   %s\n", res.Command)
	if res.Dir != "" {
		fmt.Fprintf(w, "  directory: %s\n", res.Dir)
	}
	fmt.Fprintf(w, "  exit code: %d\n", res.ExitCode)
	if res.TimedOut {
		warnColor.Fprintf(w, "  timed out after %s\n", res.Duration.Round(time.Millisecond))
	}
	if res.Stdout != "" {
		warnColor.Fprintln(w, "  --- stdout ---")
		writeBlock(w, res.Stdout)
	}
	if res.Stderr != "" {
		failColor.Fprintln(w, "  --- stderr ---")
		writeBlock(w, res.Stderr)
	}
}

func failedResult(err error) *toolexec.Result {
	var stepErr *pipeline.StepError
	if errors.As(err, &stepErr) {
		return stepErr.Result()
	}
	var withResult interface{ Result() *toolexec.Result }
	if errors.As(err, &withResult) {
		return withResult.Result()
	}
	return nil
}

func writeBlock(w io.Writer, s string) {
	fmt.Fprint(w, s)
	if !strings.HasSuffix(s, "\n") {
		fmt.Fprintln(w)
	}
}

// PrintSummary writes what a successful run produced.
func PrintSummary(w io.Writer, report *pipeline.Report) {
	if report == nil {
		return
	}
	okColor.Fprintf(w, "✔ Release pipeline finished in %s\n", report.Duration.Round(time.Millisecond))
	if report.Manifest != nil {
		fmt.Fprintf(w, "  version:   %s (%s)\n", report.Manifest.ProductVersion, report.Manifest.FileVersion)
	}
	if report.FirmwareVersion != "" {
		fmt.Fprintf(w, "  firmware:  %s\n", report.FirmwareVersion)
	}
	if report.Binary != nil {
		fmt.Fprintf(w, "  binary:    %s\n", report.Binary.BinaryPath)
	}
	if report.Installer != nil && report.Installer.InstallerPath != "" {
		fmt.Fprintf(w, "  installer: %s\n", report.Installer.InstallerPath)
	}
	for _, st := range report.Steps {
		dimColor.Fprintf(w, "  %-26s %s\n", st.State, st.Duration.Round(time.Millisecond))
	}
	for _, warning := range report.Warnings {
		warnColor.Fprintf(w, "⚠ %s\n", warning)
	}
}
