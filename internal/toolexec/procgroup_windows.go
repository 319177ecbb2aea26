//go:build windows

package toolexec

import "os/exec"

// setProcessGroup is a no-op on Windows; WaitDelay still bounds Run when
// orphaned children keep the output pipes open.
func setProcessGroup(cmd *exec.Cmd) {}
