//go:build !unix

package analyzer

import "os/exec"

// configureProcess keeps the exec default of killing only the direct child.
func configureProcess(cmd *exec.Cmd) {}
