//go:build !unix

package forecast

import "os/exec"

func configureProcessGroup(*exec.Cmd) {}
