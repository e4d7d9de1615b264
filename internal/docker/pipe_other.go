//go:build !windows

package docker

import (
	"errors"
	"time"
)

const dockerPipe = `\\.\pipe\docker_engine`

// dialPipe is only meaningful on Windows.
func dialPipe(string, time.Duration) error {
	return errors.New("named pipes are only available on Windows")
}
