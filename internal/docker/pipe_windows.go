package docker

import (
	"time"

	"github.com/Microsoft/go-winio"
)

const dockerPipe = `\\.\pipe\docker_engine`

// dialPipe checks that the named pipe at path accepts a connection.
func dialPipe(path string, timeout time.Duration) error {
	conn, err := winio.DialPipe(path, &timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}
