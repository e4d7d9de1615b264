package port

import (
	"errors"
	"fmt"
	"net"

	"github.com/shinji-kodama/devsession/internal/model"
)

// ErrInvalidPort is returned by CanBind for port numbers outside 1-65535.
// It is the only error a check reports; a busy port is not an error.
var ErrInvalidPort = errors.New("invalid port number")

// Scanner checks whether specific ports are available on the host machine.
//
// It uses the operating system's network stack (net.Listen) rather than
// parsing socket tables, so it works the same on every platform and needs
// no elevated permissions.
type Scanner struct {
	// host is the address checks bind to. Empty means all interfaces,
	// which matches how development servers usually listen.
	host string
}

// NewScanner creates a Scanner that checks on all interfaces.
func NewScanner() *Scanner {
	return &Scanner{}
}

// NewScannerOnHost creates a Scanner that checks on a specific address,
// e.g. "127.0.0.1".
func NewScannerOnHost(host string) *Scanner {
	return &Scanner{host: host}
}

// CanBind reports whether a TCP listener can be bound on port.
//
// Any bind error (address in use, permission denied) maps to false with a
// nil error. Only an invalid port number is reported as an error. The test
// listener is closed before CanBind returns.
func (s *Scanner) CanBind(port int) (bool, error) {
	if err := model.ValidatePort(port); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidPort, err)
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(s.host, fmt.Sprint(port)))
	if err != nil {
		return false, nil
	}
	_ = listener.Close()
	return true, nil
}

// IsAvailable is CanBind without the error: invalid ports are unavailable.
func (s *Scanner) IsAvailable(port int) bool {
	ok, err := s.CanBind(port)
	return err == nil && ok
}

// UsedPorts returns the ports from the given list that cannot currently be
// bound, preserving input order. The status command uses this to show
// which configured ports are occupied.
func (s *Scanner) UsedPorts(ports []int) []int {
	var used []int
	for _, p := range ports {
		if !s.IsAvailable(p) {
			used = append(used, p)
		}
	}
	return used
}
