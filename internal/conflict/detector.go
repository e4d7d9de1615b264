// Package conflict finds the pre-existing conditions that would stop a
// development session from starting cleanly: configured ports already in
// use, and leftover runtime processes from an earlier session.
package conflict

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/shinji-kodama/devsession/internal/logging"
	"github.com/shinji-kodama/devsession/internal/model"
)

// PortCheck pairs a configured port with the service that owns it.
type PortCheck struct {
	Service string
	Name    string
	Port    int
}

// Checks builds one PortCheck per service with a preferred port, in
// declaration order.
func Checks(services []model.ServiceDescriptor) []PortCheck {
	checks := make([]PortCheck, 0, len(services))
	for _, svc := range services {
		if !svc.HasPort() {
			continue
		}
		checks = append(checks, PortCheck{Service: svc.Key, Name: svc.DisplayName(), Port: svc.Port})
	}
	return checks
}

// Inspector is the subset of process.Inspector the detector needs.
type Inspector interface {
	IsPortHeld(ctx context.Context, port int) bool
	CountProcesses(ctx context.Context, name string) int
	DescribeHolder(ctx context.Context, port int) string
}

// BindChecker reports whether a port can be bound right now.
type BindChecker interface {
	IsAvailable(port int) bool
}

// Detector composes an Inspector and a BindChecker.
type Detector struct {
	inspector Inspector
	checker   BindChecker
	logger    *log.Logger
}

// NewDetector creates a Detector. checker may be nil, in which case only
// the socket table is consulted.
func NewDetector(inspector Inspector, checker BindChecker, logger *log.Logger) *Detector {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Detector{inspector: inspector, checker: checker, logger: logger}
}

// Detect returns the conflicts found, port records first in check order,
// then at most one excess-process record. A port counts as held when a
// listener is visible in the socket table or the port cannot be bound;
// the bind check covers hosts where the socket table is not readable.
// An empty sentinel skips the process count.
func (d *Detector) Detect(ctx context.Context, checks []PortCheck, sentinel string, expected int) []model.ConflictRecord {
	var conflicts []model.ConflictRecord

	for _, c := range checks {
		if !d.portHeld(ctx, c.Port) {
			continue
		}
		record := model.ConflictRecord{
			Kind:    model.ConflictPortInUse,
			Port:    c.Port,
			Service: c.Name,
			Holder:  d.inspector.DescribeHolder(ctx, c.Port),
		}
		d.logger.Warn(record.String(), "service", c.Service)
		conflicts = append(conflicts, record)
	}

	if sentinel != "" {
		observed := d.inspector.CountProcesses(ctx, sentinel)
		if observed > expected {
			record := model.ConflictRecord{
				Kind:       model.ConflictExcessProcesses,
				Executable: sentinel,
				Observed:   observed,
				Expected:   expected,
			}
			d.logger.Warn(record.String())
			conflicts = append(conflicts, record)
		}
	}

	return conflicts
}

func (d *Detector) portHeld(ctx context.Context, port int) bool {
	if d.inspector.IsPortHeld(ctx, port) {
		return true
	}
	return d.checker != nil && !d.checker.IsAvailable(port)
}
