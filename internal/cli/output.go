package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/shinji-kodama/devsession/internal/model"
)

// Text styles for human-readable output. lipgloss drops the colors when
// stdout is not a terminal.
var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// portState describes a port for the status table.
type portState int

const (
	portNone portState = iota
	portFree
	portBusy
)

// portLabel renders a port availability label.
func portLabel(s portState) string {
	switch s {
	case portFree:
		return okStyle.Render("available")
	case portBusy:
		return errStyle.Render("in use")
	default:
		return mutedStyle.Render("no port")
	}
}

// FormatPortsList converts ports into a comma-separated, numerically
// sorted string. Returns "-" if there are none.
//
// Example:
//
//	[]int{5173, 4000} → "4000,5173"
//	nil               → "-"
func FormatPortsList(ports []int) string {
	if len(ports) == 0 {
		return "-"
	}

	sorted := append([]int(nil), ports...)
	sort.Ints(sorted)

	parts := make([]string, 0, len(sorted))
	for _, p := range sorted {
		parts = append(parts, strconv.Itoa(p))
	}
	return strings.Join(parts, ",")
}

// FormatServiceAddress returns the service URL when configured, otherwise
// ":port", or "" for portless services.
func FormatServiceAddress(svc model.ServiceDescriptor) string {
	if svc.URL != "" {
		return svc.URL
	}
	if svc.HasPort() {
		return fmt.Sprintf(":%d", svc.Port)
	}
	return ""
}

// FormatProjectRoot renders the project root, marking linked Git
// worktrees, which keep their own session state.
func FormatProjectRoot(root string, worktree bool) string {
	if worktree {
		return root + " (linked worktree)"
	}
	return root
}

// FormatConflict renders one conflict as a bullet line.
func FormatConflict(c model.ConflictRecord) string {
	return "  - " + c.String()
}

// FormatSuggestion describes what to do about a busy preferred port.
// free is the first available fallback, or zero when none is left.
func FormatSuggestion(svc model.ServiceDescriptor, free int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (port %d) is in use\n", svc.DisplayName(), svc.Port)
	if free > 0 {
		fmt.Fprintf(&b, "  → try port %d instead (set PORT=%d or update the configuration)\n", free, free)
	} else {
		b.WriteString("  → no free port in the fallback list\n")
	}
	return b.String()
}
