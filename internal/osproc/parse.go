package osproc

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shinji-kodama/devsession/internal/model"
)

// commMaxLen is the longest name Linux keeps in a process's comm field
// (TASK_COMM_LEN minus the terminating NUL). Longer names are cut, so
// `ps -o comm=` cannot match them exactly.
const commMaxLen = 15

// parsePSOutput parses `ps -A -o pid=,comm=` output and keeps the entries
// whose executable base name equals name. macOS prints full paths in comm,
// Linux prints the bare name; both reduce to the same base name.
func parsePSOutput(out []byte, name string) []model.ProcessInfo {
	var procs []model.ProcessInfo

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		pidField, comm, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(pidField)
		if err != nil {
			continue
		}
		base := filepath.Base(strings.TrimSpace(comm))
		if base == name {
			procs = append(procs, model.ProcessInfo{PID: pid, Name: base})
		}
	}

	return procs
}

// parsePSArgsOutput parses `ps -A -ww -o pid=,args=` output and keeps the
// entries whose argv[0] base name equals name. It finds processes whose
// name is too long for comm. An argv[0] containing spaces is not matched.
func parsePSArgsOutput(out []byte, name string) []model.ProcessInfo {
	var procs []model.ProcessInfo

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		if filepath.Base(fields[1]) == name {
			procs = append(procs, model.ProcessInfo{PID: pid, Name: name})
		}
	}

	return procs
}

// mergeProcesses appends the entries of extra whose pid is not in procs.
func mergeProcesses(procs, extra []model.ProcessInfo) []model.ProcessInfo {
	seen := make(map[int]bool, len(procs))
	for _, p := range procs {
		seen[p.PID] = true
	}
	for _, p := range extra {
		if !seen[p.PID] {
			seen[p.PID] = true
			procs = append(procs, p)
		}
	}
	return procs
}

// parseLsofOutput parses `lsof -nP -iTCP:<port> -sTCP:LISTEN -Fpc` output.
// Field mode emits one field per line: 'p' starts a process set, 'c' is its
// command name. Other field types are ignored.
func parseLsofOutput(out []byte, port int) []model.Listener {
	var listeners []model.Listener
	var current *model.Listener

	flush := func() {
		if current != nil {
			listeners = append(listeners, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		switch line[0] {
		case 'p':
			flush()
			pid, err := strconv.Atoi(line[1:])
			if err != nil {
				continue
			}
			current = &model.Listener{Port: port, PID: pid}
		case 'c':
			if current != nil {
				current.Process = line[1:]
			}
		}
	}
	flush()

	return listeners
}

// ssUsersRegex extracts ("name",pid=N,...) tuples from ss -p output.
var ssUsersRegex = regexp.MustCompile(`\("([^"]*)",pid=(\d+)`)

// parseSSOutput parses `ss -H -ltnp sport = :<port>` output. Each line is
// one listening socket; the users:(...) column lists every process that
// shares it.
func parseSSOutput(out []byte, port int) []model.Listener {
	var listeners []model.Listener
	seen := make(map[int]bool)

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 4 || portFromAddress(fields[3]) != port {
			continue
		}
		for _, m := range ssUsersRegex.FindAllStringSubmatch(line, -1) {
			pid, err := strconv.Atoi(m[2])
			if err != nil || seen[pid] {
				continue
			}
			seen[pid] = true
			listeners = append(listeners, model.Listener{Port: port, PID: pid, Process: m[1]})
		}
	}

	return listeners
}

// parseTasklistCSV parses `tasklist /FO CSV /NH /FI "IMAGENAME eq <image>"`
// output. When nothing matches, tasklist prints an INFO line instead of
// CSV; such lines fail the pid check and are skipped.
func parseTasklistCSV(out []byte, image string) []model.ProcessInfo {
	var procs []model.ProcessInfo

	reader := csv.NewReader(bytes.NewReader(out))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if len(record) < 2 || !strings.EqualFold(record[0], image) {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil {
			continue
		}
		procs = append(procs, model.ProcessInfo{PID: pid, Name: record[0]})
	}

	return procs
}

// parseNetstatOutput parses `netstat -ano -p TCP` output (Windows) and keeps
// LISTENING sockets whose local port equals port exactly, so 4000 does not
// match 40001.
func parseNetstatOutput(out []byte, port int) []model.Listener {
	var listeners []model.Listener
	seen := make(map[int]bool)

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || !strings.HasPrefix(strings.ToUpper(fields[0]), "TCP") {
			continue
		}
		if fields[3] != "LISTENING" || portFromAddress(fields[1]) != port {
			continue
		}
		pid, err := strconv.Atoi(fields[4])
		if err != nil || pid == 0 || seen[pid] {
			continue
		}
		seen[pid] = true
		listeners = append(listeners, model.Listener{Port: port, PID: pid})
	}

	return listeners
}

// portFromAddress returns the port of "host:port", "[::]:port" or "*:port",
// or -1 when it cannot be parsed.
func portFromAddress(addr string) int {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return -1
	}
	p, err := strconv.Atoi(addr[i+1:])
	if err != nil {
		return -1
	}
	return p
}

// DedupePIDs returns the distinct pids of listeners in ascending order.
// The socket table can list one pid several times (IPv4 and IPv6 sockets,
// forked workers sharing a port).
func DedupePIDs(listeners []model.Listener) []int {
	seen := make(map[int]bool, len(listeners))
	pids := make([]int, 0, len(listeners))
	for _, l := range listeners {
		if l.PID > 0 && !seen[l.PID] {
			seen[l.PID] = true
			pids = append(pids, l.PID)
		}
	}
	sort.Ints(pids)
	return pids
}
