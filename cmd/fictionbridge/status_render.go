package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"fictionbridge/internal/config"
	"fictionbridge/internal/daemonctl"
	"fictionbridge/internal/deps"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// stateLabel turns a supervisor state such as "running" into "Running".
func stateLabel(state string) string {
	state = strings.TrimSpace(state)
	if state == "" {
		return "Unknown"
	}
	return cases.Title(language.Und).String(state)
}

func workerStateKind(state string, connected bool) statusKind {
	switch {
	case connected:
		return statusOK
	case state == "starting" || state == "stopping":
		return statusWarn
	default:
		return statusError
	}
}

func renderStatus(snapshot daemonctl.StatusSnapshot, cfg *config.Config, colorize bool) []string {
	lines := renderSectionHeader("Daemon", colorize)
	if !snapshot.Reachable {
		lines = append(lines, renderStatusLine("Daemon", statusError, "Not running", colorize))
		lines = append(lines, renderStatusLine("Worker", statusInfo, "Unknown (daemon offline)", colorize))
		return append(lines, configLines(cfg, colorize)...)
	}

	status := snapshot.Status
	daemonMsg := "Running"
	if status.PID > 0 {
		daemonMsg = fmt.Sprintf("Running (pid %d)", status.PID)
	}
	lines = append(lines, renderStatusLine("Daemon", statusOK, daemonMsg, colorize))

	workerMsg := stateLabel(status.State)
	if status.Connected && status.WorkerPID > 0 {
		workerMsg = fmt.Sprintf("%s (pid %d)", workerMsg, status.WorkerPID)
	}
	lines = append(lines, renderStatusLine("Worker", workerStateKind(status.State, status.Connected), workerMsg, colorize))

	if status.Command != "" {
		lines = append(lines, renderStatusLine("Command", statusInfo, status.Command, colorize))
	}
	if !status.StartedAt.IsZero() && status.Connected {
		uptime := time.Since(status.StartedAt).Truncate(time.Second)
		lines = append(lines, renderStatusLine("Uptime", statusInfo, uptime.String(), colorize))
	}
	if status.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusWarn, status.LastError, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Transport", colorize)...)
	lines = append(lines, renderTable(
		[]string{"Pending", "Malformed", "Events"},
		[][]string{{
			strconv.Itoa(status.Pending),
			strconv.FormatUint(status.Malformed, 10),
			strconv.FormatUint(status.EventSeq, 10),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight},
	))
	if status.Malformed > 0 {
		lines = append(lines, renderStatusLine("Malformed", statusWarn, "worker wrote lines that were not JSON-RPC", colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Paths", colorize)...)
	if status.LockPath != "" {
		lines = append(lines, renderStatusLine("Lock", statusInfo, status.LockPath, colorize))
	}
	archive := "disabled"
	if status.ArchivePath != "" {
		archive = status.ArchivePath
	}
	lines = append(lines, renderStatusLine("Archive", statusInfo, archive, colorize))
	return append(lines, configLines(cfg, colorize)...)
}

func configLines(cfg *config.Config, colorize bool) []string {
	if cfg == nil {
		return nil
	}
	lines := []string{""}
	lines = append(lines, renderSectionHeader("Config", colorize)...)
	lines = append(lines, renderStatusLine("Mode", statusInfo, cfg.Sidecar.Mode, colorize))
	lines = append(lines, renderStatusLine("Call timeout", statusInfo, cfg.CallTimeout().String(), colorize))
	ntfy := yesNo(strings.TrimSpace(cfg.Notifications.NtfyTopic) != "")
	kind := statusOK
	if ntfy == "no" {
		kind = statusWarn
	}
	lines = append(lines, renderStatusLine("Notifications", kind, ntfy, colorize))

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
	return append(lines, dependencyLines(deps.CheckWorker(cfg), colorize)...)
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+1)
	missing := make([]string, 0)
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		if !dep.Optional {
			missing = append(missing, dep.Name)
		}
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", ")+" (fictionbridge start will fail)", colorize))
	}
	return lines
}

// statusView is the --json shape of the status command.
type statusView struct {
	Reachable bool   `json:"reachable"`
	Running   bool   `json:"running"`
	PID       int    `json:"pid,omitempty"`
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	WorkerPID int    `json:"worker_pid,omitempty"`
	Command   string `json:"command,omitempty"`
	LastError string `json:"last_error,omitempty"`
	Pending   int    `json:"pending"`
	Malformed uint64 `json:"malformed"`
	EventSeq  uint64 `json:"event_seq"`
}

func newStatusView(snapshot daemonctl.StatusSnapshot) statusView {
	if !snapshot.Reachable {
		return statusView{State: "unknown"}
	}
	s := snapshot.Status
	return statusView{
		Reachable: true,
		Running:   s.Running,
		PID:       s.PID,
		State:     s.State,
		Connected: s.Connected,
		WorkerPID: s.WorkerPID,
		Command:   s.Command,
		LastError: s.LastError,
		Pending:   s.Pending,
		Malformed: s.Malformed,
		EventSeq:  s.EventSeq,
	}
}
