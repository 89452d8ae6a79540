package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// SessionStats summarizes one session found in the log.
type SessionStats struct {
	ID            string
	Model         string
	Start         time.Time
	End           time.Time
	Steps         int
	ToolCalls     map[string]int
	Interventions map[string]int
	APIErrors     int
	BlockedErrors int
}

// Report is the result of analyzing a log file.
type Report struct {
	Sessions []*SessionStats
	Skipped  int // malformed lines
}

// Analyze reads a JSONL event log and aggregates per-session statistics.
// Malformed lines are counted and skipped.
func Analyze(path string) (*Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer file.Close()

	sessions := make(map[string]*SessionStats)
	var order []string
	report := &Report{}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			report.Skipped++
			continue
		}

		stats, ok := sessions[entry.SessionID]
		if !ok {
			stats = &SessionStats{
				ID:            entry.SessionID,
				Start:         entry.Timestamp,
				ToolCalls:     make(map[string]int),
				Interventions: make(map[string]int),
			}
			sessions[entry.SessionID] = stats
			order = append(order, entry.SessionID)
		}
		if entry.Timestamp.After(stats.End) {
			stats.End = entry.Timestamp
		}
		if entry.Step > stats.Steps {
			stats.Steps = entry.Step
		}

		switch entry.Type {
		case EventSessionStart:
			if m, ok := entry.Data["model"].(string); ok {
				stats.Model = m
			}
		case EventToolCall:
			if name, ok := entry.Data["tool"].(string); ok {
				stats.ToolCalls[name]++
			}
		case EventIntervention:
			if kind, ok := entry.Data["kind"].(string); ok {
				stats.Interventions[kind]++
			}
		case EventAPIError:
			stats.APIErrors++
			if blocked, ok := entry.Data["blocked"].(bool); ok && blocked {
				stats.BlockedErrors++
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	for _, id := range order {
		report.Sessions = append(report.Sessions, sessions[id])
	}
	return report, nil
}

// Render formats the report for terminal display.
func (r *Report) Render() string {
	var b strings.Builder
	if len(r.Sessions) == 0 {
		b.WriteString("No sessions found in the event log.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Sessions: %d\n", len(r.Sessions))
	if r.Skipped > 0 {
		fmt.Fprintf(&b, "Malformed lines skipped: %d\n", r.Skipped)
	}
	for _, s := range r.Sessions {
		fmt.Fprintf(&b, "\nSession %s", shortID(s.ID))
		if s.Model != "" {
			fmt.Fprintf(&b, " (%s)", s.Model)
		}
		fmt.Fprintf(&b, "\n  started:  %s\n", s.Start.Local().Format(time.RFC3339))
		if !s.End.IsZero() && s.End.After(s.Start) {
			fmt.Fprintf(&b, "  duration: %s\n", s.End.Sub(s.Start).Round(time.Second))
		}
		fmt.Fprintf(&b, "  steps:    %d\n", s.Steps)
		if len(s.ToolCalls) > 0 {
			fmt.Fprintf(&b, "  tool calls:\n")
			for _, kv := range sortedCounts(s.ToolCalls) {
				fmt.Fprintf(&b, "    %-22s %d\n", kv.name, kv.count)
			}
		}
		if len(s.Interventions) > 0 {
			fmt.Fprintf(&b, "  interventions:\n")
			for _, kv := range sortedCounts(s.Interventions) {
				fmt.Fprintf(&b, "    %-22s %d\n", kv.name, kv.count)
			}
		}
		if s.APIErrors > 0 {
			fmt.Fprintf(&b, "  api errors: %d (%d blocked)\n", s.APIErrors, s.BlockedErrors)
		}
	}
	return b.String()
}

type nameCount struct {
	name  string
	count int
}

func sortedCounts(m map[string]int) []nameCount {
	out := make([]nameCount, 0, len(m))
	for name, count := range m {
		out = append(out, nameCount{name, count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
