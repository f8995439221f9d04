package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ClaudeRunner executes one work attempt by invoking the claude CLI in
// the item's workspace with streaming JSON output. Each output line
// counts as observable activity for the inactivity watchdog.
type ClaudeRunner struct {
	// Binary is the claude executable name. Empty means "claude".
	Binary string
	logger func(format string, args ...interface{})
}

// NewClaudeRunner creates a claude-CLI work executor.
func NewClaudeRunner(logger func(format string, args ...interface{})) *ClaudeRunner {
	if logger == nil {
		logger = func(format string, args ...interface{}) {}
	}
	return &ClaudeRunner{logger: logger}
}

// streamEvent is one line of claude --output-format stream-json output.
// Only the fields the runner inspects are declared.
type streamEvent struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
	Result    string `json:"result,omitempty"`
}

// RunAttempt invokes claude for the item and reports the outcome. A
// context cancel kills the subprocess.
func (r *ClaudeRunner) RunAttempt(ctx context.Context, req AttemptRequest) (*Report, error) {
	binary := r.Binary
	if binary == "" {
		binary = "claude"
	}

	args := []string{
		"-p", workPrompt(req),
		"--output-format", "stream-json",
		"--verbose",
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = req.WorkspaceRef
	cmd.Env = os.Environ()
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: creating stdout pipe: %v", ErrUnrecoverable, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting %s: %v", ErrUnrecoverable, binary, err)
	}

	var last streamEvent
	var sawResult bool
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if req.OnActivity != nil {
			req.OnActivity()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event streamEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue // Skip malformed lines
		}
		if event.Type == "result" {
			last = event
			sawResult = true
		}
	}

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if waitErr != nil {
		r.logger("claude exited with error for %s: %v: %s",
			req.Item.ID, waitErr, strings.TrimSpace(stderr.String()))
		return nil, fmt.Errorf("claude attempt for %s: %w", req.Item.ID, waitErr)
	}
	if !sawResult {
		return nil, fmt.Errorf("claude attempt for %s: no result event", req.Item.ID)
	}

	report := &Report{
		SessionRef: last.SessionID,
		Verdict: Verdict{
			Passed:  !last.IsError && last.Subtype == "success",
			Summary: summarize(last.Result),
		},
	}
	return report, nil
}

// workPrompt renders the attempt prompt for an item.
func workPrompt(req AttemptRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Work on issue %s", req.Item.ID)
	if req.Item.Title != "" {
		fmt.Fprintf(&b, ": %s", req.Item.Title)
	}
	b.WriteString(".\n")
	if req.Attempt > 1 {
		fmt.Fprintf(&b, "This is rework attempt %d; review prior work in the workspace before continuing.\n", req.Attempt)
	}
	b.WriteString("When finished, verify the result and report success or failure.")
	return b.String()
}

// summarize truncates a result blob for the dispatch record.
func summarize(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 500 {
		return s[:500] + "..."
	}
	return s
}
