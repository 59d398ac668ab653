package backup

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"overwatch/internal/domain/model"
	"overwatch/pkg/log"
)

// CommandRunner executes one external process invocation. Arguments are
// passed directly to the process, never through a shell. Tests substitute
// a canned implementation.
type CommandRunner interface {
	Run(ctx context.Context, env []string, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes the command, capturing stdout and stderr separately.
func (ExecRunner) Run(ctx context.Context, env []string, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// resticClient wraps invocations of the external backup tool against one
// repository. The repository's own lock file is the concurrency control
// for backup operations; this client never retries on contention, it only
// classifies it.
type resticClient struct {
	binary  string
	env     []string
	timeout time.Duration
	runner  CommandRunner
}

// run invokes the tool and returns its stdout. Tool failures keep the raw
// stderr attached for classification by the caller.
func (r *resticClient) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	stdout, stderr, err := r.runner.Run(ctx, r.env, r.binary, args...)
	if err != nil {
		return stdout, &toolError{args: args, stderr: string(stderr), cause: err}
	}
	return stdout, nil
}

// toolError carries the tool's raw stderr for pattern matching. It is
// logged in full server-side and never handed to callers verbatim.
type toolError struct {
	args   []string
	stderr string
	cause  error
}

func (e *toolError) Error() string {
	return fmt.Sprintf("backup tool %v failed: %v: %s", e.args, e.cause, strings.TrimSpace(e.stderr))
}

func (e *toolError) Unwrap() error { return e.cause }

// repositoryAbsent reports whether the tool output indicates the
// repository has not been initialized yet.
func repositoryAbsent(stderr string) bool {
	return strings.Contains(stderr, "Is there a repository at the following location?") ||
		strings.Contains(stderr, "repository does not exist") ||
		strings.Contains(stderr, "unable to open config file")
}

// genericToolFailure logs the full tool error server-side and returns the
// deliberately generic error callers see, so repository internals (bucket
// names, paths, credentials) never leak through error text.
func genericToolFailure(op string, err error) error {
	log.Error("Backup tool invocation failed", "operation", op, "error", err)
	return fmt.Errorf("%w: backup operation %s failed, see server logs", model.ErrExternalTool, op)
}

// resticSummary is the summary record of the tool's JSON-lines backup
// output.
type resticSummary struct {
	MessageType string `json:"message_type"`
	SnapshotID  string `json:"snapshot_id"`
}

// parseSnapshotID extracts the snapshot id from streamed JSON-lines backup
// output. Non-JSON lines and non-summary records are skipped.
func parseSnapshotID(output []byte) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var summary resticSummary
		if err := json.Unmarshal(line, &summary); err != nil {
			continue
		}
		if summary.MessageType == "summary" && summary.SnapshotID != "" {
			return summary.SnapshotID, nil
		}
	}
	return "", fmt.Errorf("backup tool output contained no summary record")
}

// resticSnapshot mirrors one entry of `snapshots --json`.
type resticSnapshot struct {
	ID      string    `json:"id"`
	ShortID string    `json:"short_id"`
	Time    time.Time `json:"time"`
	Tags    []string  `json:"tags"`
	Paths   []string  `json:"paths"`
}

// parseSnapshots decodes `snapshots --json` output.
func parseSnapshots(output []byte) ([]model.Snapshot, error) {
	var raw []resticSnapshot
	if err := json.Unmarshal(bytes.TrimSpace(output), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot list: %w", err)
	}
	out := make([]model.Snapshot, 0, len(raw))
	for _, s := range raw {
		out = append(out, model.Snapshot{
			ID:      s.ID,
			ShortID: s.ShortID,
			Time:    s.Time,
			Tags:    s.Tags,
			Paths:   s.Paths,
		})
	}
	return out, nil
}
