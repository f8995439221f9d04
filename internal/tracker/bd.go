package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"foreman/internal/graph"
)

// BDClient shells out to the bd CLI for issue data. All queries use
// --json output.
type BDClient struct {
	// Dir is the working directory for bd invocations (the directory
	// holding the beads database). Empty means the process cwd.
	Dir string
}

// NewBDClient creates a bd-backed tracker client.
func NewBDClient(dir string) *BDClient {
	return &BDClient{Dir: dir}
}

// bdIssue is the shape of one issue in bd list --json output.
type bdIssue struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Labels       []string `json:"labels"`
	Dependencies []struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"dependencies"`
}

// FetchItems lists the children of projectID with their dependency
// edges, preserving bd's listing order.
func (c *BDClient) FetchItems(ctx context.Context, projectID string) ([]graph.RawItem, error) {
	out, err := c.run(ctx, "list", "--parent", projectID, "--deps", "--json")
	if err != nil {
		return nil, fmt.Errorf("listing items for %s: %w", projectID, err)
	}

	var issues []bdIssue
	if err := json.Unmarshal(out, &issues); err != nil {
		return nil, fmt.Errorf("parsing bd list output: %w", err)
	}

	items := make([]graph.RawItem, 0, len(issues))
	for _, issue := range issues {
		item := graph.RawItem{
			ID:      issue.ID,
			IssueID: issue.ID,
			Title:   issue.Title,
			Labels:  issue.Labels,
		}
		for _, dep := range issue.Dependencies {
			switch dep.Type {
			case "blocks":
				item.Relations = append(item.Relations, graph.Relation{
					Type: graph.RelationBlocks, RelatedID: dep.ID,
				})
			case "blocked_by", "blocked-by":
				item.Relations = append(item.Relations, graph.Relation{
					Type: graph.RelationBlockedBy, RelatedID: dep.ID,
				})
			}
			// Other edge types (tracks, related) are not dependencies.
		}
		items = append(items, item)
	}
	return items, nil
}

// UpdateStatus runs bd update to set an issue status.
func (c *BDClient) UpdateStatus(ctx context.Context, issueID, status string) error {
	if _, err := c.run(ctx, "update", issueID, "--status", status); err != nil {
		return fmt.Errorf("updating %s to %s: %w", issueID, status, err)
	}
	return nil
}

// Comment posts a comment on an issue.
func (c *BDClient) Comment(ctx context.Context, issueID, body string) error {
	if _, err := c.run(ctx, "comment", issueID, "-m", body); err != nil {
		return fmt.Errorf("commenting on %s: %w", issueID, err)
	}
	return nil
}

// run executes bd with the given args and returns stdout.
func (c *BDClient) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "bd", args...)
	cmd.Dir = c.Dir
	cmd.Env = os.Environ()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("bd %s: %v: %s", args[0], err, stderr.String())
	}
	return stdout.Bytes(), nil
}
