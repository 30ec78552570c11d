package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aeonplan/core/internal/replay"
)

func TestReplayCommandPrintsReport(t *testing.T) {
	cmd := NewReplayCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{filepath.Join("..", "..", "..", "scripts", "session.yaml")})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("replay: %v", err)
	}

	var report replay.Report
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report.Steps) != 17 {
		t.Fatalf("expected 17 steps, got %d", len(report.Steps))
	}
	if len(report.Persisted.BoardTasks) != 2 {
		t.Fatalf("trashed card was not deleted: %d cards persisted", len(report.Persisted.BoardTasks))
	}
	if len(report.Timeline.Rows) != 2 || report.Timeline.Rows[0].Name != "Engineering" {
		t.Fatalf("unexpected row order %+v", report.Timeline.Rows)
	}
}

func TestReplayCommandFailsOnUnexpectedOutcome(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	script := "project: {name: X}\nsteps:\n  - {op: drop}\n"
	if err := os.WriteFile(path, []byte(script), 0o600); err != nil {
		t.Fatal(err)
	}

	cmd := NewReplayCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{path})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "unexpected outcome") {
		t.Fatalf("expected unexpected outcome error, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "Aeon dev") {
		t.Fatalf("unexpected output %q", out.String())
	}
}
