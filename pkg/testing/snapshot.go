package testing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-drift/rendercore/pkg/rendercore"
	"github.com/go-drift/rendercore/pkg/rendering"
)

// UpdateSnapshotsEnv makes MatchesFile rewrite golden files instead of
// comparing against them when set to 1.
const UpdateSnapshotsEnv = "RENDERCORE_UPDATE_SNAPSHOTS"

// Snapshot captures the mounted host hierarchy.
type Snapshot struct {
	VisibleRect [4]float64 `json:"visibleRect"`
	Root        *MountNode `json:"root,omitempty"`
}

// MountNode represents a mount item in the serialized hierarchy.
type MountNode struct {
	ID       int64        `json:"id"`
	Type     string       `json:"type"`
	Position int          `json:"position"`
	Bounds   [4]float64   `json:"bounds"`
	Unbound  bool         `json:"unbound,omitempty"`
	Children []*MountNode `json:"children,omitempty"`
}

// CaptureSnapshot captures everything ms has mounted.
func CaptureSnapshot(ms *rendercore.MountState) *Snapshot {
	snap := &Snapshot{VisibleRect: rectArray(ms.RootHost().LocalVisibleRect())}
	if root := ms.RootItem(); root != nil {
		snap.Root = captureMountNode(root)
	}
	return snap
}

// MatchesFile compares this snapshot against a golden file. On mismatch it
// reports a diff and instructions for updating. When UpdateSnapshotsEnv is
// set to 1, the file is silently updated instead.
func (s *Snapshot) MatchesFile(t TestingT, path string) {
	t.Helper()

	if os.Getenv(UpdateSnapshotsEnv) == "1" {
		if err := s.UpdateFile(path); err != nil {
			t.Fatalf("failed to update snapshot: %v", err)
		}
		return
	}

	expected, err := loadSnapshot(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("snapshot file missing: %s\n\nTo create: %s=1 go test -run %s", path, UpdateSnapshotsEnv, t.Name())
			return
		}
		t.Fatalf("failed to load snapshot: %v", err)
		return
	}

	if diff := s.Diff(expected); diff != "" {
		t.Errorf("snapshot mismatch: %s\n%s\n\nTo update: %s=1 go test -run %s", path, diff, UpdateSnapshotsEnv, t.Name())
	}
}

// UpdateFile writes this snapshot to the given path, creating directories
// as needed.
func (s *Snapshot) UpdateFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := marshalSnapshot(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Diff returns a line diff between this snapshot and other. Returns the
// empty string if equal.
func (s *Snapshot) Diff(other *Snapshot) string {
	a, _ := marshalSnapshot(s)
	b, _ := marshalSnapshot(other)
	if bytes.Equal(a, b) {
		return ""
	}
	return unifiedDiff(string(b), string(a))
}

// --- Internal ---

func captureMountNode(item *rendercore.MountItem) *MountNode {
	node := item.Node()
	out := &MountNode{
		ID:       node.Unit().ID,
		Type:     string(node.Unit().Type),
		Position: node.PositionInParent(),
		Bounds:   rectArray(node.Bounds()),
		Unbound:  !item.IsBound(),
	}
	for _, child := range childItems(item) {
		out.Children = append(out.Children, captureMountNode(child))
	}
	return out
}

func rectArray(r rendering.Rect) [4]float64 {
	return [4]float64{round2(r.Left), round2(r.Top), round2(r.Right), round2(r.Bottom)}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func loadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("invalid snapshot JSON: %w", err)
	}
	return &snap, nil
}

func marshalSnapshot(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// unifiedDiff produces a simple line-oriented diff.
func unifiedDiff(expected, actual string) string {
	expectedLines := strings.Split(expected, "\n")
	actualLines := strings.Split(actual, "\n")

	var buf strings.Builder
	buf.WriteString("--- expected\n+++ actual\n")

	for i := range max(len(expectedLines), len(actualLines)) {
		var e, a string
		if i < len(expectedLines) {
			e = expectedLines[i]
		}
		if i < len(actualLines) {
			a = actualLines[i]
		}
		if e != a {
			if i < len(expectedLines) {
				fmt.Fprintf(&buf, "-%s\n", e)
			}
			if i < len(actualLines) {
				fmt.Fprintf(&buf, "+%s\n", a)
			}
		}
	}

	return buf.String()
}
