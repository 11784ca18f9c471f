package testing

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCaptureSnapshot_Structure(t *testing.T) {
	tester := nestedTester(t)
	snap := tester.CaptureSnapshot()

	if snap.VisibleRect != [4]float64{0, 0, 100, 50} {
		t.Errorf("VisibleRect = %v", snap.VisibleRect)
	}
	root := snap.Root
	if root == nil || root.ID != 0 || len(root.Children) != 2 {
		t.Fatalf("unexpected root %+v", root)
	}
	host := root.Children[0]
	if host.ID != 1 || host.Type != "host" || len(host.Children) != 2 {
		t.Fatalf("unexpected host %+v", host)
	}
	leaf := host.Children[1]
	if leaf.ID != 3 || leaf.Position != 1 || leaf.Bounds != [4]float64{0, 10, 100, 20} {
		t.Errorf("unexpected leaf %+v", leaf)
	}
	if image := root.Children[1]; image.ID != 4 || image.Type != "image" || image.Position != 1 {
		t.Errorf("unexpected image %+v", image)
	}
}

func TestCaptureSnapshot_Empty(t *testing.T) {
	tester := NewMountTesterWithT(t)
	if snap := tester.CaptureSnapshot(); snap.Root != nil {
		t.Errorf("expected no root before Mount, got %+v", snap.Root)
	}
}

func TestSnapshot_Diff(t *testing.T) {
	tester := nestedTester(t)
	a := tester.CaptureSnapshot()
	if diff := a.Diff(tester.CaptureSnapshot()); diff != "" {
		t.Errorf("expected no diff for identical snapshots, got:\n%s", diff)
	}

	if err := tester.ScrollTo(5); err != nil {
		t.Fatalf("ScrollTo: %v", err)
	}
	if diff := a.Diff(tester.CaptureSnapshot()); diff == "" {
		t.Error("expected diff after the visible rect moved")
	}

	if err := tester.MountState().Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	detached := tester.CaptureSnapshot()
	if !detached.Root.Unbound || !detached.Root.Children[0].Children[0].Unbound {
		t.Error("expected detached items to be marked unbound")
	}
}

func TestSnapshot_UpdateAndMatch(t *testing.T) {
	t.Setenv(UpdateSnapshotsEnv, "")
	snap := nestedTester(t).CaptureSnapshot()
	path := filepath.Join(t.TempDir(), "testdata", "nested.snapshot.json")

	if err := snap.UpdateFile(path); err != nil {
		t.Fatalf("UpdateFile failed: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("snapshot file should exist after UpdateFile")
	}

	// MatchesFile should pass now
	snap.MatchesFile(t, path)
}

func TestSnapshot_MatchesFile_MissingFile(t *testing.T) {
	t.Setenv(UpdateSnapshotsEnv, "")
	snap := nestedTester(t).CaptureSnapshot()

	failed := false
	sub := &fatalRecorder{name: t.Name(), onFatal: func() { failed = true }}
	snap.MatchesFile(sub, filepath.Join(t.TempDir(), "missing.json"))

	if !failed {
		t.Error("expected MatchesFile to fail for missing file")
	}
}

func TestSnapshot_MatchesFile_Mismatch(t *testing.T) {
	t.Setenv(UpdateSnapshotsEnv, "")
	tester := nestedTester(t)
	path := filepath.Join(t.TempDir(), "snap.json")
	if err := tester.CaptureSnapshot().UpdateFile(path); err != nil {
		t.Fatalf("UpdateFile failed: %v", err)
	}

	if err := tester.MountState().UnmountAllItems(); err != nil {
		t.Fatalf("UnmountAllItems: %v", err)
	}

	errored := false
	sub := &errorRecorder{name: t.Name(), onError: func() { errored = true }}
	tester.CaptureSnapshot().MatchesFile(sub, path)

	if !errored {
		t.Error("expected MatchesFile to report error for mismatch")
	}
}

func TestSnapshot_UpdateMode(t *testing.T) {
	snap := nestedTester(t).CaptureSnapshot()
	path := filepath.Join(t.TempDir(), "update.snapshot.json")

	t.Setenv(UpdateSnapshotsEnv, "1")
	snap.MatchesFile(t, path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("snapshot file should be created in update mode")
	}
}

// fatalRecorder intercepts Fatalf calls for testing MatchesFile failures.
type fatalRecorder struct {
	name    string
	onFatal func()
}

func (r *fatalRecorder) Fatalf(format string, args ...any) { r.onFatal() }
func (r *fatalRecorder) Errorf(format string, args ...any) {}
func (r *fatalRecorder) Helper()                           {}
func (r *fatalRecorder) Name() string                      { return r.name }

// errorRecorder intercepts Errorf calls for testing MatchesFile mismatches.
type errorRecorder struct {
	name    string
	onError func()
}

func (r *errorRecorder) Fatalf(format string, args ...any) {}
func (r *errorRecorder) Errorf(format string, args ...any) { r.onError() }
func (r *errorRecorder) Helper()                           {}
func (r *errorRecorder) Name() string                      { return r.name }
