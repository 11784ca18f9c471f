// Package testing provides a test harness for the mount engine.
//
// # Quick Start
//
// Create a tester, build a tree from recording units, mount it and make
// assertions:
//
//	func TestColumn(t *testing.T) {
//	    tester := mounttest.NewMountTesterWithT(t)
//	    rec := tester.Recorder()
//	    tree := mounttest.MustBuild(t, rec.Column(tester.Builder(), 1, 100, 10, 10))
//	    if err := tester.Mount(tree); err != nil {
//	        t.Fatal(err)
//	    }
//
//	    // Find mounted items
//	    if !tester.Find(mounttest.ByID(2)).Exists() {
//	        t.Error("expected item 2 to be mounted")
//	    }
//
//	    // Inspect the lifecycle
//	    t.Log(rec.Trace()) // "mount(0) bind(0) mount(1) bind(1) ..."
//	}
//
// Units created by a Recorder carry one mount binder and one attach binder
// that record every call, and leaves hold a Handle counting visible-bounds
// notifications.
//
// # Snapshot Testing
//
// Capture and compare the mounted host hierarchy:
//
//	snapshot := tester.CaptureSnapshot()
//	snapshot.MatchesFile(t, "testdata/column.snapshot.json")
//
// Update snapshots with:
//
//	RENDERCORE_UPDATE_SNAPSHOTS=1 go test ./...
//
// # Pass Statistics
//
// The tester installs a PassClock as the mount state's time source. Every
// pass lasts DefaultPassCost and is followed by PassInterval of idle time, so
// recorded start times and durations are deterministic:
//
//	tester.Clock().SetPassCost(10 * time.Millisecond)
//	tester.ScrollTo(200) // recorded as a 10ms pass
package testing
