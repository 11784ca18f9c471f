// Package rendercore mounts committed render trees into native content.
//
// A RenderTree is the immutable output of a layout pass: a flat, commit
// ordered list of RenderTreeNodes, each wrapping a RenderUnit with bounds and
// a position in its parent host. MountState reconciles successive render
// trees against the live content it owns, keyed by render unit id:
//
//	root := rendercore.NewHost()
//	ms := rendercore.NewMountState(root)
//	if err := ms.Mount(tree); err != nil {
//	    // programmer or integration error; stop rendering
//	}
//
// Content is a closed variant: a *Host that can hold mount items, or a *Leaf
// wrapping an arbitrary native handle. Content instances are recycled per
// content type through ContentPools.
//
// # Extensions
//
// MountExtensions observe the mount lifecycle and may veto mounting through
// reference counting. An extension acquires a mount reference for an id to
// keep it mounted and releases it to let it go; MountState only mounts ids
// holding at least one reference when any registered extension can prevent
// mount. See package incrementalmount for the visibility-driven extension.
//
// # Threading
//
// MountState is not safe for concurrent use. All entry points must run on the
// UI thread; WithThreadChecker turns violations into reported errors.
package rendercore
