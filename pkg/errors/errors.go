// Package errors provides structured error handling for the mount engine.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel precondition violations.
var (
	// ErrNilTree is returned when Mount is called without a render tree.
	ErrNilTree = errors.New("trying to mount a nil render tree")
	// ErrAlreadyMounting is returned when a mount pass is re-entered.
	ErrAlreadyMounting = errors.New("trying to mount while already mounting")
	// ErrWrongThread is returned when an entry point runs off the UI thread.
	ErrWrongThread = errors.New("mount engine called off the UI thread")
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindPrecondition indicates a violated entry-point precondition.
	KindPrecondition
	// KindThread indicates a thread-affinity violation.
	KindThread
	// KindDesync indicates the id to mount item map went out of sync.
	KindDesync
	// KindHostNotMounted indicates a child was mounted before its host.
	KindHostNotMounted
	// KindInvariant indicates a structural invariant violation.
	KindInvariant
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindThread:
		return "thread"
	case KindDesync:
		return "desync"
	case KindHostNotMounted:
		return "host-not-mounted"
	case KindInvariant:
		return "invariant"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// MountError represents a structured error raised by the mount engine.
type MountError struct {
	// Op is the operation that failed (e.g., "MountState.Mount").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// ID is the render unit id involved, or -1 when not applicable.
	ID int64
	// Err is the underlying error.
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *MountError) Error() string {
	if e.ID >= 0 {
		return fmt.Sprintf("%s [%s] id=%d: %v", e.Op, e.Kind, e.ID, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *MountError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "MountState.Mount").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// HostNotMountedError is raised when a render unit is mounted while its
// host is not, and the engine is configured not to mount the host itself.
type HostNotMountedError struct {
	// ChildID and ChildType describe the render unit being mounted.
	ChildID   int64
	ChildType string
	// ParentID and ParentType describe its unmounted host.
	ParentID   int64
	ParentType string
	// Parent and Child are debug descriptions of both tree nodes.
	Parent string
	Child  string
	// Tree is a dump of the whole render tree.
	Tree string
	// ProcessLog records the mount loop decisions leading up to the failure.
	ProcessLog string
}

func (e *HostNotMountedError) Error() string {
	processLog := e.ProcessLog
	if processLog == "" {
		processLog = "NA"
	}
	return fmt.Sprintf("trying to mount a render tree node, but its host is not mounted.\n"+
		"Parent RenderUnit: %s.\nChild RenderUnit: %s.\nEntire tree:\n%s.\nAdditional Process Log:\n%s.",
		e.Parent, e.Child, e.Tree, processLog)
}

// LeftoverChildrenError is raised when a host still holds mount items after
// all of its render tree children were unmounted.
type LeftoverChildrenError struct {
	HostID int64
	Count  int
}

func (e *LeftoverChildrenError) Error() string {
	return fmt.Sprintf("recursively unmounting items from host id=%d left %d items behind, "+
		"maybe because they are not tracked by its mount state", e.HostID, e.Count)
}

// ParentContentTypeError is raised when the mounted content of a parent
// render unit is not a host.
type ParentContentTypeError struct {
	ParentID    int64
	ParentType  string
	ContentKind string
	ChildID     int64
	ChildType   string
}

func (e *ParentContentTypeError) Error() string {
	return fmt.Sprintf("trying to mount a render tree node, its parent should be a host, but was %q.\n"+
		"Parent RenderUnit: id=%d; contentType=%q.\nChild RenderUnit: id=%d; contentType=%q.",
		e.ContentKind, e.ParentID, e.ParentType, e.ChildID, e.ChildType)
}

// DesyncError describes a mount item that does not match the render tree
// node at the same index.
type DesyncError struct {
	Index       int
	CurrentID   int64
	NewID       int64
	CurrentType string
	NewType     string
}

func (e *DesyncError) Error() string {
	if e.CurrentID != e.NewID {
		return fmt.Sprintf("current render unit id does not match the new one: index=%d currentId=%d newId=%d",
			e.Index, e.CurrentID, e.NewID)
	}
	return fmt.Sprintf("trying to update a mount item with a different content type: index=%d id=%d current=%q new=%q",
		e.Index, e.NewID, e.CurrentType, e.NewType)
}

// ErrorHandler receives errors reported by the mount engine.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *MountError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
