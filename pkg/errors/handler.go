package errors

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// DefaultHandler is the global error handler.
	// It defaults to a LogHandler writing to stderr.
	DefaultHandler ErrorHandler = NewLogHandler(false)

	handlerMu sync.RWMutex
)

// SetHandler configures the global error handler.
// Pass nil to restore the default LogHandler.
func SetHandler(h ErrorHandler) {
	handlerMu.Lock()
	defer handlerMu.Unlock()
	if h == nil {
		DefaultHandler = NewLogHandler(false)
	} else {
		DefaultHandler = h
	}
}

// getHandler returns the current error handler.
func getHandler() ErrorHandler {
	handlerMu.RLock()
	defer handlerMu.RUnlock()
	return DefaultHandler
}

// Report sends an error to the global handler.
// If err.Timestamp is zero, it is set to the current time.
func Report(err *MountError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	if h := getHandler(); h != nil {
		h.HandleError(err)
	}
}

// ReportPanic sends a panic error to the global handler.
func ReportPanic(err *PanicError) {
	if err == nil {
		return
	}
	if h := getHandler(); h != nil {
		h.HandlePanic(err)
	}
}

// RecoverInto recovers a panic, reports it as a PanicError and stores a
// KindPanic MountError wrapping it in *errp. It must be deferred directly:
//
//	defer errors.RecoverInto("MountState.Mount", &err)
func RecoverInto(op string, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	pe := &PanicError{
		Op:         op,
		Value:      r,
		StackTrace: CaptureStack(),
		Timestamp:  time.Now(),
	}
	ReportPanic(pe)
	if errp != nil {
		*errp = &MountError{
			Op:         op,
			Kind:       KindPanic,
			ID:         -1,
			Err:        pe,
			StackTrace: pe.StackTrace,
			Timestamp:  pe.Timestamp,
		}
	}
}

// CaptureStack returns the current call stack as a string.
// It skips the first few frames to exclude the CaptureStack call itself.
func CaptureStack() string {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(3, pcs[:])
	if n == 0 {
		return ""
	}

	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		frame, more := frames.Next()
		sb.WriteString(frame.Function)
		sb.WriteString("\n\t")
		sb.WriteString(frame.File)
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(frame.Line))
		sb.WriteString("\n")
		if !more {
			break
		}
	}
	return sb.String()
}

// Fatal builds a MountError for op, captures the stack, reports it to the
// global handler and returns it so callers can propagate it.
func Fatal(op string, kind ErrorKind, id int64, err error) *MountError {
	me := &MountError{
		Op:         op,
		Kind:       kind,
		ID:         id,
		Err:        err,
		StackTrace: CaptureStack(),
		Timestamp:  time.Now(),
	}
	Report(me)
	return me
}
