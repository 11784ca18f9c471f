package errors

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestMountErrorString(t *testing.T) {
	err := &MountError{
		Op:   "MountState.Mount",
		Kind: KindPrecondition,
		ID:   -1,
		Err:  ErrNilTree,
	}
	got := err.Error()
	want := "MountState.Mount [precondition]: trying to mount a nil render tree"
	if got != want {
		t.Errorf("MountError.Error() = %q, want %q", got, want)
	}
}

func TestMountErrorWithID(t *testing.T) {
	err := &MountError{
		Op:   "MountState.unmountItemRecursively",
		Kind: KindInvariant,
		ID:   42,
		Err:  &LeftoverChildrenError{HostID: 42, Count: 2},
	}
	got := err.Error()
	if !strings.Contains(got, "id=42") {
		t.Errorf("error string %q should contain id", got)
	}
	var leftover *LeftoverChildrenError
	if !errors.As(err, &leftover) {
		t.Fatal("expected errors.As to find LeftoverChildrenError")
	}
	if leftover.Count != 2 {
		t.Errorf("Count = %d, want 2", leftover.Count)
	}
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindPrecondition, "precondition"},
		{KindThread, "thread"},
		{KindDesync, "desync"},
		{KindHostNotMounted, "host-not-mounted"},
		{KindInvariant, "invariant"},
		{KindPanic, "panic"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestPanicErrorString(t *testing.T) {
	err := &PanicError{Value: "test panic", Timestamp: time.Now()}
	if got, want := err.Error(), "panic: test panic"; got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}
	err.Op = "MountState.Mount"
	if got, want := err.Error(), "panic in MountState.Mount: test panic"; got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}
}

func TestHostNotMountedErrorString(t *testing.T) {
	err := &HostNotMountedError{
		ChildID:  3,
		ParentID: 2,
		Parent:   "id=2",
		Child:    "id=3",
		Tree:     "root",
	}
	got := err.Error()
	for _, want := range []string{"host is not mounted", "Parent RenderUnit: id=2", "Child RenderUnit: id=3", "NA"} {
		if !strings.Contains(got, want) {
			t.Errorf("error string %q should contain %q", got, want)
		}
	}
}

func TestDesyncErrorString(t *testing.T) {
	idErr := &DesyncError{Index: 2, CurrentID: 4, NewID: 5}
	if !strings.Contains(idErr.Error(), "does not match") {
		t.Errorf("unexpected id mismatch message %q", idErr.Error())
	}
	typeErr := &DesyncError{Index: 2, CurrentID: 5, NewID: 5, CurrentType: "text", NewType: "image"}
	if !strings.Contains(typeErr.Error(), "different content type") {
		t.Errorf("unexpected type mismatch message %q", typeErr.Error())
	}
}

func TestReport(t *testing.T) {
	var captured *MountError
	handler := &testHandler{
		onError: func(err *MountError) {
			captured = err
		},
	}

	oldHandler := DefaultHandler
	SetHandler(handler)
	defer SetHandler(oldHandler)

	Report(&MountError{Op: "test.op", Kind: KindDesync, ID: -1, Err: ErrAlreadyMounting})

	if captured == nil {
		t.Fatal("expected error to be captured")
	}
	if captured.Op != "test.op" {
		t.Errorf("Op = %q, want %q", captured.Op, "test.op")
	}
	if captured.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestFatalReportsAndReturns(t *testing.T) {
	var captured *MountError
	oldHandler := DefaultHandler
	SetHandler(&testHandler{onError: func(err *MountError) { captured = err }})
	defer SetHandler(oldHandler)

	err := Fatal("MountState.Mount", KindPrecondition, -1, ErrAlreadyMounting)
	if captured != err {
		t.Fatal("expected Fatal to report the returned error")
	}
	if !errors.Is(err, ErrAlreadyMounting) {
		t.Error("expected Fatal error to wrap the cause")
	}
	if err.StackTrace == "" {
		t.Error("expected stack trace to be captured")
	}
}

func TestRecoverInto(t *testing.T) {
	var captured *PanicError
	oldHandler := DefaultHandler
	SetHandler(&testHandler{onPanic: func(err *PanicError) { captured = err }})
	defer SetHandler(oldHandler)

	run := func() (err error) {
		defer RecoverInto("test.recover", &err)
		panic("intentional test panic")
	}
	err := run()

	if captured == nil {
		t.Fatal("expected panic to be recovered and captured")
	}
	if captured.Value != "intentional test panic" {
		t.Errorf("Value = %v, want %q", captured.Value, "intentional test panic")
	}
	if captured.Op != "test.recover" {
		t.Errorf("Op = %q, want %q", captured.Op, "test.recover")
	}
	var me *MountError
	if !errors.As(err, &me) || me.Kind != KindPanic {
		t.Fatalf("err = %v, want a panic MountError", err)
	}
	var pe *PanicError
	if !errors.As(err, &pe) || pe != captured {
		t.Error("expected the returned error to wrap the reported PanicError")
	}
}

func TestRecoverIntoWithoutPanic(t *testing.T) {
	oldHandler := DefaultHandler
	SetHandler(&testHandler{onPanic: func(*PanicError) { t.Error("unexpected panic report") }})
	defer SetHandler(oldHandler)

	run := func() (err error) {
		defer RecoverInto("test.ok", &err)
		return ErrNilTree
	}
	if err := run(); err != ErrNilTree {
		t.Errorf("err = %v, want the function's own error", err)
	}
}

func TestSetHandlerNil(t *testing.T) {
	oldHandler := DefaultHandler
	defer SetHandler(oldHandler)

	SetHandler(nil)
	if _, ok := DefaultHandler.(*LogHandler); !ok {
		t.Errorf("SetHandler(nil) should set LogHandler, got %T", DefaultHandler)
	}
}

func TestLogHandlerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	h := &LogHandler{Verbose: true, Logger: zerolog.New(&buf)}
	h.HandleError(&MountError{
		Op:         "MountState.Mount",
		Kind:       KindHostNotMounted,
		ID:         7,
		Err:        errors.New("boom"),
		StackTrace: "frame",
	})
	out := buf.String()
	for _, want := range []string{`"op":"MountState.Mount"`, `"kind":"host-not-mounted"`, `"id":7`, `"stack":"frame"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q should contain %q", out, want)
		}
	}
}

type testHandler struct {
	onError func(*MountError)
	onPanic func(*PanicError)
}

func (h *testHandler) HandleError(err *MountError) {
	if h.onError != nil {
		h.onError(err)
	}
}

func (h *testHandler) HandlePanic(err *PanicError) {
	if h.onPanic != nil {
		h.onPanic(err)
	}
}
