package controller

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

// writeScript writes a tiny shell script standing in for the agent CLI and
// returns its path. #!/bin/sh scripts are used instead of a Go test
// binary since the controller invokes agentPath as an arbitrary
// executable.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-agent.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

type frameSink struct {
	mu     sync.Mutex
	frames []protocol.ServerFrame
}

func (s *frameSink) emit(f protocol.ServerFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
}

func (s *frameSink) snapshot() []protocol.ServerFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.ServerFrame, len(s.frames))
	copy(out, s.frames)
	return out
}

func waitForFrame(t *testing.T, sink *frameSink, frameType string, timeout time.Duration) protocol.ServerFrame {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, f := range sink.snapshot() {
			if f.Type == frameType {
				return f
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for frame type %q", frameType)
	return protocol.ServerFrame{}
}

func TestSendMessage_EmitsActivityThenStoppedOnSuccess(t *testing.T) {
	script := writeScript(t, "exit 0\n")
	sink := &frameSink{}
	c := New(script, sink.emit, nil)

	if err := c.SendMessage("s1", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	waitForFrame(t, sink, protocol.FrameSessionActivity, 2*time.Second)
	stopped := waitForFrame(t, sink, protocol.FrameSessionStopped, 2*time.Second)
	if stopped.Reason != protocol.StopReasonCompleted {
		t.Errorf("reason = %q, want completed", stopped.Reason)
	}
	if c.IsRunning("s1") {
		t.Error("session should be removed from the registry after exit")
	}
}

func TestSendMessage_BusyWhileInFlight(t *testing.T) {
	script := writeScript(t, "sleep 1\n")
	sink := &frameSink{}
	c := New(script, sink.emit, nil)

	if err := c.SendMessage("s1", "first"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	err := c.SendMessage("s1", "second")
	if err != ErrSessionBusy {
		t.Fatalf("err = %v, want ErrSessionBusy", err)
	}
}

func TestSendMessage_EmitsErrorOnNonZeroExit(t *testing.T) {
	script := writeScript(t, "echo boom 1>&2\nexit 1\n")
	sink := &frameSink{}
	c := New(script, sink.emit, nil)

	if err := c.SendMessage("s1", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	errFrame := waitForFrame(t, sink, protocol.FrameSessionError, 2*time.Second)
	if errFrame.Error != "boom" {
		t.Errorf("Error = %q, want %q", errFrame.Error, "boom")
	}
	stopped := waitForFrame(t, sink, protocol.FrameSessionStopped, 2*time.Second)
	if stopped.Reason != protocol.StopReasonErrored {
		t.Errorf("reason = %q, want errored", stopped.Reason)
	}
}

func TestStopSession_NoRunningProcess(t *testing.T) {
	c := New("/bin/true", nil, nil)
	if err := c.StopSession("nope"); err != ErrNoRunningProcess {
		t.Fatalf("err = %v, want ErrNoRunningProcess", err)
	}
}

func TestStopSession_SignalsRunningProcess(t *testing.T) {
	script := writeScript(t, "trap 'exit 0' INT\nsleep 5\n")
	sink := &frameSink{}
	c := New(script, sink.emit, nil)

	if err := c.SendMessage("s1", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	time.Sleep(50 * time.Millisecond) // let the process install its trap

	if err := c.StopSession("s1"); err != nil {
		t.Fatalf("StopSession: %v", err)
	}
	if c.IsRunning("s1") {
		t.Error("StopSession must not return until the process has exited")
	}

	waitForFrame(t, sink, protocol.FrameSessionStopped, 2*time.Second)
}

func TestStartSession_GeneratesSessionID(t *testing.T) {
	script := writeScript(t, "exit 0\n")
	sink := &frameSink{}
	c := New(script, sink.emit, nil)

	sessionID, err := c.StartSession("/tmp/proj", "", "do something")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if sessionID == "" {
		t.Fatal("expected a non-empty generated sessionId")
	}

	started := waitForFrame(t, sink, protocol.FrameSessionStarted, 2*time.Second)
	if started.SessionID != sessionID {
		t.Errorf("started.SessionID = %q, want %q", started.SessionID, sessionID)
	}
	if started.ProjectID != "/tmp/proj" {
		t.Errorf("started.ProjectID = %q, want %q", started.ProjectID, "/tmp/proj")
	}
	if started.CWD != "/tmp/proj" {
		t.Errorf("started.CWD = %q, want %q (cwd falls back to projectDir)", started.CWD, "/tmp/proj")
	}
}

func TestShutdown_SuppressesFurtherEmissionsAndClearsRegistry(t *testing.T) {
	script := writeScript(t, "trap 'exit 0' TERM\nsleep 5\n")
	sink := &frameSink{}
	c := New(script, sink.emit, nil)

	if err := c.SendMessage("s1", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	waitForFrame(t, sink, protocol.FrameSessionActivity, 2*time.Second)

	c.Shutdown()
	time.Sleep(200 * time.Millisecond)

	if c.IsRunning("s1") {
		t.Error("registry should be cleared on shutdown")
	}
	for _, f := range sink.snapshot() {
		if f.Type == protocol.FrameSessionStopped {
			t.Error("shutdown must suppress lifecycle emissions for processes it terminates")
		}
	}

	if err := c.SendMessage("s2", "after shutdown"); err == nil {
		t.Error("spawning after shutdown should fail")
	}
}
