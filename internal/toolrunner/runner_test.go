package toolrunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/MuteSoft/apextext-sub002/internal/process"
)

// =============================================================================
// Test sinks and builders
// =============================================================================

type recordedLine struct {
	text string
	kind Kind
}

// recordingSink keeps every line and host call for inspection.
type recordingSink struct {
	mu         sync.Mutex
	lines      []recordedLine
	attached   []*Process
	detached   int
	titles     []string
	forwarders int

	// onRegister runs when the runner hands over the child's stdin.
	onRegister func(w io.WriteCloser)
}

func (s *recordingSink) AppendLine(text string, kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, recordedLine{text: text, kind: kind})
	return nil
}

func (s *recordingSink) AttachProcess(p *Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = append(s.attached, p)
}

func (s *recordingSink) DetachProcess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detached++
}

func (s *recordingSink) RegisterInputForwarder(w io.WriteCloser) {
	s.mu.Lock()
	s.forwarders++
	hook := s.onRegister
	s.mu.Unlock()
	if hook != nil {
		hook(w)
	}
}

func (s *recordingSink) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles = append(s.titles, title)
}

func (s *recordingSink) snapshot() []recordedLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedLine(nil), s.lines...)
}

func (s *recordingSink) textsOf(kind Kind) []string {
	var out []string
	for _, l := range s.snapshot() {
		if l.kind == kind {
			out = append(out, l.text)
		}
	}
	return out
}

// failingSink rejects every line.
type failingSink struct {
	DiscardSink
	calls atomic.Int64
}

func (s *failingSink) AppendLine(string, Kind) error {
	s.calls.Add(1)
	return errors.New("console closed")
}

// busyBuilder fails with ETXTBSY a fixed number of times before delegating.
type busyBuilder struct {
	failures int
	calls    atomic.Int64
}

func (b *busyBuilder) BuildCommand(c *process.Command) (*exec.Cmd, error) {
	if int(b.calls.Add(1)) <= b.failures {
		return nil, &os.PathError{Op: "fork/exec", Path: c.BaseCommand()[0], Err: syscall.ETXTBSY}
	}
	return process.ExecBuilder{}.BuildCommand(c)
}

func newTestRunner(cfg Config) *Runner {
	return New(cfg)
}

func shCommand(tool, script string) *process.Command {
	return process.NewCommand(process.Spec{
		ToolName:    tool,
		BaseCommand: []string{"sh", "-c"},
		Params:      []string{script},
	})
}

// =============================================================================
// Basic runs
// =============================================================================

func TestExecute_EchoHello(t *testing.T) {
	r := newTestRunner(Config{})
	sink := &recordingSink{}
	cmd := process.NewCommand(process.Spec{
		ToolName:    "Echo",
		BaseCommand: []string{"echo"},
		Params:      []string{"hello"},
	})

	result := r.Execute(context.Background(), cmd, sink, true)

	want := []recordedLine{
		{StartMessage("Echo"), KindMessage},
		{"hello", KindOutput},
		{FinishMessage("Echo"), KindMessage},
	}
	got := sink.snapshot()
	if len(got) != len(want) {
		t.Fatalf("lines = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if !result.Successful {
		t.Error("Successful = false, want true")
	}
	if !result.ExitObserved {
		t.Error("ExitObserved = false, want true")
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
	if result.StdoutLines != 1 || result.StderrLines != 0 {
		t.Errorf("line counts = %d/%d, want 1/0", result.StdoutLines, result.StderrLines)
	}
	if result.RunID == "" {
		t.Error("RunID is empty")
	}
	if len(sink.attached) != 1 || sink.detached != 1 {
		t.Errorf("attach/detach = %d/%d, want 1/1", len(sink.attached), sink.detached)
	}
	if len(sink.titles) != 1 || sink.titles[0] != "Echo" {
		t.Errorf("titles = %v, want [Echo]", sink.titles)
	}
	if sink.forwarders != 1 {
		t.Errorf("forwarders = %d, want 1", sink.forwarders)
	}
}

func TestExecute_NilCommand(t *testing.T) {
	r := newTestRunner(Config{})
	sink := &recordingSink{}

	result := r.Execute(context.Background(), nil, sink, true)

	if got := sink.snapshot(); len(got) != 0 {
		t.Errorf("nil command produced lines: %v", got)
	}
	if !result.Successful || result.ExitObserved {
		t.Errorf("result = %+v, want successful without exit", result)
	}
	if len(sink.attached) != 0 || sink.detached != 0 {
		t.Error("nil command touched the host")
	}
}

func TestExecute_SpawnFailure(t *testing.T) {
	var spawnFailures atomic.Int64
	r := newTestRunner(Config{
		Callbacks: Callbacks{
			OnSpawnFailure: func(tool string, err error) { spawnFailures.Add(1) },
		},
	})
	sink := &recordingSink{}
	cmd := process.NewCommand(process.Spec{
		ToolName:    "Missing",
		BaseCommand: []string{"/no/such/dir/apex-missing-tool"},
	})

	result := r.Execute(context.Background(), cmd, sink, true)

	got := sink.snapshot()
	if len(got) != 3 {
		t.Fatalf("lines = %v, want start, error, finish", got)
	}
	if got[0].text != StartMessage("Missing") {
		t.Errorf("first line = %q", got[0].text)
	}
	if got[1].kind != KindError || !strings.Contains(got[1].text, "apex-missing-tool") {
		t.Errorf("error line = %+v", got[1])
	}
	if got[2].text != FinishMessage("Missing") {
		t.Errorf("last line = %q", got[2].text)
	}

	if !result.Successful {
		t.Error("spawn failure should leave Successful true")
	}
	if result.ExitObserved {
		t.Error("ExitObserved = true for a process that never started")
	}
	if result.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", result.ExitCode)
	}
	if !errors.Is(result.SpawnError, ErrSpawnFailure) {
		t.Errorf("SpawnError = %v, want ErrSpawnFailure", result.SpawnError)
	}
	if len(sink.attached) != 0 || sink.detached != 0 {
		t.Error("failed spawn should not attach or detach")
	}
	if spawnFailures.Load() != 1 {
		t.Errorf("OnSpawnFailure called %d times, want 1", spawnFailures.Load())
	}
}

func TestRun_SpawnFailureProcess(t *testing.T) {
	r := newTestRunner(Config{})
	cmd := process.NewCommand(process.Spec{
		ToolName:    "Missing",
		BaseCommand: []string{"apex-definitely-not-installed"},
	})

	p := r.Run(context.Background(), cmd, DiscardSink{}, false)
	if p == nil {
		t.Fatal("Run returned nil for a non-nil command")
	}
	if p.Started() {
		t.Error("Started() = true after spawn failure")
	}
	if p.State() != StateFailed {
		t.Errorf("State() = %v, want failed", p.State())
	}
	if p.PID() != 0 {
		t.Errorf("PID() = %d, want 0", p.PID())
	}
	if err := p.Stop(time.Second); err != nil {
		t.Errorf("Stop on unstarted process = %v", err)
	}
	if !errors.Is(p.Err(), exec.ErrNotFound) {
		t.Errorf("Err() = %v, want exec.ErrNotFound", p.Err())
	}
}

func TestCollect_NilProcess(t *testing.T) {
	r := newTestRunner(Config{})
	sink := &recordingSink{}
	cmd := shCommand("Shell", "true")

	result := r.Collect(context.Background(), cmd, nil, sink, true)

	got := sink.snapshot()
	if len(got) != 1 || got[0].text != FinishMessage("Shell") {
		t.Errorf("lines = %v, want only the finish message", got)
	}
	if !result.Successful || result.ExitObserved {
		t.Errorf("result = %+v", result)
	}
}

func TestExecute_HiddenOutput(t *testing.T) {
	r := newTestRunner(Config{})
	sink := &recordingSink{}

	r.Execute(context.Background(), shCommand("Quiet", "echo out"), sink, false)

	got := sink.snapshot()
	if len(got) != 2 {
		t.Fatalf("lines = %v, want output and finish", got)
	}
	if got[0].text == StartMessage("Quiet") {
		t.Error("start message emitted with showOutput=false")
	}
	if got[1].text != FinishMessage("Quiet") {
		t.Errorf("last line = %q", got[1].text)
	}
	if len(sink.attached) != 0 || sink.detached != 0 || len(sink.titles) != 0 {
		t.Error("hidden run should not attach, detach or set a title")
	}
}

func TestMessages(t *testing.T) {
	if got := StartMessage("Compile"); got != "'Compile' tool executing..." {
		t.Errorf("StartMessage = %q", got)
	}
	if got := FinishMessage("Compile"); got != "'Compile' tool execution finished." {
		t.Errorf("FinishMessage = %q", got)
	}
	if got := FinishMessage(""); got != "'' tool execution finished." {
		t.Errorf("FinishMessage(empty) = %q", got)
	}
}

// =============================================================================
// Success flag
// =============================================================================

func TestExecute_SuccessFlag(t *testing.T) {
	tests := []struct {
		name       string
		script     string
		successful bool
		exitCode   int
	}{
		{"stdout only", "echo fine", true, 0},
		{"nonzero exit without stderr", "echo fine; exit 3", true, 3},
		{"single stderr line", "echo oops 1>&2", false, 0},
		{"stderr then stdout", "echo oops 1>&2; echo fine", false, 0},
		{"no output", "true", true, 0},
	}

	r := newTestRunner(Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := r.Execute(context.Background(), shCommand("Shell", tt.script), &recordingSink{}, true)
			if result.Successful != tt.successful {
				t.Errorf("Successful = %v, want %v", result.Successful, tt.successful)
			}
			if result.ExitCode != tt.exitCode {
				t.Errorf("ExitCode = %d, want %d", result.ExitCode, tt.exitCode)
			}
		})
	}
}

func TestExecute_RecentErrors(t *testing.T) {
	r := newTestRunner(Config{})
	script := `for i in 1 2 3 4 5 6 7 8 9 10 11 12; do echo "Main.java:$i: error: bad" 1>&2; done`

	result := r.Execute(context.Background(), shCommand("Compile", script), &recordingSink{}, false)

	if len(result.RecentErrors) != recentErrorLines {
		t.Fatalf("RecentErrors = %d lines, want %d", len(result.RecentErrors), recentErrorLines)
	}
	if result.RecentErrors[recentErrorLines-1] != "Main.java:12: error: bad" {
		t.Errorf("newest error = %q", result.RecentErrors[recentErrorLines-1])
	}
}

func TestExecute_Diagnostics(t *testing.T) {
	r := newTestRunner(Config{})
	script := `echo "A.java:1: error: cannot find symbol" 1>&2; echo "A.java:2: warning: unchecked" 1>&2; echo "B.java:3: error: ';' expected" 1>&2`

	result := r.Execute(context.Background(), shCommand("Compile", script), &recordingSink{}, false)

	if result.Diagnostics["error:"] != 2 || result.Diagnostics["warning:"] != 1 || result.Diagnostics["cannot find symbol"] != 1 {
		t.Errorf("Diagnostics = %v", result.Diagnostics)
	}
}

// =============================================================================
// Stream failures
// =============================================================================

func TestExecute_StreamFailureIsReported(t *testing.T) {
	tests := []struct {
		name           string
		redirect       string
		wantSuccessful bool
	}{
		{"stdout", "", true},
		{"stderr", " 1>&2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRunner(Config{})
			sink := &recordingSink{}
			// One line longer than maxLineSize, then more output on the same stream
			script := fmt.Sprintf(`{ head -c %d /dev/zero | tr '\0' a; echo; echo after; }%s`, maxLineSize+1024, tt.redirect)

			result := r.Execute(context.Background(), shCommand("Flood", script), sink, false)

			if !result.ExitObserved || result.ExitCode != 0 {
				t.Fatalf("result = %+v", result)
			}
			if result.Successful != tt.wantSuccessful {
				t.Errorf("Successful = %v, want %v", result.Successful, tt.wantSuccessful)
			}

			var reported bool
			for _, line := range sink.textsOf(KindError) {
				if strings.Contains(line, ErrStreamFailure.Error()) && strings.Contains(line, tt.name) {
					reported = true
				}
			}
			if !reported {
				t.Errorf("no stream failure line in %v", sink.textsOf(KindError))
			}

			// The finish message still follows the failure
			lines := sink.snapshot()
			if last := lines[len(lines)-1]; last.kind != KindMessage || last.text != FinishMessage("Flood") {
				t.Errorf("last line = %+v", last)
			}
		})
	}
}

// =============================================================================
// Draining
// =============================================================================

func TestExecute_DrainsBothStreams(t *testing.T) {
	const n = 2000
	r := newTestRunner(Config{PullDelay: 0})
	sink := &recordingSink{}
	script := fmt.Sprintf(`i=1; while [ $i -le %d ]; do echo out$i; echo err$i 1>&2; i=$((i+1)); done`, n)

	result := r.Execute(context.Background(), shCommand("Chatty", script), sink, false)

	out := sink.textsOf(KindOutput)
	errs := sink.textsOf(KindError)
	if len(out) != n || len(errs) != n {
		t.Fatalf("got %d stdout / %d stderr lines, want %d each", len(out), len(errs), n)
	}
	for i := 0; i < n; i++ {
		if out[i] != fmt.Sprintf("out%d", i+1) {
			t.Fatalf("stdout line %d = %q", i, out[i])
		}
		if errs[i] != fmt.Sprintf("err%d", i+1) {
			t.Fatalf("stderr line %d = %q", i, errs[i])
		}
	}

	last := sink.snapshot()
	if last[len(last)-1].text != FinishMessage("Chatty") {
		t.Error("finish message is not the last line")
	}
	if result.StdoutLines != n || result.StderrLines != n {
		t.Errorf("result counts = %d/%d", result.StdoutLines, result.StderrLines)
	}
}

func TestExecute_FinalLineWithoutNewline(t *testing.T) {
	r := newTestRunner(Config{})
	sink := &recordingSink{}

	r.Execute(context.Background(), shCommand("Printf", "printf 'a\\nb'"), sink, false)

	out := sink.textsOf(KindOutput)
	if strings.Join(out, ",") != "a,b" {
		t.Errorf("stdout = %v, want [a b]", out)
	}
}

func TestExecute_PullDelay(t *testing.T) {
	r := newTestRunner(Config{PullDelay: 20 * time.Millisecond})

	start := time.Now()
	r.Execute(context.Background(), shCommand("Slow", "echo 1; echo 2; echo 3; echo 4; echo 5"), DiscardSink{}, false)

	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("5 lines with 20ms delay took %v, want >= 100ms", elapsed)
	}
}

func TestExecute_SinkFailure(t *testing.T) {
	r := newTestRunner(Config{})
	sink := &failingSink{}

	result := r.Execute(context.Background(), shCommand("Shell", "echo a; echo b; echo c 1>&2"), sink, true)

	if result.StdoutLines != 2 || result.StderrLines != 1 {
		t.Errorf("line counts = %d/%d, want 2/1", result.StdoutLines, result.StderrLines)
	}
	// start + 3 lines + finish
	if got := sink.calls.Load(); got != 5 {
		t.Errorf("AppendLine calls = %d, want 5", got)
	}
	if result.Successful {
		t.Error("stderr line should clear Successful even when the sink fails")
	}
}

// =============================================================================
// Command shape
// =============================================================================

func TestExecute_ArgumentOrder(t *testing.T) {
	r := newTestRunner(Config{})
	sink := &recordingSink{}
	cmd := process.NewCommand(process.Spec{
		ToolName:    "Printf",
		BaseCommand: []string{"printf", "%s\\n"},
		Options:     []string{"-opt"},
		Resources:   []string{"A.java", "B.java"},
		Params:      []string{"param"},
	})

	r.Execute(context.Background(), cmd, sink, false)

	want := "-opt,A.java,B.java,param"
	if got := strings.Join(sink.textsOf(KindOutput), ","); got != want {
		t.Errorf("argv order = %q, want %q", got, want)
	}
}

func TestExecute_WorkingDirectory(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	tmp := t.TempDir()

	tests := []struct {
		name string
		dir  string
		want string
	}{
		{"existing directory", tmp, tmp},
		{"missing directory falls back", filepath.Join(tmp, "does-not-exist"), cwd},
		{"empty uses default", "", cwd},
	}

	r := newTestRunner(Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			cmd := process.NewCommand(process.Spec{
				ToolName:         "Pwd",
				BaseCommand:      []string{"pwd"},
				WorkingDirectory: tt.dir,
			})

			result := r.Execute(context.Background(), cmd, sink, false)
			if !result.ExitObserved {
				t.Fatalf("pwd did not run: %v", result.SpawnError)
			}

			out := sink.textsOf(KindOutput)
			if len(out) != 1 {
				t.Fatalf("stdout = %v", out)
			}
			got, _ := filepath.EvalSymlinks(out[0])
			want, _ := filepath.EvalSymlinks(tt.want)
			if got != want {
				t.Errorf("pwd = %q, want %q", got, want)
			}
		})
	}
}

func TestExecute_Environment(t *testing.T) {
	r := newTestRunner(Config{})
	sink := &recordingSink{}
	cmd := process.NewCommand(process.Spec{
		ToolName:    "Env",
		BaseCommand: []string{"sh", "-c", `echo "$APEX_TEST_VALUE"`},
		Environment: map[string]string{"APEX_TEST_VALUE": "from-command"},
	})

	r.Execute(context.Background(), cmd, sink, false)

	if got := sink.textsOf(KindOutput); len(got) != 1 || got[0] != "from-command" {
		t.Errorf("stdout = %v, want [from-command]", got)
	}
}

// =============================================================================
// Input forwarding and interruption
// =============================================================================

func TestExecute_InputForwarding(t *testing.T) {
	r := newTestRunner(Config{})
	sink := &recordingSink{
		onRegister: func(w io.WriteCloser) {
			go func() {
				_, _ = io.WriteString(w, "ping\n")
				_ = w.Close()
			}()
		},
	}

	result := r.Execute(context.Background(), shCommand("Reader", `read line; echo "got:$line"`), sink, false)

	if got := sink.textsOf(KindOutput); len(got) != 1 || got[0] != "got:ping" {
		t.Errorf("stdout = %v, want [got:ping]", got)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d", result.ExitCode)
	}
}

func TestCollect_ContextCancel(t *testing.T) {
	r := newTestRunner(Config{StopTimeout: 2 * time.Second})
	sink := &recordingSink{}
	cmd := shCommand("Sleeper", "echo started; sleep 30")

	ctx, cancel := context.WithCancel(context.Background())
	p := r.Run(ctx, cmd, sink, true)
	if !p.Started() {
		t.Fatalf("spawn failed: %v", p.Err())
	}

	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	result := r.Collect(ctx, cmd, p, sink, true)

	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Collect took %v after cancel", elapsed)
	}
	if !result.Interrupted {
		t.Error("Interrupted = false")
	}
	if result.ExitCode == 0 {
		t.Error("killed process reported exit code 0")
	}
	last := sink.snapshot()
	if last[len(last)-1].text != FinishMessage("Sleeper") {
		t.Error("finish message missing after interruption")
	}
	if p.State() != StateExited {
		t.Errorf("State() = %v, want exited", p.State())
	}
}

func TestProcess_Stop(t *testing.T) {
	r := newTestRunner(Config{})
	sink := &recordingSink{}
	cmd := shCommand("Sleeper", "sleep 30")

	p := r.Run(context.Background(), cmd, sink, true)
	if !p.Started() {
		t.Fatalf("spawn failed: %v", p.Err())
	}
	if p.PID() <= 0 {
		t.Errorf("PID() = %d", p.PID())
	}
	if sink.attached[0] != p {
		t.Error("attached process differs from returned process")
	}

	stopErr := make(chan error, 1)
	go func() {
		time.Sleep(50 * time.Millisecond)
		if p.Uptime() <= 0 {
			t.Error("Uptime() = 0 while running")
		}
		stopErr <- p.Stop(5 * time.Second)
	}()

	result := r.Collect(context.Background(), cmd, p, sink, true)

	if err := <-stopErr; err != nil {
		t.Errorf("Stop() = %v", err)
	}
	if result.ExitCode != 128+int(syscall.SIGTERM) {
		t.Errorf("ExitCode = %d, want %d", result.ExitCode, 128+int(syscall.SIGTERM))
	}
	if p.Uptime() != 0 {
		t.Error("Uptime() != 0 after exit")
	}
	select {
	case <-p.Done():
	default:
		t.Error("Done() not closed after Collect")
	}
}

// =============================================================================
// Spawn retries and callbacks
// =============================================================================

func TestRun_BusyRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		retries   int
		wantStart bool
		wantCalls int64
	}{
		{"no failures", 0, 3, true, 1},
		{"recovers within retries", 2, 3, true, 3},
		{"exhausts retries", 5, 2, false, 3},
		{"retries disabled", 1, 0, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &busyBuilder{failures: tt.failures}
			r := newTestRunner(Config{
				Builder:      b,
				SpawnRetries: tt.retries,
				Backoff:      BackoffConfig{Initial: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2},
			})
			cmd := shCommand("Busy", "true")

			p := r.Run(context.Background(), cmd, DiscardSink{}, false)
			r.Collect(context.Background(), cmd, p, DiscardSink{}, false)

			if p.Started() != tt.wantStart {
				t.Errorf("Started() = %v, want %v (err %v)", p.Started(), tt.wantStart, p.Err())
			}
			if got := b.calls.Load(); got != tt.wantCalls {
				t.Errorf("BuildCommand calls = %d, want %d", got, tt.wantCalls)
			}
			if !tt.wantStart && !errors.Is(p.Err(), syscall.ETXTBSY) {
				t.Errorf("Err() = %v, want ETXTBSY", p.Err())
			}
		})
	}
}

func TestRunner_Callbacks(t *testing.T) {
	var (
		mu      sync.Mutex
		states  []State
		started int
		lines   = map[Kind]int{}
		exits   []Result
	)
	r := newTestRunner(Config{
		Callbacks: Callbacks{
			OnStateChange: func(runID string, old, new State) {
				mu.Lock()
				defer mu.Unlock()
				states = append(states, new)
			},
			OnStart: func(runID, tool string, pid int) {
				mu.Lock()
				defer mu.Unlock()
				started++
			},
			OnLine: func(tool string, kind Kind) {
				mu.Lock()
				defer mu.Unlock()
				lines[kind]++
			},
			OnExit: func(result Result) {
				mu.Lock()
				defer mu.Unlock()
				exits = append(exits, result)
			},
		},
	})

	r.Execute(context.Background(), shCommand("Shell", "echo a; echo b 1>&2"), DiscardSink{}, false)

	mu.Lock()
	defer mu.Unlock()
	wantStates := []State{StateStarting, StateRunning, StateExited}
	if fmt.Sprint(states) != fmt.Sprint(wantStates) {
		t.Errorf("states = %v, want %v", states, wantStates)
	}
	if started != 1 {
		t.Errorf("OnStart called %d times", started)
	}
	if lines[KindOutput] != 1 || lines[KindError] != 1 {
		t.Errorf("OnLine counts = %v", lines)
	}
	if len(exits) != 1 || exits[0].Successful {
		t.Errorf("OnExit results = %+v", exits)
	}
}

func TestRunner_ConcurrentRuns(t *testing.T) {
	r := newTestRunner(Config{})

	var wg sync.WaitGroup
	results := make([]Result, 8)
	sinks := make([]*recordingSink, 8)
	for i := range results {
		wg.Add(1)
		sinks[i] = &recordingSink{}
		go func(i int) {
			defer wg.Done()
			results[i] = r.Execute(context.Background(), shCommand(fmt.Sprintf("T%d", i), fmt.Sprintf("echo run%d", i)), sinks[i], false)
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i, res := range results {
		if seen[res.RunID] {
			t.Errorf("duplicate RunID %q", res.RunID)
		}
		seen[res.RunID] = true
		if out := sinks[i].textsOf(KindOutput); len(out) != 1 || out[0] != fmt.Sprintf("run%d", i) {
			t.Errorf("sink %d got %v", i, out)
		}
	}
}
