// Package runner executes configured database clients and streams their
// output. It enforces the one-process-per-document rule and owns the temp
// files backing snippet execution.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/lexcodex/runsql/config"
	"github.com/lexcodex/runsql/dialect"
)

// ErrConnectionNotConfigured reports an execution attempt before a connection
// was chosen for the document.
var ErrConnectionNotConfigured = errors.New("no connection configured for document")

// ErrAlreadyRunning reports a second execution while one is in flight for the
// same document. The caller kills the running process first.
var ErrAlreadyRunning = errors.New("a process is already running for this document")

// ErrProcessSpawn reports that the client process could not be started.
var ErrProcessSpawn = errors.New("failed to spawn client process")

// Stream tags which pipe a chunk arrived on.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// Chunk is one delivered line of client output.
type Chunk struct {
	Stream Stream
	Text   string
}

// State enumerates the terminal states of a run.
type State string

const (
	Running   State = "running"
	Completed State = "completed"
	Failed    State = "failed"
	Killed    State = "killed"
)

// Status describes how a run finished.
type Status struct {
	State State
	Code  int
	Err   error
}

// Marker renders the exit-status line appended to the output view.
func (s Status) Marker() string {
	switch s.State {
	case Killed:
		return "--- killed"
	case Failed:
		if s.Err != nil {
			return fmt.Sprintf("--- failed (exit %d): %v", s.Code, s.Err)
		}
		return fmt.Sprintf("--- failed (exit %d)", s.Code)
	default:
		return "--- done (exit 0)"
	}
}

// ViewSink receives output incrementally. Append is called once per chunk in
// arrival order; Close is called exactly once after the last chunk.
type ViewSink interface {
	Append(Chunk)
	Close(Status)
}

// Payload designates the client input: a file on disk or statement text that
// the runner writes to a temp file for the duration of the run.
type Payload struct {
	FilePath  string
	Statement string
}

// FilePayload runs an existing file.
func FilePayload(path string) Payload { return Payload{FilePath: path} }

// StatementPayload runs statement text via a temp file.
func StatementPayload(text string) Payload { return Payload{Statement: text} }

// Record tracks one spawned client process.
type Record struct {
	DocID     string
	Args      []string
	StartedAt time.Time

	cmd  *exec.Cmd
	done chan struct{}

	mu     sync.Mutex
	state  State
	status Status
}

// State returns the current lifecycle state.
func (r *Record) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Status returns the terminal status; only meaningful after Done is closed.
func (r *Record) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Done is closed when the process has exited and the record was cleared.
func (r *Record) Done() <-chan struct{} { return r.done }

func (r *Record) finish(status Status) {
	r.mu.Lock()
	r.state = status.State
	r.status = status
	r.mu.Unlock()
}

// attach publishes the spawned command on the record and reports whether a
// kill already landed while the process was being spawned.
func (r *Record) attach(cmd *exec.Cmd) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmd = cmd
	return r.state == Killed
}

// kill marks the record killed and signals the process group. Clients that
// fork (sh wrappers, sqlplus children) would otherwise hold the output pipes
// open after their parent dies.
func (r *Record) kill() {
	r.mu.Lock()
	if r.state == Running {
		r.state = Killed
	}
	cmd := r.cmd
	r.mu.Unlock()
	if cmd != nil {
		killGroup(cmd)
	}
}

func (r *Record) wasKilled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == Killed
}

// Runner spawns client processes, one per document at most.
type Runner struct {
	mu      sync.Mutex
	records map[string]*Record
	logger  *log.Logger
}

// New builds a runner.
func New(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		records: make(map[string]*Record),
		logger:  logger,
	}
}

// Lookup returns the running record for a document, if any.
func (r *Runner) Lookup(docID string) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[docID]
	return rec, ok
}

// Start spawns the connection's client against the payload and begins
// streaming into sink. It fails without spawning when no connection is set or
// a run is already in flight for the document. Spawn failures leave no record
// behind.
func (r *Runner) Start(ctx context.Context, docID string, conn *config.Connection, payload Payload, sink ViewSink) (*Record, error) {
	if conn == nil || len(conn.Cmd) == 0 {
		return nil, ErrConnectionNotConfigured
	}
	if sink == nil {
		return nil, errors.New("view sink required")
	}

	inputPath := payload.FilePath
	cleanup := func() {}
	if payload.Statement != "" {
		path, err := writeTempStatement(payload.Statement)
		if err != nil {
			return nil, err
		}
		inputPath = path
		cleanup = func() { _ = os.Remove(path) }
	}

	args, err := dialect.BuildArgs(conn.Cmd, inputPath)
	if err != nil {
		cleanup()
		return nil, err
	}

	rec := &Record{
		DocID:     docID,
		Args:      args,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
		state:     Running,
	}

	// Reserve the slot before spawning so two concurrent starts cannot
	// both pass the check.
	r.mu.Lock()
	if _, exists := r.records[docID]; exists {
		r.mu.Unlock()
		cleanup()
		return nil, ErrAlreadyRunning
	}
	r.records[docID] = rec
	r.mu.Unlock()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	// Own process group so a kill reaches the client's children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		killGroup(cmd)
		return nil
	}
	cmd.WaitDelay = 5 * time.Second
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.clear(docID)
		cleanup()
		return nil, fmt.Errorf("%w %s: %w", ErrProcessSpawn, args[0], err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.clear(docID)
		cleanup()
		return nil, fmt.Errorf("%w %s: %w", ErrProcessSpawn, args[0], err)
	}
	if err := cmd.Start(); err != nil {
		r.clear(docID)
		cleanup()
		return nil, fmt.Errorf("%w %s: %w", ErrProcessSpawn, args[0], err)
	}
	if rec.attach(cmd) {
		// A kill raced the spawn; take the group down now.
		killGroup(cmd)
	}
	r.logger.Printf("started %s (pid %d) for %s", args[0], cmd.Process.Pid, docID)

	chunks := make(chan Chunk, 64)
	var readers sync.WaitGroup
	readers.Add(2)
	go readStream(&readers, Stdout, stdout, chunks)
	go readStream(&readers, Stderr, stderr, chunks)

	pumped := make(chan struct{})
	go func() {
		defer close(pumped)
		for chunk := range chunks {
			sink.Append(chunk)
		}
	}()

	go func() {
		readers.Wait()
		close(chunks)
		err := cmd.Wait()
		<-pumped
		cleanup()

		status := Status{State: Completed}
		switch {
		case rec.wasKilled():
			status = Status{State: Killed, Err: err}
		case err != nil:
			code := -1
			if cmd.ProcessState != nil {
				code = cmd.ProcessState.ExitCode()
			}
			status = Status{State: Failed, Code: code, Err: err}
		}
		rec.finish(status)
		r.clear(docID)
		r.logger.Printf("finished %s for %s: %s", args[0], docID, status.State)
		sink.Close(status)
		close(rec.done)
	}()

	return rec, nil
}

// Kill requests termination of the document's running process. It is a no-op
// when nothing is running.
func (r *Runner) Kill(docID string) {
	r.mu.Lock()
	rec, ok := r.records[docID]
	r.mu.Unlock()
	if !ok {
		return
	}
	rec.kill()
}

// killGroup signals the command's process group, falling back to the direct
// child when the group signal fails.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
}

// Wait blocks until the record's process has exited and returns its status.
func (r *Runner) Wait(rec *Record) Status {
	<-rec.done
	return rec.Status()
}

func (r *Runner) clear(docID string) {
	r.mu.Lock()
	delete(r.records, docID)
	r.mu.Unlock()
}

// readStream forwards pipe output line by line until EOF. Lines are
// delivered whole regardless of length; a read error is surfaced as a
// stderr chunk rather than left to stall the pipe.
func readStream(wg *sync.WaitGroup, stream Stream, pipe io.Reader, out chan<- Chunk) {
	defer wg.Done()
	br := bufio.NewReaderSize(pipe, 64*1024)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			out <- Chunk{Stream: stream, Text: strings.TrimRight(line, "\r\n")}
		}
		if err != nil {
			if err != io.EOF {
				out <- Chunk{Stream: Stderr, Text: fmt.Sprintf("read %s: %v", stream, err)}
			}
			return
		}
	}
}

func writeTempStatement(text string) (string, error) {
	f, err := os.CreateTemp("", "runsql-*.sql")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
