package runner

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/runsql/config"
)

// collectSink gathers chunks and the terminal status for assertions.
type collectSink struct {
	mu     sync.Mutex
	chunks []Chunk
	status Status
	closed chan struct{}
}

func newCollectSink() *collectSink {
	return &collectSink{closed: make(chan struct{})}
}

func (s *collectSink) Append(c Chunk) {
	s.mu.Lock()
	s.chunks = append(s.chunks, c)
	s.mu.Unlock()
}

func (s *collectSink) Close(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	close(s.closed)
}

func (s *collectSink) wait(t *testing.T) Status {
	t.Helper()
	select {
	case <-s.closed:
	case <-time.After(10 * time.Second):
		t.Fatal("sink never closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *collectSink) lines(stream Stream) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.chunks {
		if c.Stream == stream {
			out = append(out, c.Text)
		}
	}
	return out
}

// shellConn builds a connection whose suffixed input path lands behind a
// shell comment, so the script alone decides the behavior.
func shellConn(script string) *config.Connection {
	return &config.Connection{
		Name:    "test",
		Dialect: "postgres",
		Cmd:     []string{"sh", "-c", script + " #"},
	}
}

func TestStartWithoutConnection(t *testing.T) {
	r := New(nil)
	sink := newCollectSink()

	_, err := r.Start(context.Background(), "doc", nil, FilePayload("x.sql"), sink)
	require.ErrorIs(t, err, ErrConnectionNotConfigured)

	_, err = r.Start(context.Background(), "doc", &config.Connection{Name: "empty"}, FilePayload("x.sql"), sink)
	require.ErrorIs(t, err, ErrConnectionNotConfigured)

	_, ok := r.Lookup("doc")
	require.False(t, ok)
}

func TestSpawnFailureLeavesNoRecord(t *testing.T) {
	r := New(nil)
	sink := newCollectSink()
	conn := &config.Connection{Name: "bad", Dialect: "postgres", Cmd: []string{"runsql-no-such-binary", ""}}

	_, err := r.Start(context.Background(), "doc", conn, FilePayload("x.sql"), sink)
	require.ErrorIs(t, err, ErrProcessSpawn)
	require.NotErrorIs(t, err, ErrConnectionNotConfigured)

	_, ok := r.Lookup("doc")
	require.False(t, ok)

	// slot is free again
	rec, err := r.Start(context.Background(), "doc", shellConn("true"), FilePayload(""), newCollectSink())
	require.NoError(t, err)
	r.Wait(rec)
}

func TestStreamsFileThroughClient(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q.sql")
	require.NoError(t, os.WriteFile(path, []byte("select 1;\nselect 2;\n"), 0o644))

	r := New(nil)
	sink := newCollectSink()
	conn := &config.Connection{Name: "cat", Dialect: "postgres", Cmd: []string{"cat", ""}}

	rec, err := r.Start(context.Background(), "doc", conn, FilePayload(path), sink)
	require.NoError(t, err)
	require.Equal(t, []string{"cat", path}, rec.Args)

	status := sink.wait(t)
	require.Equal(t, Completed, status.State)
	require.Equal(t, []string{"select 1;", "select 2;"}, sink.lines(Stdout))
	require.Equal(t, "--- done (exit 0)", status.Marker())
}

func TestChunkOrderPreserved(t *testing.T) {
	r := New(nil)
	sink := newCollectSink()
	conn := shellConn("for i in 1 2 3 4 5; do echo $i; done")

	_, err := r.Start(context.Background(), "doc", conn, FilePayload(""), sink)
	require.NoError(t, err)
	sink.wait(t)
	require.Equal(t, []string{"1", "2", "3", "4", "5"}, sink.lines(Stdout))
}

func TestStderrTagged(t *testing.T) {
	r := New(nil)
	sink := newCollectSink()
	conn := shellConn("echo out; echo err 1>&2")

	_, err := r.Start(context.Background(), "doc", conn, FilePayload(""), sink)
	require.NoError(t, err)
	sink.wait(t)
	require.Equal(t, []string{"out"}, sink.lines(Stdout))
	require.Equal(t, []string{"err"}, sink.lines(Stderr))
}

func TestStatementPayloadUsesTempFileAndCleansUp(t *testing.T) {
	r := New(nil)
	sink := newCollectSink()
	conn := &config.Connection{Name: "cat", Dialect: "postgres", Cmd: []string{"cat", ""}}

	rec, err := r.Start(context.Background(), "doc", conn, StatementPayload("select 42;"), sink)
	require.NoError(t, err)
	tempPath := rec.Args[len(rec.Args)-1]

	status := sink.wait(t)
	require.Equal(t, Completed, status.State)
	require.Equal(t, []string{"select 42;"}, sink.lines(Stdout))

	_, statErr := os.Stat(tempPath)
	require.True(t, os.IsNotExist(statErr), "temp file should be removed")
}

func TestSecondStartRejected(t *testing.T) {
	r := New(nil)
	sink := newCollectSink()
	rec, err := r.Start(context.Background(), "doc", shellConn("sleep 30"), FilePayload(""), sink)
	require.NoError(t, err)
	require.Equal(t, Running, rec.State())

	_, err = r.Start(context.Background(), "doc", shellConn("true"), FilePayload(""), newCollectSink())
	require.ErrorIs(t, err, ErrAlreadyRunning)

	// other documents are unaffected
	other := newCollectSink()
	otherRec, err := r.Start(context.Background(), "doc2", shellConn("true"), FilePayload(""), other)
	require.NoError(t, err)
	r.Wait(otherRec)

	r.Kill("doc")
	status := r.Wait(rec)
	require.Equal(t, Killed, status.State)
	require.Equal(t, "--- killed", status.Marker())
}

func TestRecordClearedAfterExitAllowsRestart(t *testing.T) {
	r := New(nil)
	rec, err := r.Start(context.Background(), "doc", shellConn("true"), FilePayload(""), newCollectSink())
	require.NoError(t, err)
	r.Wait(rec)

	_, ok := r.Lookup("doc")
	require.False(t, ok)

	again, err := r.Start(context.Background(), "doc", shellConn("true"), FilePayload(""), newCollectSink())
	require.NoError(t, err)
	require.Equal(t, Completed, r.Wait(again).State)
}

func TestKillIdempotent(t *testing.T) {
	r := New(nil)
	rec, err := r.Start(context.Background(), "doc", shellConn("true"), FilePayload(""), newCollectSink())
	require.NoError(t, err)
	r.Wait(rec)

	// process already gone, record cleared
	r.Kill("doc")
	r.Kill("doc")
	r.Kill("never-started")
}

func TestOversizedLineDeliveredAndRunCompletes(t *testing.T) {
	r := New(nil)
	sink := newCollectSink()
	conn := shellConn(`printf 'before\n'; head -c 2097152 /dev/zero | tr '\0' x; printf '\nafter\n'`)

	_, err := r.Start(context.Background(), "doc", conn, FilePayload(""), sink)
	require.NoError(t, err)

	status := sink.wait(t)
	require.Equal(t, Completed, status.State)

	lines := sink.lines(Stdout)
	require.Len(t, lines, 3)
	require.Equal(t, "before", lines[0])
	require.Len(t, lines[1], 2*1024*1024)
	require.Equal(t, "after", lines[2])

	_, ok := r.Lookup("doc")
	require.False(t, ok)
}

func TestKillTerminatesClientChildren(t *testing.T) {
	r := New(nil)
	sink := newCollectSink()
	rec, err := r.Start(context.Background(), "doc", shellConn("sleep 5; echo late"), FilePayload(""), sink)
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	killedAt := time.Now()
	r.Kill("doc")

	status := sink.wait(t)
	require.Equal(t, Killed, status.State)
	// the forked sleep must not hold the pipes open until it finishes
	require.Less(t, time.Since(killedAt), 3*time.Second)
	require.Empty(t, sink.lines(Stdout))
	require.Equal(t, Killed, r.Wait(rec).State)
}

func TestKillDuringSpawnWindowStillKills(t *testing.T) {
	rec := &Record{DocID: "doc", done: make(chan struct{}), state: Running}
	rec.kill()
	require.Equal(t, Killed, rec.State())

	cmd := exec.Command("sleep", "5")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, cmd.Start())
	require.True(t, rec.attach(cmd))
	killGroup(cmd)

	started := time.Now()
	_ = cmd.Wait()
	require.Less(t, time.Since(started), 3*time.Second)
}

func TestNonZeroExitReportedAsFailed(t *testing.T) {
	r := New(nil)
	sink := newCollectSink()
	rec, err := r.Start(context.Background(), "doc", shellConn("echo boom; exit 3"), FilePayload(""), sink)
	require.NoError(t, err)

	status := sink.wait(t)
	require.Equal(t, Failed, status.State)
	require.Equal(t, 3, status.Code)
	require.Equal(t, []string{"boom"}, sink.lines(Stdout))
	require.Equal(t, Failed, rec.State())
}
