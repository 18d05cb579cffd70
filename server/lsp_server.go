// Package server exposes runsql to editors as an LSP server over stdio.
// Execution results stream back as sql/output notifications so the editor can
// append them to an output view as they arrive.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/lexcodex/runsql/runner"
	"github.com/lexcodex/runsql/session"
)

// Command identifiers advertised through executeCommandProvider.
const (
	CmdExecFile    = "sql.execFile"
	CmdExecSnippet = "sql.execSnippet"
	CmdExplain     = "sql.explain"
	CmdKill        = "sql.kill"
	CmdSelectConn  = "sql.selectConnection"
	CmdConnections = "sql.connections"
)

// InitializeResult partial struct.
type InitializeResult struct {
	Capabilities map[string]interface{} `json:"capabilities"`
}

// ExecuteCommandParams partial struct; arguments stay raw until the command
// is known.
type ExecuteCommandParams struct {
	Command   string            `json:"command"`
	Arguments []json.RawMessage `json:"arguments"`
}

// CommandArgs carries the per-command payload sent by the editor.
type CommandArgs struct {
	URI        string `json:"uri"`
	Line       int    `json:"line"`
	Connection string `json:"connection"`
	Reselect   bool   `json:"reselect"`
}

// OutputParams is the sql/output notification body.
type OutputParams struct {
	URI    string `json:"uri"`
	Stream string `json:"stream"`
	Text   string `json:"text"`
}

// DoneParams is the sql/done notification body.
type DoneParams struct {
	URI    string `json:"uri"`
	State  string `json:"state"`
	Code   int    `json:"code"`
	Marker string `json:"marker"`
}

// LSPServer bridges jsonrpc2 requests into the session service.
type LSPServer struct {
	svc    *session.Service
	logger *log.Logger

	mu   sync.Mutex
	conn *jsonrpc2.Conn
}

// NewLSPServer builds a server instance.
func NewLSPServer(svc *session.Service, logger *log.Logger) *LSPServer {
	if logger == nil {
		logger = log.Default()
	}
	return &LSPServer{svc: svc, logger: logger}
}

// Serve runs the server over the given stream until the client disconnects.
func (s *LSPServer) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	select {
	case <-ctx.Done():
		conn.Close()
		return ctx.Err()
	case <-conn.DisconnectNotify():
		return nil
	}
}

// ServeStdio runs the server on stdin/stdout.
func (s *LSPServer) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, &stdioReadWriteCloser{reader: os.Stdin, writer: os.Stdout})
}

func (s *LSPServer) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	switch req.Method {
	case "initialize":
		return s.initialize(), nil
	case "initialized", "exit":
		return nil, nil
	case "shutdown":
		return nil, nil
	case "textDocument/didOpen":
		var params protocol.DidOpenTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		_, err := s.svc.Docs.Open(string(params.TextDocument.URI), params.TextDocument.Text)
		return nil, err
	case "textDocument/didChange":
		var params protocol.DidChangeTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		if len(params.ContentChanges) == 0 {
			return nil, nil
		}
		// full sync: the last change carries the whole document
		text := params.ContentChanges[len(params.ContentChanges)-1].Text
		return nil, s.svc.Docs.UpdateText(string(params.TextDocument.URI), text)
	case "textDocument/didClose":
		var params protocol.DidCloseTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		s.svc.Docs.CloseDocument(string(params.TextDocument.URI))
		return nil, nil
	case "workspace/executeCommand":
		var params ExecuteCommandParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		return s.executeCommand(ctx, params)
	default:
		if req.Notif {
			return nil, nil
		}
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: fmt.Sprintf("method %s not handled", req.Method)}
	}
}

func (s *LSPServer) initialize() *InitializeResult {
	return &InitializeResult{
		Capabilities: map[string]interface{}{
			"textDocumentSync": 1,
			"executeCommandProvider": map[string]interface{}{
				"commands": []string{
					CmdExecFile,
					CmdExecSnippet,
					CmdExplain,
					CmdKill,
					CmdSelectConn,
					CmdConnections,
				},
			},
		},
	}
}

func (s *LSPServer) executeCommand(ctx context.Context, params ExecuteCommandParams) (interface{}, error) {
	var args CommandArgs
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments[0], &args); err != nil {
			return nil, err
		}
	}
	s.logger.Printf("command %s for %s", params.Command, args.URI)

	switch params.Command {
	case CmdConnections:
		return s.svc.Connections(), nil
	case CmdSelectConn:
		return nil, s.svc.ChooseConnection(args.URI, args.Connection)
	case CmdKill:
		s.svc.Kill(args.URI)
		return nil, nil
	case CmdExecFile, CmdExecSnippet, CmdExplain:
		return s.execute(ctx, params.Command, args)
	default:
		return nil, fmt.Errorf("unknown command %s", params.Command)
	}
}

func (s *LSPServer) execute(ctx context.Context, command string, args CommandArgs) (interface{}, error) {
	if args.Reselect {
		if err := s.svc.ForgetConnection(args.URI); err != nil {
			return nil, err
		}
	}
	if args.Connection != "" {
		if err := s.svc.ChooseConnection(args.URI, args.Connection); err != nil {
			return nil, err
		}
	}

	sink := &notifySink{server: s, uri: args.URI}
	var err error
	switch command {
	case CmdExecFile:
		_, err = s.svc.ExecFile(ctx, args.URI, uriToPath(args.URI), sink)
	case CmdExecSnippet:
		text, terr := s.svc.Docs.Text(args.URI)
		if terr != nil {
			err = terr
			break
		}
		_, err = s.svc.ExecSnippet(ctx, args.URI, text, args.Line, sink)
	case CmdExplain:
		text, terr := s.svc.Docs.Text(args.URI)
		if terr != nil {
			err = terr
			break
		}
		_, err = s.svc.Explain(ctx, args.URI, text, args.Line, sink)
	}
	if err != nil {
		s.showMessage(protocol.MessageTypeError, err.Error())
		return nil, err
	}
	return map[string]string{"status": "started"}, nil
}

func (s *LSPServer) showMessage(kind protocol.MessageType, message string) {
	s.notify(protocol.MethodWindowShowMessage, protocol.ShowMessageParams{Type: kind, Message: message})
}

func (s *LSPServer) notify(method string, params interface{}) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	if err := conn.Notify(context.Background(), method, params); err != nil {
		s.logger.Printf("notify %s failed: %v", method, err)
	}
}

// notifySink streams process output back to the editor.
type notifySink struct {
	server *LSPServer
	uri    string
}

func (n *notifySink) Append(chunk runner.Chunk) {
	n.server.notify("sql/output", OutputParams{
		URI:    n.uri,
		Stream: string(chunk.Stream),
		Text:   chunk.Text,
	})
}

func (n *notifySink) Close(status runner.Status) {
	n.server.notify("sql/done", DoneParams{
		URI:    n.uri,
		State:  string(status.State),
		Code:   status.Code,
		Marker: status.Marker(),
	})
}

func unmarshalParams(req *jsonrpc2.Request, dst interface{}) error {
	if req.Params == nil {
		return nil
	}
	return json.Unmarshal(*req.Params, dst)
}

func uriToPath(raw string) string {
	if !strings.HasPrefix(raw, "file://") {
		return raw
	}
	parsed, err := uri.Parse(raw)
	if err != nil {
		return strings.TrimPrefix(raw, "file://")
	}
	return parsed.Filename()
}

type stdioReadWriteCloser struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error)  { return s.reader.Read(p) }
func (s *stdioReadWriteCloser) Write(p []byte) (int, error) { return s.writer.Write(p) }
func (s *stdioReadWriteCloser) Close() error {
	_ = s.reader.Close()
	return s.writer.Close()
}
