// Package lspserver is the glue layer: it wires the frame splitter, the
// JSON-RPC dispatcher, the buffer collection and the event loop together
// behind a set of illustrative LSP method handlers. None of the core
// subsystems import this package -- it only imports them, the same
// direction of dependency the teacher's lsp.Server has on its cache and
// parser packages.
package lspserver

import (
	"time"

	"github.com/tliron/commonlog"

	"github.com/hzeller/bare-lsp/internal/buffer"
	"github.com/hzeller/bare-lsp/internal/config"
	"github.com/hzeller/bare-lsp/internal/eventloop"
	"github.com/hzeller/bare-lsp/internal/jsonrpc"
	"github.com/hzeller/bare-lsp/internal/stream"
	"github.com/hzeller/bare-lsp/internal/symbols"
)

var logger = commonlog.GetLogger("lspserver")

// Server owns every piece needed to run one LSP session over a pair of
// byte streams: the frame splitter that recovers message bodies, the
// dispatcher that routes them, the buffer collection they mutate, and the
// symbol parser the illustrative documentSymbol handler uses.
type Server struct {
	splitter   *stream.Splitter
	dispatcher *jsonrpc.Dispatcher
	docs       *buffer.Collection
	symbolsP   *symbols.Parser
	loop       *eventloop.Loop

	cfg config.Config

	diagnosedUpTo int64
	shuttingDown  bool
	exitRequested bool
}

// NewServer wires a Server that reads frames via readBufferSize-sized
// pulls and writes replies through write.
func NewServer(readBufferSize int, write jsonrpc.WriteFunc) *Server {
	cfg, _ := config.Load(nil) // defaults, until initialize overrides them.
	s := &Server{
		splitter:   stream.New(readBufferSize),
		dispatcher: jsonrpc.New(write),
		symbolsP:   symbols.NewParser(),
		cfg:        cfg,
	}
	s.docs = buffer.NewCollection(s.dispatcher)
	s.splitter.SetProcessor(func(_, body []byte) { s.dispatcher.Dispatch(body) })
	s.registerHandlers()
	return s
}

func (s *Server) registerHandlers() {
	s.dispatcher.AddRequestHandler("initialize", s.initialize)
	s.dispatcher.AddNotificationHandler("initialized", s.initialized)
	s.dispatcher.AddRequestHandler("textDocument/hover", s.hover)
	s.dispatcher.AddRequestHandler("textDocument/documentSymbol", s.documentSymbol)
	s.dispatcher.AddRequestHandler("textDocument/codeAction", s.codeAction)
	s.dispatcher.AddRequestHandler("textDocument/formatting", s.formatting)
	s.dispatcher.AddRequestHandler("shutdown", s.shutdown)
	s.dispatcher.AddNotificationHandler("exit", s.exit)
}

// PullFrom reads one chunk of input through readFn and dispatches every
// complete message it contains. The readable handler Run registers on the
// stdin descriptor calls it once per readable event.
func (s *Server) PullFrom(readFn stream.ReadFunc) error {
	return s.splitter.PullFrom(readFn)
}

// RunIdleScan is the Handler RunOnIdle registers: it publishes diagnostics
// for every buffer touched since the last scan and reports whether the
// loop should keep calling it (false once shutdown was requested).
func (s *Server) RunIdleScan() bool {
	s.publishIdleDiagnostics()
	return !s.shuttingDown
}

// ShouldExit reports whether the client has sent exit, the signal the
// top-level main loop uses to stop reading stdin.
func (s *Server) ShouldExit() bool { return s.exitRequested }

// IdleInterval reports the idle scan period the currently loaded config
// asks for, for the caller to seed Run with before the client's
// initialize request -- the only chance to set it -- has been received.
func (s *Server) IdleInterval() time.Duration {
	return time.Duration(s.cfg.IdleIntervalMS) * time.Millisecond
}

// StatTotalBytesRead, StatLargestBodySeen and StatCounters expose the
// splitter's and dispatcher's operator-observability counters, printed by
// the command-line entry point on exit.
func (s *Server) StatTotalBytesRead() uint64 { return s.splitter.StatTotalBytesRead() }
func (s *Server) StatLargestBodySeen() uint64 { return s.splitter.StatLargestBodySeen() }
func (s *Server) StatCounters() map[string]int { return s.dispatcher.StatCounters() }

// Run drives the server to completion over an event loop polling fd,
// stopping once the client sends exit or the stream is exhausted.
func (s *Server) Run(fd int, idleInterval time.Duration, readFn stream.ReadFunc) error {
	s.loop = eventloop.New(idleInterval)
	var pullErr error
	s.loop.RunOnReadable(fd, func() bool {
		if err := s.PullFrom(readFn); err != nil {
			pullErr = err
			return false
		}
		return !s.ShouldExit()
	})
	s.loop.RunOnIdle(s.RunIdleScan)
	s.loop.Run()
	return pullErr
}
