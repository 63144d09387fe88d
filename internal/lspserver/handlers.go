package lspserver

import (
	"context"
	"encoding/json"
	"fmt"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/hzeller/bare-lsp/internal/config"
)

func (s *Server) initialize(params json.RawMessage) (any, error) {
	var p protocol.InitializeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	cfg, err := config.Load(p.InitializationOptions)
	if err != nil {
		logger.Errorf("initialize: bad initializationOptions, using defaults: %v", err)
	} else {
		s.cfg = cfg
		if s.loop != nil {
			s.loop.SetIdleInterval(s.IdleInterval())
		}
	}

	syncKind := protocol.TextDocumentSyncKindIncremental
	capabilities := protocol.ServerCapabilities{
		TextDocumentSync: &protocol.TextDocumentSyncOptions{
			OpenClose: boolPtr(true),
			Change:    &syncKind,
			Save:      boolPtr(true),
		},
		HoverProvider:              boolPtr(true),
		DocumentSymbolProvider:     boolPtr(true),
		CodeActionProvider:         boolPtr(true),
		DocumentFormattingProvider: boolPtr(true),
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name: "bare-lsp",
		},
	}, nil
}

func (s *Server) initialized(params json.RawMessage) error {
	logger.Info("client initialized")
	return nil
}

func (s *Server) hover(params json.RawMessage) (any, error) {
	var p protocol.HoverParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("hover: %w", err)
	}

	buf, ok := s.docs.Find(string(p.TextDocument.URI))
	if !ok {
		return nil, nil
	}

	var text string
	buf.RequestLine(int(p.Position.Line), func(line []byte) { text = string(line) })
	if text == "" {
		return nil, nil
	}

	return protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindPlainText,
			Value: text,
		},
	}, nil
}

func (s *Server) documentSymbol(params json.RawMessage) (any, error) {
	var p protocol.DocumentSymbolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("documentSymbol: %w", err)
	}

	buf, ok := s.docs.Find(string(p.TextDocument.URI))
	if !ok {
		return []protocol.DocumentSymbol{}, nil
	}

	var found []protocol.DocumentSymbol
	buf.RequestContent(func(content []byte) {
		syms, err := s.symbolsP.DocumentSymbols(context.Background(), content)
		if err != nil {
			logger.Warningf("documentSymbol: parse failed for %s: %v", p.TextDocument.URI, err)
			return
		}
		for _, sym := range syms {
			found = append(found, protocol.DocumentSymbol{
				Name: sym.Name,
				Kind: protocol.SymbolKind(sym.Kind),
				Range: protocol.Range{
					Start: protocol.Position{Line: protocol.UInteger(sym.StartLine)},
					End:   protocol.Position{Line: protocol.UInteger(sym.EndLine)},
				},
				SelectionRange: protocol.Range{
					Start: protocol.Position{Line: protocol.UInteger(sym.StartLine)},
					End:   protocol.Position{Line: protocol.UInteger(sym.EndLine)},
				},
			})
		}
	})
	if found == nil {
		found = []protocol.DocumentSymbol{}
	}
	return found, nil
}

// codeAction is a single static no-op action: it demonstrates the wire
// shape of the response without attempting any real analysis.
func (s *Server) codeAction(params json.RawMessage) (any, error) {
	return []protocol.CodeAction{{Title: "foo"}}, nil
}

// formatting never proposes any edits; it exists so a client that always
// runs format-on-save does not see a "method not found" error.
func (s *Server) formatting(params json.RawMessage) (any, error) {
	return []protocol.TextEdit{}, nil
}

func (s *Server) shutdown(params json.RawMessage) (any, error) {
	logger.Info("shutdown requested")
	s.shuttingDown = true
	return nil, nil
}

func (s *Server) exit(params json.RawMessage) error {
	logger.Info("exit requested")
	s.exitRequested = true
	return nil
}

func boolPtr(b bool) *bool { return &b }
