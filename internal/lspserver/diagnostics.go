package lspserver

import (
	"bytes"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/hzeller/bare-lsp/internal/buffer"
)

// publishIdleDiagnostics is the idle-timeout handler: it looks at every
// document touched since the last scan and republishes diagnostics for
// it. The check itself ("line too long") is a stand-in simple enough to
// not require a real language checker -- its only job is to exercise the
// idle-time publish path end to end.
func (s *Server) publishIdleDiagnostics() {
	upTo := s.docs.GlobalVersion()
	s.docs.ChangedSince(s.diagnosedUpTo, func(uri string, buf *buffer.EditTextBuffer) {
		diags := longLineDiagnostics(buf, s.cfg.LongLineThreshold)
		if err := s.dispatcher.SendNotification("textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
			URI:         protocol.DocumentUri(uri),
			Diagnostics: diags,
		}); err != nil {
			logger.Warningf("publishDiagnostics for %s: %v", uri, err)
		}
	})
	s.diagnosedUpTo = upTo
}

func longLineDiagnostics(buf *buffer.EditTextBuffer, threshold int) []protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityInformation
	var diags []protocol.Diagnostic
	for i := 0; i < buf.Lines(); i++ {
		var length int
		buf.RequestLine(i, func(line []byte) { length = len(bytes.TrimRight(line, "\n")) })
		if length < threshold {
			continue
		}
		diags = append(diags, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: protocol.UInteger(i), Character: 0},
				End:   protocol.Position{Line: protocol.UInteger(i), Character: protocol.UInteger(length)},
			},
			Severity: &severity,
			Message:  "line exceeds configured length threshold",
		})
	}
	if diags == nil {
		diags = []protocol.Diagnostic{}
	}
	return diags
}
