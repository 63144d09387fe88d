package buffer

import (
	"encoding/json"
	"fmt"

	"github.com/hzeller/bare-lsp/internal/jsonrpc"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// entry pairs a document's buffer with the store-wide version at which it
// was last touched, so idle scans can find only what changed.
type entry struct {
	buf     *EditTextBuffer
	version int64
}

// Collection is the URI -> buffer mapping for every currently open
// document. It wires itself to a Dispatcher at construction time by
// registering the textDocument/did{Open,Change,Close,Save} notification
// handlers, mirroring how the reference BufferCollection subscribes to
// its JsonRpcDispatcher.
//
// Collection is mutated only from the dispatch thread (the event loop
// handling a readable event), so it needs no locking; idle callbacks run
// on the same thread and therefore see a consistent snapshot.
type Collection struct {
	buffers map[string]*entry
	global  int64
}

// NewCollection creates a Collection and registers its notification
// handlers on d.
func NewCollection(d *jsonrpc.Dispatcher) *Collection {
	c := &Collection{buffers: make(map[string]*entry)}
	d.AddNotificationHandler("textDocument/didOpen", c.didOpen)
	d.AddNotificationHandler("textDocument/didChange", c.didChange)
	d.AddNotificationHandler("textDocument/didClose", c.didClose)
	d.AddNotificationHandler("textDocument/didSave", c.didSave)
	return c
}

// Find returns the buffer for uri, if the client has it open.
func (c *Collection) Find(uri string) (*EditTextBuffer, bool) {
	e, ok := c.buffers[uri]
	if !ok {
		return nil, false
	}
	return e.buf, true
}

// GlobalVersion returns the store-wide monotonic counter, bumped whenever
// any buffer in the collection changes.
func (c *Collection) GlobalVersion() int64 { return c.global }

// ChangedSince calls fn for every buffer whose version exceeds version,
// the mechanism idle diagnostics scans use to avoid redoing unchanged
// work.
func (c *Collection) ChangedSince(version int64, fn func(uri string, buf *EditTextBuffer)) {
	for uri, e := range c.buffers {
		if e.version > version {
			fn(uri, e.buf)
		}
	}
}

func (c *Collection) bump(uri string) {
	c.global++
	c.buffers[uri].version = c.global
}

func (c *Collection) didOpen(params json.RawMessage) error {
	var p protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return fmt.Errorf("didOpen: %w", err)
	}
	uri := string(p.TextDocument.URI)
	if _, exists := c.buffers[uri]; exists {
		return nil // Opening an already-open URI retains the existing buffer.
	}
	c.buffers[uri] = &entry{buf: NewEditTextBuffer(p.TextDocument.Text)}
	c.bump(uri)
	return nil
}

func (c *Collection) didClose(params json.RawMessage) error {
	var p protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return fmt.Errorf("didClose: %w", err)
	}
	delete(c.buffers, string(p.TextDocument.URI))
	return nil
}

func (c *Collection) didSave(params json.RawMessage) error {
	return nil // textDocument/didSave carries no state the store needs.
}

func (c *Collection) didChange(params json.RawMessage) error {
	var p protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return fmt.Errorf("didChange: %w", err)
	}
	uri := string(p.TextDocument.URI)
	e, ok := c.buffers[uri]
	if !ok {
		return nil // Changes for an unknown (e.g. already-closed) URI are dropped.
	}

	changes := make([]ChangeEvent, 0, len(p.ContentChanges))
	for _, raw := range p.ContentChanges {
		if whole, ok := raw.(protocol.TextDocumentContentChangeEventWhole); ok {
			changes = append(changes, ChangeEvent{Text: whole.Text})
			continue
		}
		evt, ok := raw.(protocol.TextDocumentContentChangeEvent)
		if !ok {
			return fmt.Errorf("didChange: only incremental or whole-document changes are supported")
		}
		if evt.Range == nil {
			changes = append(changes, ChangeEvent{Text: evt.Text})
			continue
		}
		changes = append(changes, ChangeEvent{
			Range: &Range{
				Start: Position{Line: int(evt.Range.Start.Line), Character: int(evt.Range.Start.Character)},
				End:   Position{Line: int(evt.Range.End.Line), Character: int(evt.Range.End.Character)},
			},
			Text: evt.Text,
		})
	}

	e.buf.ApplyChanges(changes)
	c.bump(uri)
	return nil
}
