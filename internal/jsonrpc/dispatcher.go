// Package jsonrpc implements a JSON-RPC 2.0 message dispatcher for the LSP
// host: it parses one message body at a time, classifies it as a request
// or a notification, routes it to a registered handler, and writes a
// reply when the JSON-RPC specification requires one.
//
// The dispatcher is transport-agnostic -- it is handed message bodies by
// whatever recovers frames from the wire (see package stream) and hands
// replies to a WriteFunc. It never touches Content-Length framing itself.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Wire error codes, per the JSON-RPC 2.0 specification.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInternalError  = -32603
)

// RequestHandler answers a JSON-RPC request. The returned value is
// marshaled into the reply's "result" member. An error is reported to the
// caller as an Internal Error response.
type RequestHandler func(params json.RawMessage) (result any, err error)

// NotificationHandler handles a JSON-RPC notification. There is no reply
// to send; an error is only recorded in the statistics.
type NotificationHandler func(params json.RawMessage) error

// WriteFunc is handed one complete, newline-terminated JSON-RPC message at
// a time. Framing it into a Content-Length-prefixed wire frame is the
// caller's job, not the dispatcher's.
type WriteFunc func(response string)

// message is the shape every incoming body is parsed into, minus id: a
// *json.RawMessage field can't tell "absent" apart from "present but
// null" (encoding/json nils out a pointer field on a JSON null before
// RawMessage.UnmarshalJSON ever sees it), so id presence is determined
// separately, by key, against the raw object.
type message struct {
	Version string          `json:"jsonrpc"`
	Method  *string         `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

type reply struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Result  *json.RawMessage `json:"result,omitempty"`
	Error   *wireError       `json:"error,omitempty"`
}

// Dispatcher routes parsed JSON-RPC bodies to registered handlers. It is
// not safe for concurrent use -- the LSP host's single-threaded event loop
// is what makes that safe in practice.
type Dispatcher struct {
	write WriteFunc

	requests      map[string]RequestHandler
	notifications map[string]NotificationHandler

	stats map[string]int
}

// New returns a Dispatcher that writes replies through write.
func New(write WriteFunc) *Dispatcher {
	return &Dispatcher{
		write:         write,
		requests:      make(map[string]RequestHandler),
		notifications: make(map[string]NotificationHandler),
		stats:         make(map[string]int),
	}
}

// AddRequestHandler registers fn to answer calls to method.
func (d *Dispatcher) AddRequestHandler(method string, fn RequestHandler) {
	d.requests[method] = fn
}

// AddNotificationHandler registers fn to receive notifications for method.
func (d *Dispatcher) AddNotificationHandler(method string, fn NotificationHandler) {
	d.notifications[method] = fn
}

// StatCounters returns a snapshot of the per-method/per-outcome counters
// accumulated so far, for operator observability only.
func (d *Dispatcher) StatCounters() map[string]int {
	out := make(map[string]int, len(d.stats))
	for k, v := range d.stats {
		out[k] = v
	}
	return out
}

// Dispatch parses data as a single JSON-RPC message body and routes it.
func (d *Dispatcher) Dispatch(data []byte) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		d.stats[err.Error()]++
		d.sendReply(d.errorReply(nil, codeParseError, err.Error()))
		return
	}
	idRaw, idPresent := fields["id"]
	var id *json.RawMessage
	if idPresent {
		id = &idRaw
	}

	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		d.stats[err.Error()]++
		d.sendReply(d.errorReply(id, codeParseError, err.Error()))
		return
	}

	if msg.Method == nil {
		d.stats["(missing method)"]++
		d.sendReply(d.errorReply(id, codeMethodNotFound, "Method required in request"))
		return
	}
	method := *msg.Method
	isNotification := !idPresent

	var handled bool
	if isNotification {
		handled = d.dispatchNotification(method, msg.Params)
	} else {
		handled = d.dispatchRequest(id, method, msg.Params)
	}

	key := method
	if !handled {
		key += " (unhandled)"
	}
	if isNotification {
		key += "  ev"
	} else {
		key += " RPC"
	}
	d.stats[key]++
}

func (d *Dispatcher) dispatchNotification(method string, params json.RawMessage) bool {
	fn, ok := d.notifications[method]
	if !ok {
		return false
	}
	if err := callNotification(fn, params); err != nil {
		d.stats[method+" : "+err.Error()]++
		return false
	}
	return true
}

func (d *Dispatcher) dispatchRequest(id *json.RawMessage, method string, params json.RawMessage) bool {
	fn, ok := d.requests[method]
	if !ok {
		d.sendReply(d.errorReply(id, codeMethodNotFound, fmt.Sprintf("method %q not found.", method)))
		return false
	}

	result, err := callRequest(fn, params)
	if err != nil {
		d.stats[method+" : "+err.Error()]++
		d.sendReply(d.errorReply(id, codeInternalError, err.Error()))
		return false
	}

	resp, err := d.successReply(id, result)
	if err != nil {
		d.stats[method+" : "+err.Error()]++
		d.sendReply(d.errorReply(id, codeInternalError, err.Error()))
		return false
	}
	d.sendReply(resp)
	return true
}

// callRequest and callNotification recover from a handler panic the way
// the reference implementation catches a handler exception at the
// dispatch boundary.
func callRequest(fn RequestHandler, params json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(params)
}

func callNotification(fn NotificationHandler, params json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(params)
}

func (d *Dispatcher) errorReply(id *json.RawMessage, code int, msg string) reply {
	return reply{JSONRPC: "2.0", ID: id, Error: &wireError{Code: code, Message: msg}}
}

func (d *Dispatcher) successReply(id *json.RawMessage, result any) (reply, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return reply{}, err
	}
	rm := json.RawMessage(raw)
	return reply{JSONRPC: "2.0", ID: id, Result: &rm}, nil
}

func (d *Dispatcher) sendReply(r reply) {
	b, err := json.Marshal(r)
	if err != nil {
		// Marshaling our own reply struct failing means the handler
		// returned something that doesn't survive round-tripping; there's
		// nothing more specific we can tell the client.
		b, _ = json.Marshal(d.errorReply(r.ID, codeInternalError, "failed to marshal response"))
	}
	d.write(string(b) + "\n")
}

// SendNotification composes and writes an outbound JSON-RPC notification,
// e.g. for idle-time diagnostics the client did not ask for.
func (d *Dispatcher) SendNotification(method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("jsonrpc: marshal notification params: %w", err)
	}
	rm := json.RawMessage(raw)
	out := struct {
		JSONRPC string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}{JSONRPC: "2.0", Method: method, Params: rm}

	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("jsonrpc: marshal notification: %w", err)
	}
	d.write(string(b) + "\n")
	return nil
}
