package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/caffeineduck/rise/hostfunc"
)

// Protocol constants - used by language shims to communicate with the host.
// Format: \x00RISE:{json}\x00 on stderr; one JSON response line on stdin.
const (
	protocolPrefix = "\x00RISE:"
	protocolSuffix = "\x00"
)

type callRequest struct {
	Fn   string         `json:"fn"`
	Args map[string]any `json:"args"`
}

type callResponse struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// protocolHandler intercepts stderr to handle host function calls.
// Regular stderr output is collected; protocol messages trigger host calls.
type protocolHandler struct {
	ctx         context.Context
	registry    *hostfunc.Registry
	stdinWriter io.Writer
	realStderr  bytes.Buffer
	buf         bytes.Buffer
	mu          sync.Mutex
	writeMu     sync.Mutex
}

func newProtocolHandler(ctx context.Context, registry *hostfunc.Registry, stdinWriter io.Writer) *protocolHandler {
	return &protocolHandler{
		ctx:         ctx,
		registry:    registry,
		stdinWriter: stdinWriter,
	}
}

func (p *protocolHandler) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf.Write(data)

	for {
		before, payload, rest, ok := extractMessage(p.buf.String())
		p.realStderr.WriteString(before)
		p.buf.Reset()
		p.buf.WriteString(rest)
		if !ok {
			break
		}

		var req callRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			p.respond(callResponse{Error: "invalid call format"})
			continue
		}

		// Calls run synchronously: the interpreter is blocked reading stdin
		// for the answer anyway, and input prompts must keep their order.
		p.respond(p.handleCall(req))
	}

	return len(data), nil
}

// extractMessage splits content around the first complete protocol message.
// When no complete message is present, ok is false and rest holds whatever
// may still turn into one (a partial prefix or an unterminated message).
func extractMessage(content string) (before, payload, rest string, ok bool) {
	start := strings.Index(content, protocolPrefix)
	if start == -1 {
		keep := partialPrefixLen(content)
		return content[:len(content)-keep], "", content[len(content)-keep:], false
	}

	body := content[start+len(protocolPrefix):]
	end := strings.Index(body, protocolSuffix)
	if end == -1 {
		return content[:start], "", content[start:], false
	}

	return content[:start], body[:end], body[end+len(protocolSuffix):], true
}

// partialPrefixLen reports how many trailing bytes of s could be the start
// of a protocol prefix split across writes.
func partialPrefixLen(s string) int {
	for n := len(protocolPrefix) - 1; n > 0; n-- {
		if len(s) >= n && strings.HasSuffix(s, protocolPrefix[:n]) {
			return n
		}
	}
	return 0
}

func (p *protocolHandler) respond(resp callResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		data = []byte(`{"error":"internal: failed to marshal response"}`)
	}

	// The pipe blocks until the interpreter reads, which happens only after
	// this Write returns.
	go func() {
		p.writeMu.Lock()
		defer p.writeMu.Unlock()
		p.stdinWriter.Write(append(data, '\n'))
	}()
}

func (p *protocolHandler) handleCall(req callRequest) callResponse {
	fn, ok := p.registry.Get(req.Fn)
	if !ok {
		return callResponse{Error: "unknown function: " + req.Fn}
	}

	result, err := fn(p.ctx, req.Args)
	if err != nil {
		return callResponse{Error: err.Error()}
	}
	return callResponse{Data: result}
}

// Stderr returns the non-protocol stderr output seen so far.
func (p *protocolHandler) Stderr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realStderr.String() + p.buf.String()
}
