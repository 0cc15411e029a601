package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrNoToken is returned, without a network round-trip, when a
	// protected call is made with no session token.
	ErrNoToken = errors.New("no authentication token available")
	// ErrUnauthorized is wrapped by errors for HTTP 401/403.
	ErrUnauthorized = errors.New("unauthorized")
)

// Kind classifies a failed call.
type Kind int

const (
	KindServer       Kind = iota + 1 // non-2xx with a (possibly structured) body
	KindTransport                    // no HTTP response at all
	KindUnauthorized                 // 401/403, the session is no longer valid
	KindNoToken                      // no token stored locally
	KindDecode                       // 2xx with a body we could not decode
)

// User-facing messages.
const (
	MsgUnauthorized = "Não autorizado. Por favor, faça login novamente."
	MsgNoToken      = "Sessão expirada. Por favor, faça login novamente."
)

// Error is returned by every Client call that fails.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	// Fields holds per-field messages from a structured error body, keyed by
	// field name. "non_field_errors" is kept as a key; "detail" is not.
	Fields map[string][]string
	Err    error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Message extracts a display string from any error returned by this package.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func noTokenError() *Error {
	return &Error{Kind: KindNoToken, Message: MsgNoToken, Err: ErrNoToken}
}

func transportError(err error) *Error {
	return &Error{Kind: KindTransport, Message: fmt.Sprintf("Erro de conexão: %v", err), Err: err}
}

// errorFromResponse builds the error for a non-2xx response. When
// treatAuthAsSession is set, 401/403 become KindUnauthorized.
func errorFromResponse(status int, body []byte, treatAuthAsSession bool) *Error {
	if treatAuthAsSession && (status == http.StatusUnauthorized || status == http.StatusForbidden) {
		return &Error{Kind: KindUnauthorized, Status: status, Message: MsgUnauthorized, Err: ErrUnauthorized}
	}
	msg, fields := NormalizeError(status, body)
	return &Error{Kind: KindServer, Status: status, Message: msg, Fields: fields}
}

type bodyEntry struct {
	key string
	raw json.RawMessage
}

// NormalizeError flattens an error response body into one human-readable
// message. Structured bodies are rendered as
//
//	<detail>; <non_field_errors joined by "; ">; field: a, b; other: c
//
// keeping the order in which the server sent the fields. Empty bodies and
// bodies that are not a JSON object fall back to a generic message.
func NormalizeError(status int, body []byte) (string, map[string][]string) {
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Sprintf("Erro do servidor (%d): %s", status, http.StatusText(status)), nil
	}

	entries, ok := decodeObject(body)
	if !ok {
		return fmt.Sprintf("Resposta inesperada do servidor (%d).", status), nil
	}

	var head, rest []string
	fields := make(map[string][]string)
	for _, e := range entries {
		if bytes.Equal(bytes.TrimSpace(e.raw), []byte("null")) {
			continue
		}
		switch e.key {
		case "detail":
			if s, ok := asString(e.raw); ok {
				head = append([]string{s}, head...)
			}
		case "non_field_errors":
			if items, ok := asStrings(e.raw); ok && len(items) > 0 {
				fields[e.key] = items
				head = append(head, strings.Join(items, "; "))
			}
		default:
			if items, ok := asStrings(e.raw); ok {
				fields[e.key] = items
				rest = append(rest, fmt.Sprintf("%s: %s", e.key, strings.Join(items, ", ")))
			} else if s, ok := asString(e.raw); ok {
				fields[e.key] = []string{s}
				rest = append(rest, fmt.Sprintf("%s: %s", e.key, s))
			} else if isObject(e.raw) {
				var buf bytes.Buffer
				if err := json.Compact(&buf, e.raw); err == nil {
					fields[e.key] = []string{buf.String()}
					rest = append(rest, fmt.Sprintf("%s: %s", e.key, buf.String()))
				}
			}
		}
	}

	parts := append(head, rest...)
	if len(parts) == 0 {
		return fmt.Sprintf("Resposta inesperada do servidor (%d).", status), nil
	}
	if len(fields) == 0 {
		fields = nil
	}
	return strings.Join(parts, "; "), fields
}

// decodeObject reads the top-level keys of a JSON object in order.
func decodeObject(body []byte) ([]bodyEntry, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, false
	}
	var entries []bodyEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, false
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, false
		}
		entries = append(entries, bodyEntry{key: key, raw: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return entries, true
}

func asString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// asStrings renders each element of a JSON array: strings verbatim,
// everything else as compact JSON.
func asStrings(raw json.RawMessage) ([]string, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := asString(it); ok {
			out = append(out, s)
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, it); err != nil {
			continue
		}
		out = append(out, buf.String())
	}
	return out, true
}

func isObject(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '{'
}

// String names the kind in log lines.
func (k Kind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindTransport:
		return "transport"
	case KindUnauthorized:
		return "unauthorized"
	case KindNoToken:
		return "no-token"
	case KindDecode:
		return "decode"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}
