package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rpggio/hq/internal/remote"
)

// JSON-RPC 2.0 error codes. ErrNotFoundCode is in the implementation-defined
// server error range.
const (
	ErrParseCode      = -32700
	ErrInvalidReq     = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternal       = -32603
	ErrNotFoundCode   = -32004
)

// Remote store methods.
const (
	MethodSelect = "select"
	MethodInsert = "insert"
	MethodUpdate = "update"
	MethodDelete = "delete"
	MethodUpsert = "upsert"
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      any    `json:"id,omitempty"`
}

// Error represents a JSON-RPC 2.0 error object. Data carries an error kind
// (see ErrorKind) so clients can restore the remote sentinel.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Params is the parameter object shared by every remote store method.
type Params struct {
	Collection string       `json:"collection"`
	Query      remote.Query `json:"query,omitempty"`
	Row        remote.Row   `json:"row,omitempty"`
	ID         string       `json:"id,omitempty"`
	OnConflict []string     `json:"on_conflict,omitempty"`
}

// ParseRequest parses and validates a JSON-RPC request payload.
func ParseRequest(body io.Reader) (Request, error) {
	var req Request
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		return Request{}, fmt.Errorf("parse error: %w", err)
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return Request{}, fmt.Errorf("invalid request")
	}
	return req, nil
}

// ParseParams decodes method params keeping numbers exact.
func ParseParams(raw json.RawMessage) (Params, error) {
	var p Params
	if len(raw) == 0 {
		return p, fmt.Errorf("%w: missing params", remote.ErrInvalidInput)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("%w: %v", remote.ErrInvalidInput, err)
	}
	if p.Collection == "" {
		return p, fmt.Errorf("%w: missing collection", remote.ErrInvalidInput)
	}
	return p, nil
}

var errorKinds = []struct {
	kind string
	err  error
}{
	{"not_found", remote.ErrNotFound},
	{"unknown_collection", remote.ErrUnknownCollection},
	{"unknown_field", remote.ErrUnknownField},
	{"conflict", remote.ErrConflict},
	{"foreign_key", remote.ErrForeignKeyViolation},
	{"invalid_input", remote.ErrInvalidInput},
}

// ErrorKind names the remote sentinel err wraps, or "" when none.
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}

// SentinelForKind is the inverse of ErrorKind.
func SentinelForKind(kind string) error {
	for _, k := range errorKinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}

// ErrorCode picks the JSON-RPC code for a store error.
func ErrorCode(err error) int {
	switch ErrorKind(err) {
	case "not_found":
		return ErrNotFoundCode
	case "":
		return ErrInternal
	default:
		return ErrInvalidParams
	}
}

// WriteResult writes a JSON-RPC success response.
func WriteResult(w http.ResponseWriter, id any, result any) {
	writeJSON(w, http.StatusOK, Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	})
}

// WriteError writes a JSON-RPC error response.
func WriteError(w http.ResponseWriter, id any, code int, message string, data any) {
	writeJSON(w, http.StatusOK, Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
