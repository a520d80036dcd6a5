package cerr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"

	"connectrpc.com/connect"

	"github.com/kazz187/keeperd/pkg/clog"
)

type Error struct {
	Code  Code
	Msg   string // message returned to the caller together with Code
	Err   error  // underlying error, logged only
	Stack string
}

func NewError(code Code, msg string, underlying error) *Error {
	err := &Error{
		Code: code,
		Msg:  msg,
		Err:  underlying,
	}
	if clog.ConnectCodeToLevel(code.ConnectCode()) == clog.LevelError {
		stackTrace := make([]byte, 2048)
		n := runtime.Stack(stackTrace, false)
		err.Stack = string(stackTrace[0:n])
	}
	return err
}

// Sentinel returns an error without a stack trace, suitable for package level
// variables compared with errors.Is.
func Sentinel(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by code and message so that a sentinel rewrapped with
// an underlying cause still compares equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || t.Err != nil {
		return false
	}
	return e.Code == t.Code && e.Msg == t.Msg
}

// Wrap returns a copy of e carrying underlying as its cause.
func (e *Error) Wrap(underlying error) *Error {
	return NewError(e.Code, e.Msg, underlying)
}

func (e *Error) ConnectError() *connect.Error {
	return connect.NewError(e.Code.ConnectCode(), errors.New(e.Msg))
}

// Message returns the caller facing message of err.
func Message(err error) string {
	var cErr *Error
	if errors.As(err, &cErr) {
		return cErr.Msg
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr.Message()
	}
	return err.Error()
}

func IsCode(err error, code Code) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code == code
	}
	return false
}

func isConnectionClosed(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.Err == "operation was canceled"
}

// normalize converts err to an *Error and records it on the log context.
func normalize(ctx context.Context, err error) *Error {
	if isConnectionClosed(err) {
		return NewError(Canceled, "connection closed", err)
	}
	clog.AddError(ctx, err)
	var cErr *Error
	if errors.As(err, &cErr) {
		if cErr.Stack != "" {
			clog.AddStack(ctx, cErr.Stack)
		}
		return cErr
	}
	return NewError(Unknown, "unknown error", err)
}

func ExtractConnectError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		clog.AddError(ctx, err)
		return connectErr
	}
	return normalize(ctx, err).ConnectError()
}

type httpError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func ExtractToHTTPResponse(ctx context.Context, rw http.ResponseWriter, response *responseReceiver) {
	if response.err == nil {
		if response.status == 0 && response.response == nil {
			rw.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(ctx, rw, response.status, response.response)
		return
	}
	writeJSONError(ctx, rw, normalize(ctx, response.err))
}

func writeJSON(ctx context.Context, rw http.ResponseWriter, status int, response any) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(response); err != nil {
		writeJSONError(ctx, rw, NewError(Internal, "server error", err))
		return
	}
	if status == 0 {
		status = http.StatusOK
	}
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	if _, err := rw.Write(buf.Bytes()); err != nil {
		clog.AddError(ctx, NewError(Internal, "server error", err))
	}
}

func writeJSONError(ctx context.Context, rw http.ResponseWriter, origErr *Error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(httpError{Code: origErr.Code.String(), Message: origErr.Msg}); err != nil {
		buf = bytes.NewBufferString(`{"code":"internal","message":"server error"}`)
		clog.AddError(ctx, errors.Join(origErr, err))
	}
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(origErr.Code.HTTPCode())
	if _, err := rw.Write(buf.Bytes()); err != nil {
		clog.AddError(ctx, errors.Join(origErr, err))
	}
}
