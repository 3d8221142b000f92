package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the client.
type ErrorCode string

// Session error codes.
// 除 ErrNoServerResponse 内置的空载重试预算外，所有错误均为终止性错误，不会自动重试。
const (
	ErrConnection       ErrorCode = "CONNECTION_ERROR"      // socket 建立失败或中途断开
	ErrHandshakeTimeout ErrorCode = "HANDSHAKE_TIMEOUT"     // 子协议协商未在时限内完成
	ErrAttachment       ErrorCode = "ATTACHMENT_ERROR"      // 图片上传失败，请求未发送
	ErrMalformedFrame   ErrorCode = "MALFORMED_FRAME"       // 入站负载中存在非法 JSON 片段
	ErrNoServerResponse ErrorCode = "NO_SERVER_RESPONSE"    // 连续空载耗尽重试预算
	ErrServerReported   ErrorCode = "SERVER_REPORTED_ERROR" // type 2 帧携带 error 字段
	ErrCancelled        ErrorCode = "CANCELLED"             // 调用方取消或提前关闭
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"       // 请求构建或序列化失败
	ErrSessionClosed    ErrorCode = "SESSION_CLOSED"        // Client 已关闭
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	// UpstreamCode 是服务端返回的原始错误值（仅 SERVER_REPORTED_ERROR）。
	UpstreamCode string `json:"upstream_code,omitempty"`
	Retryable    bool   `json:"retryable"`
	Cause        error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithUpstreamCode sets the server supplied error value.
func (e *Error) WithUpstreamCode(code string) *Error {
	e.UpstreamCode = code
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WrapError wraps err with a code unless it already is a *Error.
func WrapError(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	if e, ok := AsError(err); ok {
		return e
	}
	return NewError(code, message).WithCause(err)
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsErrorCode reports whether the error chain carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}
