// Package errors 定义 agriqa 的结构化错误码。
//
// 错误码为 7 位 AABBCCC：AA 服务码，BB 类别码，CCC 序号。类别决定默认的 HTTP 与 gRPC
// 状态，例如 2104001 是 agriqa(21) 的资源类(04)错误，对应 404。
//
//	return errors.ErrUnknownDataset.WithMessagef("unknown dataset %q", key)
//	return errors.ErrSnapshotStore.WithCause(err)
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Errno is a defined error. The registered values are templates: With*
// methods return copies.
type Errno struct {
	Code      int        `json:"code"`
	HTTP      int        `json:"-"`
	GRPCCode  codes.Code `json:"-"`
	MessageEN string     `json:"message"`
	MessageZH string     `json:"message_zh,omitempty"`

	cause error
}

func (e *Errno) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("errno %d: %s: %v", e.Code, e.MessageEN, e.cause)
	}
	return fmt.Sprintf("errno %d: %s", e.Code, e.MessageEN)
}

// Unwrap returns the cause.
func (e *Errno) Unwrap() error { return e.cause }

// Is matches any Errno with the same code.
func (e *Errno) Is(target error) bool {
	t, ok := target.(*Errno)
	return ok && e.Code == t.Code
}

// WithCause returns a copy carrying cause.
func (e *Errno) WithCause(cause error) *Errno {
	c := *e
	c.cause = cause
	return &c
}

// WithMessage returns a copy with a specific English message.
func (e *Errno) WithMessage(msg string) *Errno {
	c := *e
	c.MessageEN = msg
	return &c
}

// WithMessagef is WithMessage with formatting.
func (e *Errno) WithMessagef(format string, args ...interface{}) *Errno {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// Message 按语言返回消息，zh 系列语言且有中文消息时返回中文。
func (e *Errno) Message(lang string) string {
	switch lang {
	case "zh", "zh-CN", "zh_CN":
		if e.MessageZH != "" {
			return e.MessageZH
		}
	}
	return e.MessageEN
}

// Detail 返回面向调用方的详细信息：有 cause 时为 cause，否则为英文消息。
func (e *Errno) Detail() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return e.MessageEN
}

// HTTPStatus returns the HTTP status, 500 when unset.
func (e *Errno) HTTPStatus() int {
	if e.HTTP != 0 {
		return e.HTTP
	}
	return http.StatusInternalServerError
}

// GRPCStatus returns the gRPC code, Internal when unset.
func (e *Errno) GRPCStatus() codes.Code {
	if e.GRPCCode != codes.OK {
		return e.GRPCCode
	}
	return codes.Internal
}

// FromError returns the first Errno in err's chain, or ErrInternal caused
// by err.
func FromError(err error) *Errno {
	if err == nil {
		return nil
	}
	var e *Errno
	if stderrors.As(err, &e) {
		return e
	}
	return ErrInternal.WithCause(err)
}

// IsCode reports whether err's chain carries an Errno with code.
func IsCode(err error, code int) bool {
	var e *Errno
	return stderrors.As(err, &e) && e.Code == code
}
