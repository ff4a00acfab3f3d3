package errors

import (
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/grpc/codes"
)

// 服务码 (AA)
const (
	ServiceCommon = 0
	ServiceAgriQA = 21
)

// 类别码 (BB)，决定默认的 HTTP 与 gRPC 状态。
const (
	CategoryRequest    = 1
	CategoryAuth       = 2
	CategoryPermission = 3
	CategoryResource   = 4
	CategoryConflict   = 5
	CategoryRateLimit  = 6
	CategoryInternal   = 7
	CategoryDatabase   = 8
	CategoryCache      = 9
	CategoryNetwork    = 10
	CategoryTimeout    = 11
	CategoryConfig     = 12
	CategoryNotImpl    = 13
)

type status struct {
	http int
	grpc codes.Code
}

var categoryStatus = map[int]status{
	CategoryRequest:    {http.StatusBadRequest, codes.InvalidArgument},
	CategoryAuth:       {http.StatusUnauthorized, codes.Unauthenticated},
	CategoryPermission: {http.StatusForbidden, codes.PermissionDenied},
	CategoryResource:   {http.StatusNotFound, codes.NotFound},
	CategoryConflict:   {http.StatusConflict, codes.AlreadyExists},
	CategoryRateLimit:  {http.StatusTooManyRequests, codes.ResourceExhausted},
	CategoryInternal:   {http.StatusInternalServerError, codes.Internal},
	CategoryDatabase:   {http.StatusInternalServerError, codes.Internal},
	CategoryCache:      {http.StatusInternalServerError, codes.Internal},
	CategoryNetwork:    {http.StatusBadGateway, codes.Unavailable},
	CategoryTimeout:    {http.StatusGatewayTimeout, codes.DeadlineExceeded},
	CategoryConfig:     {http.StatusInternalServerError, codes.Internal},
	CategoryNotImpl:    {http.StatusNotImplemented, codes.Unimplemented},
}

// MakeCode builds an AABBCCC code.
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// SplitCode is the inverse of MakeCode.
func SplitCode(code int) (service, category, sequence int) {
	return code / 100000, (code % 100000) / 1000, code % 1000
}

// StatusOf returns the HTTP status of a code: a registered errno's own
// status, otherwise its category's. Zero means success.
func StatusOf(code int) int {
	if code == 0 {
		return http.StatusOK
	}
	if e, ok := Lookup(code); ok {
		return e.HTTPStatus()
	}
	_, category, _ := SplitCode(code)
	if s, ok := categoryStatus[category]; ok {
		return s.http
	}
	return http.StatusInternalServerError
}

var (
	registryMu sync.RWMutex
	registry   = map[int]*Errno{}
)

// Define registers an errno whose statuses follow its category. Errnos are
// package-level variables, so an out-of-range part, an unknown category, a
// missing message or a duplicate code panics at init.
func Define(service, category, sequence int, en, zh string) *Errno {
	s, ok := categoryStatus[category]
	if !ok {
		panic(fmt.Sprintf("errors: unknown category %d", category))
	}
	return DefineStatus(service, category, sequence, s.http, en, zh)
}

// DefineStatus is Define with an explicit HTTP status.
func DefineStatus(service, category, sequence, httpStatus int, en, zh string) *Errno {
	switch {
	case service < 0 || service > 99:
		panic(fmt.Sprintf("errors: service code %d out of range [0, 99]", service))
	case sequence < 0 || sequence > 999:
		panic(fmt.Sprintf("errors: sequence %d out of range [0, 999]", sequence))
	case en == "":
		panic("errors: english message is required")
	}
	s, ok := categoryStatus[category]
	if !ok {
		panic(fmt.Sprintf("errors: unknown category %d", category))
	}

	e := &Errno{
		Code:      MakeCode(service, category, sequence),
		HTTP:      httpStatus,
		GRPCCode:  s.grpc,
		MessageEN: en,
		MessageZH: zh,
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if prev, dup := registry[e.Code]; dup {
		panic(fmt.Sprintf("errors: code %d already defined as %q", e.Code, prev.MessageEN))
	}
	registry[e.Code] = e
	return e
}

// Lookup returns the errno defined for code.
func Lookup(code int) (*Errno, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registry[code]
	return e, ok
}
