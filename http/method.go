package http

import (
	nethttp "net/http"
	"strings"
)

// Method is one of the eight verbs the client can send.
type Method int

const (
	MethodGet Method = iota + 1
	MethodHead
	MethodPost
	MethodPut
	MethodPatch
	MethodDelete
	MethodOptions
	MethodTrace
)

// Methods lists every supported verb in declaration order.
var Methods = []Method{
	MethodGet,
	MethodHead,
	MethodPost,
	MethodPut,
	MethodPatch,
	MethodDelete,
	MethodOptions,
	MethodTrace,
}

// String returns the wire name of the verb, or "" for an unknown value.
func (m Method) String() string {
	switch m {
	case MethodGet:
		return nethttp.MethodGet
	case MethodHead:
		return nethttp.MethodHead
	case MethodPost:
		return nethttp.MethodPost
	case MethodPut:
		return nethttp.MethodPut
	case MethodPatch:
		return nethttp.MethodPatch
	case MethodDelete:
		return nethttp.MethodDelete
	case MethodOptions:
		return nethttp.MethodOptions
	case MethodTrace:
		return nethttp.MethodTrace
	}
	return ""
}

// AllowsBody reports whether a request body is ever written for this verb.
// GET, HEAD and TRACE drop any supplied body and content type.
func (m Method) AllowsBody() bool {
	switch m {
	case MethodGet, MethodHead, MethodTrace:
		return false
	case MethodPost, MethodPut, MethodPatch, MethodDelete, MethodOptions:
		return true
	}
	return false
}

// Valid reports whether m is one of the supported verbs.
func (m Method) Valid() bool {
	return m.String() != ""
}

// ParseMethod maps a verb name (case-insensitive) to a Method.
func ParseMethod(name string) (Method, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for _, m := range Methods {
		if m.String() == upper {
			return m, nil
		}
	}
	return 0, NewValidationError("unsupported HTTP method "+name, "method")
}
