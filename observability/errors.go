package observability

import "errors"

// ErrNilConfig is returned when Validate is called on a nil Config pointer.
var ErrNilConfig = errors.New("observability: config is nil")

// ErrMissingServiceName is returned when observability is enabled but no service name is configured.
var ErrMissingServiceName = errors.New("observability: service name is required when observability is enabled")

// ErrInvalidSampleRate is returned when the trace sample rate is outside [0.0, 1.0].
var ErrInvalidSampleRate = errors.New("observability: trace sample rate must be between 0.0 and 1.0")

// ErrInvalidProtocol is returned when a protocol is not "http" or "grpc".
var ErrInvalidProtocol = errors.New("observability: protocol must be either 'http' or 'grpc'")

// ErrInvalidEndpointFormat is returned when the endpoint format doesn't match the protocol.
var ErrInvalidEndpointFormat = errors.New("observability: invalid endpoint format for protocol")

// ErrInvalidCompression is returned when the compression value is not "gzip" or "none".
var ErrInvalidCompression = errors.New("observability: compression must be either 'gzip' or 'none'")
