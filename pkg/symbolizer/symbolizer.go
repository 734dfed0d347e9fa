// Package symbolizer turns raw frame addresses into function names and
// source locations by talking to an external resolver such as addr2line.
package symbolizer

import "errors"

// ErrResolverUnavailable is returned once the resolver process has exited or
// its pipes have failed. It is permanent for the lifetime of the Resolver.
var ErrResolverUnavailable = errors.New("resolver unavailable")

// ErrInvalidAddress is returned for addresses that would break the line protocol.
var ErrInvalidAddress = errors.New("invalid address")

// Resolver maps one address to one line of symbol text.
// Calls are blocking; implementations serialize concurrent callers.
type Resolver interface {
	Resolve(address string) (string, error)
	// Close releases the resolver. A non-zero child exit is reported as an error.
	Close() error
}
