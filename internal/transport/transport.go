// SPDX-License-Identifier: MIT
package transport

import "errors"

// Transport defines a generic interface for sending frames or events.
// Implementations should be thread-safe and Send must not block, since it
// is called from the capture callback.
type Transport interface {
	Send(data any) error
	Close() error
}

// Multi fans every Send out to several transports.
type Multi []Transport

// Send forwards data to every transport and returns the first error.
func (m Multi) Send(data any) error {
	var first error
	for _, t := range m {
		if err := t.Send(data); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every transport and returns the first error.
func (m Multi) Close() error {
	var first error
	for _, t := range m {
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ Transport = Multi(nil)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")
