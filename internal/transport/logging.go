// SPDX-License-Identifier: MIT
package transport

import (
	applog "tuner/internal/log"
	"tuner/internal/session"
)

// LoggingTransport implements the Transport interface by logging data at
// debug level.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data. Frames are summarized on one line.
func (lt *LoggingTransport) Send(data any) error {
	if applog.GetLevel() > applog.LevelDebug {
		return nil
	}

	switch v := data.(type) {
	case session.Frame:
		if v.Voiced {
			applog.Debugf("LOG_TRANSPORT: #%d %.2f Hz %s stable=%d gated=%v samples=%d",
				v.Seq, v.Frequency, v.Note, v.Stable, v.Gated, v.Samples)
		} else {
			applog.Debugf("LOG_TRANSPORT: #%d --", v.Seq)
		}
	default:
		applog.Debugf("LOG_TRANSPORT: Received (%T): %+v", data, data)
	}
	return nil // Logging transport never fails to "send"
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("LOG_TRANSPORT: Close called.")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
