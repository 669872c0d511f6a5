// Package debug provides global debug logging flags
package debug

import "go.uber.org/zap"

// Enabled controls whether debug logging is active
var Enabled bool

// Frames controls whether per-frame snapshots are logged (very verbose, ~30 lines/s per session)
// Use --debug-frames flag to enable
var Frames bool

// Log writes a debug message only if debug mode is enabled
func Log(l *zap.Logger, msg string, fields ...zap.Field) {
	if Enabled && l != nil {
		l.Debug(msg, fields...)
	}
}

// FrameLog writes a message only if frame debug mode is enabled
func FrameLog(l *zap.Logger, msg string, fields ...zap.Field) {
	if Frames && l != nil {
		l.Debug(msg, fields...)
	}
}
