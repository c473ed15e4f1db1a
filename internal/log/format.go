// Copyright 2021 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package log

import (
	"fmt"
)

// Tracef formats and logs at the trce level.
func (l *Logger) Tracef(format string, args ...interface{}) {
	l.log(Trace, fmt.Sprintf(format, args...))
}

// Debugf formats and logs at the dbug level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(Debug, fmt.Sprintf(format, args...))
}

// Infof formats and logs at the info level.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(Info, fmt.Sprintf(format, args...))
}

// Warnf formats and logs at the warn level.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(Warn, fmt.Sprintf(format, args...))
}

// Errorf formats and logs at the eror level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(Error, fmt.Sprintf(format, args...))
}

// Criticalf formats and logs at the crit level.
func (l *Logger) Criticalf(format string, args ...interface{}) {
	l.log(Critical, fmt.Sprintf(format, args...))
}

// Trace logs at the trce level.
func (l *Logger) Trace(s string) { l.log(Trace, s) }

// Debug logs at the dbug level.
func (l *Logger) Debug(s string) { l.log(Debug, s) }

// Info logs at the info level.
func (l *Logger) Info(s string) { l.log(Info, s) }

// Warn logs at the warn level.
func (l *Logger) Warn(s string) { l.log(Warn, s) }

// Error logs at the eror level.
func (l *Logger) Error(s string) { l.log(Error, s) }

// Critical logs at the crit level.
func (l *Logger) Critical(s string) { l.log(Critical, s) }
