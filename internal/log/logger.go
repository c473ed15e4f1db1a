// Copyright 2021 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger is the logger implementation structure.
// It is thread safe to use.
type Logger struct {
	settings settings
	childs   []*Logger
	mutex    *sync.Mutex // pointer for child loggers
}

// New creates a new logger with the options given.
// Child loggers with different settings for the same writer
// should be created using the New(options) method on the
// parent, to ensure thread safety on the writer.
func New(options ...Option) *Logger {
	s := newSettings(options)
	s.setDefaults()

	return &Logger{
		settings: s,
		mutex:    new(sync.Mutex),
	}
}

// New creates a new thread safe child logger.
func (l *Logger) New(options ...Option) *Logger {
	s := newSettings(options)
	s.mergeWith(l.settings)
	s.setDefaults()

	child := &Logger{
		settings: s,
		mutex:    l.mutex,
	}
	l.childs = append(l.childs, child)
	return child
}

// Patch patches the existing settings with any option given.
// This is thread safe and propagates to all child loggers.
func (l *Logger) Patch(options ...Option) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.patchWithoutLocking(options...)
	for _, child := range l.childs {
		child.patchWithoutLocking(options...)
	}
}

func (l *Logger) patchWithoutLocking(options ...Option) {
	var updatedSettings settings
	updatedSettings.mergeWith(newSettings(options))
	updatedSettings.mergeWith(l.settings)
	updatedSettings.setDefaults()
	l.settings = updatedSettings
}

func (l *Logger) log(logLevel Level, s string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if logLevel < *l.settings.level {
		return
	}

	line := time.Now().Format("2006-01-02T15:04:05") + " " + logLevel.ColouredString() + " " + s

	if len(l.settings.context) > 0 {
		keyValues := make([]string, 0, len(l.settings.context))
		for _, kvs := range l.settings.context {
			keyValues = append(keyValues, kvs.key+"="+strings.Join(kvs.values, ","))
		}
		line += "\t" + strings.Join(keyValues, " ")
	}

	writer := l.settings.writer
	if writer == nil {
		writer = os.Stdout
	}
	_, _ = io.WriteString(writer, line+"\n")
}
