// Copyright 2021 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package log

import (
	"io"
)

// Option is the type to specify settings modifiers
// for the logger operation.
type Option func(s *settings)

// SetLevel sets the level for the logger.
// The level defaults to the info level.
func SetLevel(level Level) Option {
	return func(s *settings) {
		if level == DoNotChange {
			return
		}
		s.level = &level
	}
}

// SetWriter sets the writer for the logger.
// The writer defaults to os.Stdout.
func SetWriter(writer io.Writer) Option {
	return func(s *settings) {
		s.writer = writer
	}
}

// AddContext adds the context for the logger as a key values pair.
// It adds them in order. If a key already exists, the value is added to the
// existing values.
func AddContext(key, value string) Option {
	return func(s *settings) {
		for i := range s.context {
			if s.context[i].key == key {
				s.context[i].values = append(s.context[i].values, value)
				return
			}
		}
		newKV := contextKeyValues{key: key, values: []string{value}}
		s.context = append(s.context, newKV)
	}
}

type contextKeyValues struct {
	key    string
	values []string
}

type settings struct {
	writer  io.Writer
	level   *Level
	context []contextKeyValues
}

func newSettings(options []Option) (s settings) {
	for _, option := range options {
		option(&s)
	}
	return s
}

// mergeWith sets empty fields of the receiver to the
// fields of the other settings given.
func (s *settings) mergeWith(other settings) {
	if s.writer == nil {
		s.writer = other.writer
	}

	if s.level == nil && other.level != nil {
		level := *other.level
		s.level = &level
	}

	for _, kvs := range other.context {
		values := make([]string, len(kvs.values))
		copy(values, kvs.values)
		s.context = append(s.context, contextKeyValues{key: kvs.key, values: values})
	}
}

func (s *settings) setDefaults() {
	if s.level == nil {
		level := Info
		s.level = &level
	}
}
