// Copyright (C) 2023  mvfst authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package log provides the logging facilities used by this project.
// It is a thin front of a logrus logger with a customized formatter.
package log

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Fields is a set of key value pairs attached to a log entry.
type Fields = logrus.Fields

// Level is the severity of a log entry.
type Level = logrus.Level

const (
	FatalLevel Level = logrus.FatalLevel
	ErrorLevel Level = logrus.ErrorLevel
	WarnLevel  Level = logrus.WarnLevel
	InfoLevel  Level = logrus.InfoLevel
	DebugLevel Level = logrus.DebugLevel
	TraceLevel Level = logrus.TraceLevel
)

var std = logrus.New()

// init modifies the logger instance with the desired output (stderr)
// and customized formatter.
func init() {
	std.SetOutput(os.Stderr)
	std.SetFormatter(&DaemonFormatter{})
	std.SetLevel(InfoLevel)
}

// SetLevel adjusts the severity below which log entries are discarded.
func SetLevel(level string) error {
	l, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	std.SetLevel(l)
	return nil
}

// IsLevelEnabled checks if the given level will be printed.
// Call this before composing an expensive log entry.
func IsLevelEnabled(level Level) bool {
	return std.IsLevelEnabled(level)
}

// SetOutput redirects log entries to the given writer.
func SetOutput(out io.Writer) {
	std.SetOutput(out)
}

// SetFormatter replaces the log formatter.
func SetFormatter(formatter logrus.Formatter) {
	std.SetFormatter(formatter)
}

// WithFields creates a log entry builder with the given fields attached.
func WithFields(fields Fields) *logrus.Entry {
	return std.WithFields(fields)
}

func Tracef(format string, args ...any) {
	std.Tracef(format, args...)
}

func Debugf(format string, args ...any) {
	std.Debugf(format, args...)
}

func Infof(format string, args ...any) {
	std.Infof(format, args...)
}

func Warnf(format string, args ...any) {
	std.Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	std.Errorf(format, args...)
}

func Fatalf(format string, args ...any) {
	std.Fatalf(format, args...)
}
