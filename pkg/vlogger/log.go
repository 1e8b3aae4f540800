// Copyright (c) 2021-2023, F5 Networks, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// log.go:
//
//	Generic leveled logging interface that the rest of the controller
//	programs to. Concrete loggers are registered per level.
package vlogger

import (
	"fmt"
	"log/syslog"
	"os"
	"strings"
)

// LogLevel filters log messages at the package level before any
// filtering done by the registered concrete loggers.
type LogLevel int

const (
	// Must stay in ascending priority order.
	LLDebug LogLevel = iota
	LLInfo
	LLWarning
	LLError
	LLCritical
	llSize

	LLMinLevel = LLDebug
	LLMaxLevel = llSize - 1
)

func (ll LogLevel) String() string {
	switch ll {
	case LLDebug:
		return "debug"
	case LLInfo:
		return "info"
	case LLWarning:
		return "warning"
	case LLError:
		return "error"
	case LLCritical:
		return "critical"
	default:
		return "invalid"
	}
}

// NewLogLevel converts a string to a log level, returning nil for
// unrecognized input.
func NewLogLevel(s string) *LogLevel {
	var r LogLevel
	switch strings.ToLower(s) {
	case "debug":
		r = LLDebug
	case "info":
		r = LLInfo
	case "warning":
		r = LLWarning
	case "error":
		r = LLError
	case "critical":
		r = LLCritical
	default:
		return nil
	}
	return &r
}

// Logger is implemented by all concrete loggers. User code goes through
// the package-level functions so it stays isolated from the
// implementation.
type Logger interface {
	Debug(string)
	Debugf(string, ...interface{})
	Info(string)
	Infof(string, ...interface{})
	Warning(string)
	Warningf(string, ...interface{})
	Error(string)
	Errorf(string, ...interface{})
	Critical(string)
	Criticalf(string, ...interface{})
	GetLogLevel() syslog.Priority
	SetLogLevel(syslog.Priority)
	Close()
}

var (
	// Logger registered for each level (commonly all the same object).
	vlog [llSize]Logger

	logLevel = LLDebug

	// Maps package levels onto syslog priorities used internally by the
	// concrete loggers.
	syslogLevels = [llSize]syslog.Priority{
		syslog.LOG_DEBUG,
		syslog.LOG_INFO,
		syslog.LOG_WARNING,
		syslog.LOG_ERR,
		syslog.LOG_CRIT,
	}
)

// RegisterLogger maps a concrete logger to a range of log levels.
func RegisterLogger(minLevel, maxLevel LogLevel, log Logger) {
	for level := minLevel; level <= maxLevel; level++ {
		vlog[level] = log
	}
}

// SetLogLevel sets the package-level filtering.
func SetLogLevel(level LogLevel) {
	logLevel = level
	sl := syslogLevels[level]
	for _, l := range vlog {
		if l != nil {
			l.SetLogLevel(sl)
		}
	}
}

// GetLogLevel returns the current package-level filtering.
func GetLogLevel() LogLevel {
	return logLevel
}

func Debug(msg string) {
	vlog[LLDebug].Debug(msg)
}

func Debugf(format string, params ...interface{}) {
	vlog[LLDebug].Debugf(format, params...)
}

func Info(msg string) {
	vlog[LLInfo].Info(msg)
}

func Infof(format string, params ...interface{}) {
	vlog[LLInfo].Infof(format, params...)
}

func Warning(msg string) {
	vlog[LLWarning].Warning(msg)
}

func Warningf(format string, params ...interface{}) {
	vlog[LLWarning].Warningf(format, params...)
}

func Error(msg string) {
	vlog[LLError].Error(msg)
}

func Errorf(format string, params ...interface{}) {
	vlog[LLError].Errorf(format, params...)
}

func Critical(msg string) {
	vlog[LLCritical].Critical(msg)
}

func Criticalf(format string, params ...interface{}) {
	vlog[LLCritical].Criticalf(format, params...)
}

// Fatal logs a critical message and exits. Not for use in library
// packages.
func Fatal(msg string) {
	vlog[LLCritical].Critical(msg)
	Close()
	os.Exit(1)
}

// Fatalf logs a formatted critical message and exits. Not for use in
// library packages.
func Fatalf(format string, params ...interface{}) {
	vlog[LLCritical].Criticalf(format, params...)
	Close()
	os.Exit(1)
}

// Panicf logs a formatted critical message and panics.
func Panicf(format string, params ...interface{}) {
	msg := fmt.Sprintf(format, params...)
	vlog[LLCritical].Critical(msg)
	panic(msg)
}

// Close flushes and releases all registered loggers.
func Close() {
	for _, l := range vlog {
		if l != nil {
			l.Close()
		}
	}
}
