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

// log_null.go:
//
//	Turns off all logging.
package vlogger

import "log/syslog"

type nullLogger struct {
	slLogLevel syslog.Priority
}

// newNullLogger creates a logger object that drops all log messages.
func newNullLogger() *nullLogger {
	return &nullLogger{
		slLogLevel: syslog.LOG_DEBUG,
	}
}

func init() {
	// Keeps the global interface from starting out with an
	// undefined implementation.
	RegisterLogger(LLMinLevel, LLMaxLevel, newNullLogger())
}

func (nl *nullLogger) Debug(msg string)                               {}
func (nl *nullLogger) Debugf(format string, params ...interface{})    {}
func (nl *nullLogger) Info(msg string)                                {}
func (nl *nullLogger) Infof(format string, params ...interface{})     {}
func (nl *nullLogger) Warning(msg string)                             {}
func (nl *nullLogger) Warningf(format string, params ...interface{})  {}
func (nl *nullLogger) Error(msg string)                               {}
func (nl *nullLogger) Errorf(format string, params ...interface{})    {}
func (nl *nullLogger) Critical(msg string)                            {}
func (nl *nullLogger) Criticalf(format string, params ...interface{}) {}
func (nl *nullLogger) Close()                                         {}

func (nl *nullLogger) SetLogLevel(slLogLevel syslog.Priority) {
	nl.slLogLevel = slLogLevel
}

func (nl *nullLogger) GetLogLevel() syslog.Priority {
	return nl.slLogLevel
}
