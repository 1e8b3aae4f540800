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

// logger.go:
//
//	Console logger implementation of the vlogger interface.
package vlogger

import (
	"fmt"
	"log"
	"log/syslog"
	"os"
)

type consoleLogger struct {
	// Uses syslog priorities, which are defined in descending order
	// (0 is highest).
	slLogLevel syslog.Priority
}

// NewConsoleLogger creates a logger that prints all levels to the
// console.
func NewConsoleLogger() *consoleLogger {
	return &consoleLogger{
		slLogLevel: syslog.LOG_DEBUG,
	}
}

func (cl *consoleLogger) Debug(msg string) {
	if cl.slLogLevel >= syslog.LOG_DEBUG {
		log.Println("[DEBUG]", msg)
	}
}

func (cl *consoleLogger) Debugf(format string, params ...interface{}) {
	cl.Debug(fmt.Sprintf(format, params...))
}

func (cl *consoleLogger) Info(msg string) {
	if cl.slLogLevel >= syslog.LOG_INFO {
		log.SetOutput(os.Stdout)
		log.Println("[INFO]", msg)
		log.SetOutput(os.Stderr)
	}
}

func (cl *consoleLogger) Infof(format string, params ...interface{}) {
	cl.Info(fmt.Sprintf(format, params...))
}

func (cl *consoleLogger) Warning(msg string) {
	if cl.slLogLevel >= syslog.LOG_WARNING {
		log.Println("[WARNING]", msg)
	}
}

func (cl *consoleLogger) Warningf(format string, params ...interface{}) {
	cl.Warning(fmt.Sprintf(format, params...))
}

func (cl *consoleLogger) Error(msg string) {
	if cl.slLogLevel >= syslog.LOG_ERR {
		log.Println("[ERROR]", msg)
	}
}

func (cl *consoleLogger) Errorf(format string, params ...interface{}) {
	cl.Error(fmt.Sprintf(format, params...))
}

func (cl *consoleLogger) Critical(msg string) {
	if cl.slLogLevel >= syslog.LOG_CRIT {
		log.Println("[CRITICAL]", msg)
	}
}

func (cl *consoleLogger) Criticalf(format string, params ...interface{}) {
	cl.Critical(fmt.Sprintf(format, params...))
}

func (cl *consoleLogger) SetLogLevel(slLogLevel syslog.Priority) {
	cl.slLogLevel = slLogLevel
}

func (cl *consoleLogger) GetLogLevel() syslog.Priority {
	return cl.slLogLevel
}

func (cl *consoleLogger) Close() {
}
