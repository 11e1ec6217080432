/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package util

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

var Verbosity int
var logFile *os.File

const (
	VERBOSITY_SILENT  = 0
	VERBOSITY_QUIET   = 1
	VERBOSITY_DEFAULT = 2
	VERBOSITY_VERBOSE = 3
)

// Error kinds.  Every FwuError carries one of these (or nil); test for them
// with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrAllocation         = errors.New("allocation failure")
	ErrDevice             = errors.New("device error")
	ErrVerificationFailed = errors.New("verification failed")
)

type FwuError struct {
	Parent     error
	Kind       error
	Text       string
	StackTrace []byte
}

func (fe *FwuError) Error() string {
	return fe.Text
}

func (fe *FwuError) Unwrap() error {
	return fe.Parent
}

func (fe *FwuError) Is(target error) bool {
	return fe.Kind != nil && fe.Kind == target
}

func NewFwuError(msg string) *FwuError {
	err := &FwuError{
		Text:       msg,
		StackTrace: make([]byte, 65536),
	}

	stackLen := runtime.Stack(err.StackTrace, true)
	err.StackTrace = err.StackTrace[:stackLen]

	return err
}

func FmtFwuError(format string, args ...interface{}) *FwuError {
	return NewFwuError(fmt.Sprintf(format, args...))
}

// KindError creates an error of the given kind.  The kind's own text is
// appended so that log lines show the category.
func KindError(kind error, format string, args ...interface{}) *FwuError {
	err := FmtFwuError(format, args...)
	err.Kind = kind
	err.Text += " (" + kind.Error() + ")"
	return err
}

// FmtKindChildError wraps parent in an error of the given kind.
func FmtKindChildError(kind error, parent error, format string,
	args ...interface{}) *FwuError {

	fe := FmtChildFwuError(parent, format, args...)
	fe.Kind = kind
	fe.Text += " (" + kind.Error() + ")"
	return fe
}

func PreFwuError(err error, format string, args ...interface{}) *FwuError {
	baseErr, ok := err.(*FwuError)
	if !ok {
		baseErr = ChildFwuError(err)
	}
	baseErr.Text = fmt.Sprintf(format, args...) + "; " + baseErr.Text

	return baseErr
}

func ChildFwuError(parent error) *FwuError {
	kind := ErrorKind(parent)
	for {
		fwuErr, ok := parent.(*FwuError)
		if !ok || fwuErr == nil || fwuErr.Parent == nil {
			break
		}
		parent = fwuErr.Parent
	}

	fwuErr := NewFwuError(parent.Error())
	fwuErr.Parent = parent
	fwuErr.Kind = kind
	return fwuErr
}

func FmtChildFwuError(parent error, format string,
	args ...interface{}) *FwuError {

	fe := ChildFwuError(parent)
	fe.Text = fmt.Sprintf(format, args...)
	return fe
}

// ErrorKind returns the kind attached to err, or nil if it has none.
func ErrorKind(err error) error {
	for _, kind := range []error{
		ErrNotFound,
		ErrInvalidParameter,
		ErrAllocation,
		ErrDevice,
		ErrVerificationFailed,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}

	return nil
}

// Print Silent, Quiet and Verbose aware status messages to the given file.
func WriteMessage(f *os.File, level int, message string,
	args ...interface{}) {

	if Verbosity >= level {
		str := fmt.Sprintf(message, args...)
		f.WriteString(str)
		f.Sync()

		if logFile != nil {
			logFile.WriteString(str)
		}
	}
}

// Print Silent, Quiet and Verbose aware status messages to stdout.
func StatusMessage(level int, message string, args ...interface{}) {
	WriteMessage(os.Stdout, level, message, args...)
}

// Print Silent, Quiet and Verbose aware status messages to stderr.
func ErrorMessage(level int, message string, args ...interface{}) {
	WriteMessage(os.Stderr, level, message, args...)
}

type logFormatter struct{}

func (f *logFormatter) Format(entry *log.Entry) ([]byte, error) {
	// 2016/03/16 12:50:47.000 [DEBUG] message key=value

	b := &bytes.Buffer{}

	b.WriteString(entry.Time.Format("2006/01/02 15:04:05.000 "))
	b.WriteString("[" + strings.ToUpper(entry.Level.String()) + "] ")
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')

	return b.Bytes(), nil
}

func initLog(level log.Level, logFilename string) error {
	log.SetLevel(level)

	var writer io.Writer
	if logFilename == "" {
		writer = os.Stderr
	} else {
		var err error
		logFile, err = os.Create(logFilename)
		if err != nil {
			return ChildFwuError(err)
		}

		writer = io.MultiWriter(os.Stderr, logFile)
	}

	log.SetOutput(writer)
	log.SetFormatter(&logFormatter{})

	return nil
}

// Initialize the util module
func Init(logLevel log.Level, logFile string, verbosity int) error {
	// Configure logging twice.  First just configure the filter for stderr;
	// second configure the logfile if there is one.  This needs to happen in
	// two steps so that the log level is configured prior to the attempt to
	// open the log file.
	if err := initLog(logLevel, ""); err != nil {
		return err
	}
	if logFile != "" {
		if err := initLog(logLevel, logFile); err != nil {
			return err
		}
	}

	Verbosity = verbosity

	return nil
}

// EnvVarsToSlice converts an environment variable map into a slice of `k=v`
// strings.
func EnvVarsToSlice(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	slice := make([]string, 0, len(env))
	for _, key := range keys {
		slice = append(slice, fmt.Sprintf("%s=%s", key, env[key]))
	}

	return slice
}

// EnvironAsMap gathers the current process's set of environment variables and
// returns them as a map.
func EnvironAsMap() (map[string]string, error) {
	m := map[string]string{}
	for _, s := range os.Environ() {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) != 2 {
			return nil, FmtFwuError("invalid env var string: \"%s\"", s)
		}
		m[parts[0]] = parts[1]
	}

	return m, nil
}

// Execute the specified process and block until it completes.
//
// @param cmdStrs               The "argv" strings of the command to execute.
// @param env                   Additional key,value pairs to inject into the
// child process's environment.  Specify nil to just inherit the parent
// environment.
//
// @return []byte               Combined stdout and stderr output of process.
// @return error                FwuError on failure.
func ShellCommand(cmdStrs []string, env map[string]string) ([]byte, error) {
	if len(cmdStrs) == 0 {
		return nil, KindError(ErrInvalidParameter, "empty command")
	}

	log.Debugf("%s", strings.Join(cmdStrs, " "))

	cmd := exec.Command(cmdStrs[0], cmdStrs[1:]...)
	if env != nil {
		m, err := EnvironAsMap()
		if err != nil {
			return nil, err
		}

		for k, v := range env {
			m[k] = v
		}
		cmd.Env = EnvVarsToSlice(m)
	}

	o, err := cmd.CombinedOutput()
	log.Debugf("o=%s", string(o))

	if err != nil {
		fe := ChildFwuError(err)
		if len(o) > 0 {
			fe.Text = strings.TrimSpace(string(o))
		}
		return o, fe
	}

	return o, nil
}

// Converts the specified string to an integer.  The string can be in base-10
// or base-16.  This is equivalent to the "0" base used in the standard
// conversion functions, except octal is not supported (a leading zero implies
// decimal).
//
// The second return value is true on success.
func AtoiNoOctTry(s string) (int64, bool) {
	var runLen int
	for runLen = 0; runLen < len(s)-1; runLen++ {
		if s[runLen] != '0' || s[runLen+1] == 'x' {
			break
		}
	}

	if runLen > 0 {
		s = s[runLen:]
	}

	i, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, false
	}

	return i, true
}

// Converts the specified string to an integer.  The string can be in base-10
// or base-16.  A leading zero implies decimal.
func AtoiNoOct(s string) (int64, error) {
	val, success := AtoiNoOctTry(s)
	if !success {
		return 0, KindError(ErrInvalidParameter, "Invalid number: \"%s\"", s)
	}

	return val, nil
}

// ParseSize parses a byte count.  A "kb" or "mb" suffix scales the value.
func ParseSize(val string) (int64, error) {
	lower := strings.ToLower(strings.TrimSpace(val))

	var multiplier int64 = 1
	if strings.HasSuffix(lower, "kb") {
		multiplier = 1024
		lower = strings.TrimSuffix(lower, "kb")
	} else if strings.HasSuffix(lower, "mb") {
		multiplier = 1024 * 1024
		lower = strings.TrimSuffix(lower, "mb")
	}

	num, err := AtoiNoOct(strings.TrimSpace(lower))
	if err != nil {
		return 0, err
	}

	return num * multiplier, nil
}
