package datarecording

import (
	"os"
	"strings"
	"time"
)

const (
	execTable  = "exec_info"
	timeLayout = "2006-01-02 15:04:05.000000000"
)

type execInfo struct {
	Property string
	Value    string
}

// ExecRecorder records properties of one program run, such as the command
// line and the configuration, into the exec_info table.
type ExecRecorder struct {
	recorder DataRecorder
	entries  []execInfo
}

// NewExecRecorder creates the exec_info table on recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	recorder.CreateTable(execTable, execInfo{})

	return &ExecRecorder{recorder: recorder}
}

// Start records the start time, the command line, and the working
// directory.
func (e *ExecRecorder) Start() {
	e.Set("Start Time", time.Now().Format(timeLayout))
	e.Set("Command", strings.Join(os.Args, " "))

	cwd, err := os.Getwd()
	if err == nil {
		e.Set("Working Directory", cwd)
	}
}

// Set records a property.
func (e *ExecRecorder) Set(property, value string) {
	e.entries = append(e.entries, execInfo{Property: property, Value: value})
}

// End records the end time and writes every property.
func (e *ExecRecorder) End() {
	e.Set("End Time", time.Now().Format(timeLayout))

	for _, entry := range e.entries {
		e.recorder.InsertData(execTable, entry)
	}

	e.entries = nil

	e.recorder.Flush()
}
