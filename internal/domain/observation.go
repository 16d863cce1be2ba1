package domain

import "fmt"

// Observation kind discriminators.
const (
	ObservationRun     = "run"
	ObservationRead    = "read"
	ObservationWrite   = "write"
	ObservationBrowse  = "browse"
	ObservationRecall  = "recall"
	ObservationMessage = "message"
	ObservationError   = "error"
	ObservationNull    = "null"
)

// Observation is the externally observed result of executing an Action.
type Observation interface {
	Serializable
	Kind() string
	Message() string
}

// Accept applies the outcome-acceptance rule used when validating a
// completed workflow step: command output passes only on a zero exit
// code, every other observation kind passes unconditionally.
func Accept(obs Observation) bool {
	if o, ok := obs.(CmdOutputObservation); ok {
		return o.ExitCode == 0
	}
	return true
}

// CmdOutputObservation carries the captured output and exit code of an
// executed shell command. It is the only observation kind with a status.
type CmdOutputObservation struct {
	Content   string
	Command   string
	CommandID int
	ExitCode  int
}

func (o CmdOutputObservation) Kind() string { return ObservationRun }
func (o CmdOutputObservation) Message() string {
	return fmt.Sprintf("Command `%s` executed with exit code %d", o.Command, o.ExitCode)
}
func (o CmdOutputObservation) ToMap() map[string]any {
	return map[string]any{
		"observation": ObservationRun,
		"content":     o.Content,
		"command":     o.Command,
		"command_id":  o.CommandID,
		"exit_code":   o.ExitCode,
	}
}

type FileReadObservation struct {
	Content string
	Path    string
}

func (o FileReadObservation) Kind() string    { return ObservationRead }
func (o FileReadObservation) Message() string { return "Read from " + o.Path }
func (o FileReadObservation) ToMap() map[string]any {
	return map[string]any{"observation": ObservationRead, "content": o.Content, "path": o.Path}
}

type FileWriteObservation struct {
	Content string
	Path    string
}

func (o FileWriteObservation) Kind() string    { return ObservationWrite }
func (o FileWriteObservation) Message() string { return "Wrote to " + o.Path }
func (o FileWriteObservation) ToMap() map[string]any {
	return map[string]any{"observation": ObservationWrite, "content": o.Content, "path": o.Path}
}

type BrowserOutputObservation struct {
	Content    string
	URL        string
	StatusCode int
}

func (o BrowserOutputObservation) Kind() string    { return ObservationBrowse }
func (o BrowserOutputObservation) Message() string { return "Visited " + o.URL }
func (o BrowserOutputObservation) ToMap() map[string]any {
	return map[string]any{
		"observation": ObservationBrowse,
		"content":     o.Content,
		"url":         o.URL,
		"status_code": o.StatusCode,
	}
}

type AgentRecallObservation struct {
	Content  string
	Memories []string
}

func (o AgentRecallObservation) Kind() string    { return ObservationRecall }
func (o AgentRecallObservation) Message() string { return "Recalled memories" }
func (o AgentRecallObservation) ToMap() map[string]any {
	return map[string]any{"observation": ObservationRecall, "content": o.Content, "memories": o.Memories}
}

type AgentMessageObservation struct {
	Content string
}

func (o AgentMessageObservation) Kind() string    { return ObservationMessage }
func (o AgentMessageObservation) Message() string { return o.Content }
func (o AgentMessageObservation) ToMap() map[string]any {
	return map[string]any{"observation": ObservationMessage, "content": o.Content}
}

type AgentErrorObservation struct {
	Content string
}

func (o AgentErrorObservation) Kind() string    { return ObservationError }
func (o AgentErrorObservation) Message() string { return o.Content }
func (o AgentErrorObservation) ToMap() map[string]any {
	return map[string]any{"observation": ObservationError, "content": o.Content}
}

type NullObservation struct {
	Content string
}

func (o NullObservation) Kind() string    { return ObservationNull }
func (o NullObservation) Message() string { return "" }
func (o NullObservation) ToMap() map[string]any {
	return map[string]any{"observation": ObservationNull, "content": o.Content}
}

// Interaction is one executed (Action, Observation) pair. The run loop
// appends these between turns; the workflow driver only reads them.
type Interaction struct {
	Action      Action
	Observation Observation
}
