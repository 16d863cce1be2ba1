package domain

import "fmt"

// Action kind discriminators. These are the values accepted under the
// "action" key of a decoded command object.
const (
	ActionRun      = "run"
	ActionKill     = "kill"
	ActionRead     = "read"
	ActionWrite    = "write"
	ActionBrowse   = "browse"
	ActionRecall   = "recall"
	ActionThink    = "think"
	ActionFinish   = "finish"
	ActionReject   = "reject"
	ActionDelegate = "delegate"
	ActionPush     = "push"
	ActionSendPR   = "send_pr"
	ActionNull     = "null"
)

// Serializable converts a value into a plain keyed map for templates,
// status messages, and the event store. Every Action and Observation
// variant implements it; nothing in the codebase serializes these types
// through reflection.
type Serializable interface {
	ToMap() map[string]any
}

// Action is a decoded, typed executable instruction. Actions are
// immutable once produced: they come either from a fixed step definition
// or from extracting a completion response, never from mutation.
type Action interface {
	Serializable
	Kind() string
	Message() string
}

// Terminal reports whether an action ends the run. Finish and Reject are
// the two terminal signals.
func Terminal(a Action) bool {
	return a.Kind() == ActionFinish || a.Kind() == ActionReject
}

type CmdRunAction struct {
	Command    string
	Background bool
}

func (a CmdRunAction) Kind() string    { return ActionRun }
func (a CmdRunAction) Message() string { return "Running command: " + a.Command }
func (a CmdRunAction) ToMap() map[string]any {
	return map[string]any{"action": ActionRun, "command": a.Command, "background": a.Background}
}

type CmdKillAction struct {
	CommandID int
}

func (a CmdKillAction) Kind() string    { return ActionKill }
func (a CmdKillAction) Message() string { return fmt.Sprintf("Killing command %d", a.CommandID) }
func (a CmdKillAction) ToMap() map[string]any {
	return map[string]any{"action": ActionKill, "command_id": a.CommandID}
}

type FileReadAction struct {
	Path string
}

func (a FileReadAction) Kind() string    { return ActionRead }
func (a FileReadAction) Message() string { return "Reading file: " + a.Path }
func (a FileReadAction) ToMap() map[string]any {
	return map[string]any{"action": ActionRead, "path": a.Path}
}

type FileWriteAction struct {
	Path    string
	Content string
}

func (a FileWriteAction) Kind() string    { return ActionWrite }
func (a FileWriteAction) Message() string { return "Writing file: " + a.Path }
func (a FileWriteAction) ToMap() map[string]any {
	return map[string]any{"action": ActionWrite, "path": a.Path, "content": a.Content}
}

type BrowseURLAction struct {
	URL string
}

func (a BrowseURLAction) Kind() string    { return ActionBrowse }
func (a BrowseURLAction) Message() string { return "Browsing URL: " + a.URL }
func (a BrowseURLAction) ToMap() map[string]any {
	return map[string]any{"action": ActionBrowse, "url": a.URL}
}

type AgentRecallAction struct {
	Query string
}

func (a AgentRecallAction) Kind() string    { return ActionRecall }
func (a AgentRecallAction) Message() string { return "Recalling: " + a.Query }
func (a AgentRecallAction) ToMap() map[string]any {
	return map[string]any{"action": ActionRecall, "query": a.Query}
}

type AgentThinkAction struct {
	Thought string
}

func (a AgentThinkAction) Kind() string    { return ActionThink }
func (a AgentThinkAction) Message() string { return a.Thought }
func (a AgentThinkAction) ToMap() map[string]any {
	return map[string]any{"action": ActionThink, "thought": a.Thought}
}

// AgentFinishAction signals the procedure ran to completion.
type AgentFinishAction struct{}

func (a AgentFinishAction) Kind() string    { return ActionFinish }
func (a AgentFinishAction) Message() string { return "Finished" }
func (a AgentFinishAction) ToMap() map[string]any {
	return map[string]any{"action": ActionFinish}
}

// AgentRejectAction signals a step's side effect failed its acceptance
// criterion and the run stopped without claiming success.
type AgentRejectAction struct {
	Reason string
}

func (a AgentRejectAction) Kind() string { return ActionReject }
func (a AgentRejectAction) Message() string {
	if a.Reason == "" {
		return "Rejected"
	}
	return "Rejected: " + a.Reason
}
func (a AgentRejectAction) ToMap() map[string]any {
	m := map[string]any{"action": ActionReject}
	if a.Reason != "" {
		m["reason"] = a.Reason
	}
	return m
}

type AgentDelegateAction struct {
	Agent  string
	Inputs map[string]any
}

func (a AgentDelegateAction) Kind() string    { return ActionDelegate }
func (a AgentDelegateAction) Message() string { return "Delegating to agent: " + a.Agent }
func (a AgentDelegateAction) ToMap() map[string]any {
	return map[string]any{"action": ActionDelegate, "agent": a.Agent, "inputs": a.Inputs}
}

type GithubPushAction struct {
	Owner  string
	Repo   string
	Branch string
}

func (a GithubPushAction) Kind() string { return ActionPush }
func (a GithubPushAction) Message() string {
	return fmt.Sprintf("Pushing branch %s to %s/%s", a.Branch, a.Owner, a.Repo)
}
func (a GithubPushAction) ToMap() map[string]any {
	return map[string]any{"action": ActionPush, "owner": a.Owner, "repo": a.Repo, "branch": a.Branch}
}

type GithubSendPRAction struct {
	Owner    string
	Repo     string
	Title    string
	Head     string
	HeadRepo string
	Base     string
	Body     string
}

func (a GithubSendPRAction) Kind() string { return ActionSendPR }
func (a GithubSendPRAction) Message() string {
	return fmt.Sprintf("Sending PR from %s to %s:%s", a.Head, a.Owner, a.Base)
}
func (a GithubSendPRAction) ToMap() map[string]any {
	m := map[string]any{
		"action": ActionSendPR,
		"owner":  a.Owner,
		"repo":   a.Repo,
		"title":  a.Title,
		"head":   a.Head,
		"base":   a.Base,
	}
	if a.HeadRepo != "" {
		m["head_repo"] = a.HeadRepo
	}
	if a.Body != "" {
		m["body"] = a.Body
	}
	return m
}

type NullAction struct{}

func (a NullAction) Kind() string    { return ActionNull }
func (a NullAction) Message() string { return "" }
func (a NullAction) ToMap() map[string]any {
	return map[string]any{"action": ActionNull}
}
