package domain

import "fmt"

// ActionFromMap builds a typed Action from a generic keyed mapping, as
// decoded from completion output or a step definition. The "action" key
// selects the variant; required fields are checked here so malformed
// objects are rejected before anything tries to execute them.
func ActionFromMap(m map[string]any) (Action, error) {
	kind, ok := m["action"].(string)
	if !ok {
		return nil, fmt.Errorf("object has no %q field", "action")
	}

	switch kind {
	case ActionRun:
		command, err := stringField(m, "command")
		if err != nil {
			return nil, err
		}
		background, _ := m["background"].(bool)
		return CmdRunAction{Command: command, Background: background}, nil

	case ActionKill:
		id, err := intField(m, "command_id")
		if err != nil {
			return nil, err
		}
		return CmdKillAction{CommandID: id}, nil

	case ActionRead:
		path, err := stringField(m, "path")
		if err != nil {
			return nil, err
		}
		return FileReadAction{Path: path}, nil

	case ActionWrite:
		path, err := stringField(m, "path")
		if err != nil {
			return nil, err
		}
		content, err := stringField(m, "content")
		if err != nil {
			return nil, err
		}
		return FileWriteAction{Path: path, Content: content}, nil

	case ActionBrowse:
		url, err := stringField(m, "url")
		if err != nil {
			return nil, err
		}
		return BrowseURLAction{URL: url}, nil

	case ActionRecall:
		query, err := stringField(m, "query")
		if err != nil {
			return nil, err
		}
		return AgentRecallAction{Query: query}, nil

	case ActionThink:
		thought, err := stringField(m, "thought")
		if err != nil {
			return nil, err
		}
		return AgentThinkAction{Thought: thought}, nil

	case ActionFinish:
		return AgentFinishAction{}, nil

	case ActionReject:
		reason, _ := m["reason"].(string)
		return AgentRejectAction{Reason: reason}, nil

	case ActionDelegate:
		agent, err := stringField(m, "agent")
		if err != nil {
			return nil, err
		}
		inputs, _ := m["inputs"].(map[string]any)
		return AgentDelegateAction{Agent: agent, Inputs: inputs}, nil

	case ActionPush:
		owner, err := stringField(m, "owner")
		if err != nil {
			return nil, err
		}
		repo, err := stringField(m, "repo")
		if err != nil {
			return nil, err
		}
		branch, err := stringField(m, "branch")
		if err != nil {
			return nil, err
		}
		return GithubPushAction{Owner: owner, Repo: repo, Branch: branch}, nil

	case ActionSendPR:
		owner, err := stringField(m, "owner")
		if err != nil {
			return nil, err
		}
		repo, err := stringField(m, "repo")
		if err != nil {
			return nil, err
		}
		title, err := stringField(m, "title")
		if err != nil {
			return nil, err
		}
		head, err := stringField(m, "head")
		if err != nil {
			return nil, err
		}
		base, err := stringField(m, "base")
		if err != nil {
			return nil, err
		}
		headRepo, _ := m["head_repo"].(string)
		body, _ := m["body"].(string)
		return GithubSendPRAction{
			Owner: owner, Repo: repo, Title: title,
			Head: head, HeadRepo: headRepo, Base: base, Body: body,
		}, nil

	case ActionNull:
		return NullAction{}, nil

	default:
		return nil, fmt.Errorf("unrecognized action %q", kind)
	}
}

func stringField(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("missing %q field", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q is not a string", key)
	}
	return s, nil
}

// intField accepts float64 because that is how encoding/json decodes
// numbers into map[string]any.
func intField(m map[string]any, key string) (int, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("missing %q field", key)
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("field %q is not a number", key)
	}
}
