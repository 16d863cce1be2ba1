// Package github performs the repository operations agents may
// request: pushing a branch through a temporary authenticated remote
// and opening pull requests through the REST API.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/drover-dev/drover/internal/domain"
	"github.com/drover-dev/drover/internal/ports"
)

type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

func New(token string) *Client {
	return &Client{
		token:   token,
		baseURL: "https://api.github.com",
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SetBaseURL points the client at a different API endpoint, for tests
// and GitHub Enterprise installs.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimSuffix(u, "/")
}

// Push pushes a branch from the workspace repository. The token rides
// on a throwaway remote that is removed again right after the push, so
// it never lands in the repository's persistent config. Git failures
// come back as an error observation, not an error.
func (c *Client) Push(ctx context.Context, sb ports.Sandbox, a domain.GithubPushAction) (domain.Observation, error) {
	if c.token == "" {
		return domain.AgentErrorObservation{Content: "github token is not set"}, nil
	}

	remote := tempRemoteName()
	remoteURL := fmt.Sprintf("https://%s@github.com/%s/%s.git", c.token, a.Owner, a.Repo)
	pushCmd := fmt.Sprintf("git push %s %s", remote, a.Branch)

	commands := []string{
		fmt.Sprintf("git remote add %s %s", remote, remoteURL),
		pushCmd,
		fmt.Sprintf("git remote remove %s", remote),
	}

	var output strings.Builder
	for _, cmd := range commands {
		result, err := sb.Execute(ctx, cmd)
		if err != nil {
			return nil, err
		}
		if output.Len() > 0 && result.Output != "" {
			output.WriteString("\n")
		}
		output.WriteString(result.Output)
		if result.ExitCode != 0 {
			return domain.AgentErrorObservation{
				Content: fmt.Sprintf("failed to push changes: %s", output.String()),
			}, nil
		}
	}

	return domain.CmdOutputObservation{Content: output.String(), Command: pushCmd}, nil
}

// SendPR opens a pull request. Anything but a 201 from the API comes
// back as an error observation carrying the response body.
func (c *Client) SendPR(ctx context.Context, a domain.GithubSendPRAction) (domain.Observation, error) {
	if c.token == "" {
		return domain.AgentErrorObservation{Content: "github token is not set"}, nil
	}

	payload := map[string]any{
		"title": a.Title,
		"head":  a.Head,
		"base":  a.Base,
	}
	if a.HeadRepo != "" {
		payload["head_repo"] = a.HeadRepo
	}
	if a.Body != "" {
		payload["body"] = a.Body
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/repos/%s/%s/pulls", c.baseURL, a.Owner, a.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.AgentErrorObservation{
			Content: fmt.Sprintf("failed to create pull request: %v", err),
		}, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return domain.AgentErrorObservation{
			Content: fmt.Sprintf("failed to create pull request: status %d: %s",
				resp.StatusCode, strings.TrimSpace(string(body))),
		}, nil
	}

	var created struct {
		HTMLURL string `json:"html_url"`
	}
	json.Unmarshal(body, &created)
	return domain.AgentMessageObservation{
		Content: "pull request created successfully: " + created.HTMLURL,
	}, nil
}

func tempRemoteName() string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	suffix := make([]byte, 5)
	for i := range suffix {
		suffix[i] = letters[rand.Intn(len(letters))]
	}
	return "drover_temp_" + string(suffix)
}
