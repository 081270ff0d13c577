// Package bitrix is a minimal Bitrix24 REST client used to relay answers and
// escalate conversations.
package bitrix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured is returned when neither a webhook URL nor a base URL and
// token are set.
var ErrNotConfigured = errors.New("bitrix24 is not configured")

const typingTimeout = 5 * time.Second

// Config holds Bitrix24 credentials.
type Config struct {
	WebhookURL  string
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

// Client calls Bitrix24 REST methods.
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a Bitrix24 client. An incoming webhook URL takes
// precedence over base URL plus access token.
func NewClient(cfg Config) (*Client, error) {
	var endpoint string
	switch {
	case cfg.WebhookURL != "":
		endpoint = strings.TrimRight(cfg.WebhookURL, "/")
	case cfg.BaseURL != "" && cfg.AccessToken != "":
		endpoint = fmt.Sprintf("%s/rest/%s", strings.TrimRight(cfg.BaseURL, "/"), cfg.AccessToken)
	default:
		return nil, ErrNotConfigured
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		timeout:    timeout,
		httpClient: &http.Client{},
	}, nil
}

// apiResponse is the common Bitrix24 REST envelope.
type apiResponse struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// APIError is an error reported by Bitrix24 in the response body.
type APIError struct {
	Method      string
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("bitrix24 %s failed: %s", e.Method, e.Code)
	}
	return fmt.Sprintf("bitrix24 %s failed: %s - %s", e.Method, e.Code, e.Description)
}

// SendMessage posts text into a dialog.
func (c *Client) SendMessage(ctx context.Context, dialogID, text string) error {
	return c.call(ctx, c.timeout, "im.message.add", map[string]any{
		"DIALOG_ID": dialogID,
		"MESSAGE":   text,
	}, nil)
}

// SetTyping shows the "bot is typing" indicator in a dialog.
func (c *Client) SetTyping(ctx context.Context, dialogID string) error {
	return c.call(ctx, typingTimeout, "im.dialog.writing", map[string]any{
		"DIALOG_ID": dialogID,
	}, nil)
}

// User is the subset of user.get fields the bot uses.
type User struct {
	ID           string `json:"ID"`
	Name         string `json:"NAME"`
	LastName     string `json:"LAST_NAME"`
	Email        string `json:"EMAIL"`
	WorkPosition string `json:"WORK_POSITION"`
	Department   []int  `json:"UF_DEPARTMENT"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.Name + " " + u.LastName)
}

// GetUser returns a user profile, or nil when the user does not exist.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var users []User
	if err := c.call(ctx, c.timeout, "user.get", map[string]any{"ID": userID}, &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// Department is the subset of department.get fields the bot uses.
type Department struct {
	ID   string `json:"ID"`
	Name string `json:"NAME"`
}

// GetDepartment returns a department, or nil when it does not exist.
func (c *Client) GetDepartment(ctx context.Context, id string) (*Department, error) {
	var deps []Department
	if err := c.call(ctx, c.timeout, "department.get", map[string]any{"ID": id}, &deps); err != nil {
		return nil, err
	}
	if len(deps) == 0 {
		return nil, nil
	}
	return &deps[0], nil
}

// CreateTask opens a high priority task for responsibleID and returns its id.
func (c *Client) CreateTask(ctx context.Context, title, description, responsibleID string) (string, error) {
	var result struct {
		Task struct {
			ID json.Number `json:"id"`
		} `json:"task"`
	}
	err := c.call(ctx, c.timeout, "tasks.task.add", map[string]any{
		"fields": map[string]any{
			"TITLE":          title,
			"DESCRIPTION":    description,
			"RESPONSIBLE_ID": responsibleID,
			"PRIORITY":       "2",
		},
	}, &result)
	if err != nil {
		return "", err
	}
	return result.Task.ID.String(), nil
}

func (c *Client) call(ctx context.Context, timeout time.Duration, method string, params any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		if resp.StatusCode >= 300 {
			return fmt.Errorf("bitrix24 %s returned status %d", method, resp.StatusCode)
		}
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if envelope.Error != "" {
		return &APIError{Method: method, Code: envelope.Error, Description: envelope.ErrorDescription}
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("bitrix24 %s returned status %d", method, resp.StatusCode)
	}
	if isEmptyResult(envelope.Result) {
		return &APIError{Method: method, Code: "EMPTY_RESULT"}
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("failed to parse %s result: %w", method, err)
		}
	}
	return nil
}

func isEmptyResult(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "false":
		return true
	}
	return false
}
