package research

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"github.com/bt-bridge/agent-chat/shared"
)

// HTTPClient talks to an agents/threads/runs REST surface
// (Azure AI Foundry Agents shape) over fasthttp.
type HTTPClient struct {
	logger     shared.LoggerAdapter
	endpoint   *url.URL
	apiVersion string
	token      string
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(logger shared.LoggerAdapter, endpoint, apiVersion, token string) (*HTTPClient, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if endpoint == "" {
		return nil, shared.ErrNoEndpoint
	}
	if token == "" {
		return nil, shared.ErrNoAPIKey
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint: %w", err)
	}
	if apiVersion == "" {
		apiVersion = "2025-05-01"
	}
	return &HTTPClient{
		logger:     logger,
		endpoint:   u,
		apiVersion: apiVersion,
		token:      token,
	}, nil
}

func (c *HTTPClient) CreateThread(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, fasthttp.MethodPost, []string{"threads"}, nil, map[string]any{}, &out); err != nil {
		return "", fmt.Errorf("creating thread: %w", err)
	}
	return out.ID, nil
}

func (c *HTTPClient) CreateMessage(ctx context.Context, threadID string, role MessageRole, content string) error {
	body := map[string]any{
		"role":    string(role),
		"content": content,
	}
	if err := c.do(ctx, fasthttp.MethodPost, []string{"threads", threadID, "messages"}, nil, body, nil); err != nil {
		return fmt.Errorf("creating message: %w", err)
	}
	return nil
}

func (c *HTTPClient) CreateRun(ctx context.Context, threadID, agentID string) (Run, error) {
	body := map[string]any{"assistant_id": agentID}
	var raw wireRun
	if err := c.do(ctx, fasthttp.MethodPost, []string{"threads", threadID, "runs"}, nil, body, &raw); err != nil {
		return Run{}, fmt.Errorf("creating run: %w", err)
	}
	return raw.toRun(), nil
}

func (c *HTTPClient) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	var raw wireRun
	if err := c.do(ctx, fasthttp.MethodGet, []string{"threads", threadID, "runs", runID}, nil, nil, &raw); err != nil {
		return Run{}, fmt.Errorf("getting run: %w", err)
	}
	return raw.toRun(), nil
}

func (c *HTTPClient) GetLastMessageByRole(ctx context.Context, threadID string, role MessageRole) (*ThreadMessage, error) {
	query := map[string]string{
		"order": "desc",
		"limit": "20",
	}
	var out struct {
		Data []wireMessage `json:"data"`
	}
	if err := c.do(ctx, fasthttp.MethodGet, []string{"threads", threadID, "messages"}, query, nil, &out); err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	for i := range out.Data {
		if out.Data[i].Role == string(role) {
			return out.Data[i].toThreadMessage(), nil
		}
	}
	return nil, nil
}

func (c *HTTPClient) do(ctx context.Context, method string, pathParts []string, query map[string]string, body any, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	uri := c.endpoint.JoinPath(pathParts...)
	q := uri.Query()
	q.Set("api-version", c.apiVersion)
	for k, v := range query {
		q.Set(k, v)
	}
	uri.RawQuery = q.Encode()

	req.SetRequestURI(uri.String())
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	errC := make(chan error)
	go func() {
		defer close(errC)
		errC <- fasthttp.Do(req, resp)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errC:
		if err != nil {
			return fmt.Errorf("performing HTTP request: %w", err)
		}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), string(resp.Body()))
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("unmarshaling response body: %w", err)
	}
	return nil
}

type wireRun struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

func (w wireRun) toRun() Run {
	r := Run{ID: w.ID, Status: RunStatus(w.Status)}
	if w.LastError != nil {
		switch {
		case w.LastError.Code != "" && w.LastError.Message != "":
			r.LastError = w.LastError.Code + ": " + w.LastError.Message
		case w.LastError.Code != "":
			r.LastError = w.LastError.Code
		default:
			r.LastError = w.LastError.Message
		}
	}
	return r
}

type wireMessage struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text *struct {
			Value       string `json:"value"`
			Annotations []struct {
				Type        string `json:"type"`
				URLCitation *struct {
					URL   string `json:"url"`
					Title string `json:"title"`
				} `json:"url_citation"`
			} `json:"annotations"`
		} `json:"text"`
	} `json:"content"`
}

func (w wireMessage) toThreadMessage() *ThreadMessage {
	msg := &ThreadMessage{ID: w.ID, Role: MessageRole(w.Role)}
	for _, part := range w.Content {
		if part.Type != "text" || part.Text == nil {
			continue
		}
		if v := strings.TrimSpace(part.Text.Value); v != "" {
			msg.TextParts = append(msg.TextParts, v)
		}
		for _, ann := range part.Text.Annotations {
			if ann.Type != "url_citation" || ann.URLCitation == nil {
				continue
			}
			msg.URLCitations = append(msg.URLCitations, URLCitation{
				URL:   ann.URLCitation.URL,
				Title: ann.URLCitation.Title,
			})
		}
	}
	return msg
}
