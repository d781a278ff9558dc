package notifysync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FeedAPI is the request/response side of the pipeline: fetch the initial
// page and push read acknowledgements back to the source of truth.
type FeedAPI interface {
	FetchInitial(ctx context.Context) (*Snapshot, error)
	Acknowledge(ctx context.Context, id string) error
	AcknowledgeAll(ctx context.Context) error
}

// DefaultRequestTimeout bounds every acknowledgement client request.
const DefaultRequestTimeout = 10 * time.Second

// Client talks to the notification read API over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: DefaultRequestTimeout},
	}
}

// FetchInitial loads one page of notifications plus the unread total.
func (c *Client) FetchInitial(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/notifications", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request: %v", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch notifications: unexpected status %d", resp.StatusCode)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %v", err)
	}
	return &snap, nil
}

// Acknowledge marks one notification read server-side.
func (c *Client) Acknowledge(ctx context.Context, id string) error {
	return c.put(ctx, "/notifications/"+id+"/read")
}

// AcknowledgeAll marks every notification of the session's user read.
func (c *Client) AcknowledgeAll(ctx context.Context) error {
	return c.put(ctx, "/notifications/read-all")
}

func (c *Client) put(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %v", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d for %s", resp.StatusCode, path)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}
