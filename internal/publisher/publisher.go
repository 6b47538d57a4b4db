// internal/publisher/publisher.go
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"devdigest/internal/retry"
)

// Request is a finished post ready for the chain relay.
type Request struct {
	Title   string
	Content string
	Tags    []string
}

// Result is the outcome of a publish attempt. Publish never returns a Go
// error; failures come back here so the caller can show a specific reason
// without losing the drafted post.
type Result struct {
	Success bool   `json:"success"`
	PostID  string `json:"post_id,omitempty"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Publisher writes finished posts to the external network.
type Publisher interface {
	Publish(ctx context.Context, req Request) Result
}

// Client publishes posts to the blockchain-backed social platform through
// its HTTP relay endpoint.
type Client struct {
	httpClient *http.Client
	relayURL   string
	token      string
	author     string
	logger     *slog.Logger
	policy     retry.Policy

	// now feeds the permlink suffix; swappable for tests.
	now func() time.Time
}

var _ Publisher = (*Client)(nil)

// NewClient creates a relay client. relayURL is the full endpoint accepting
// POSTed post documents; token is sent as a bearer credential; author is the
// on-chain account name.
func NewClient(relayURL, token, author string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		relayURL:   relayURL,
		token:      token,
		author:     author,
		logger:     logger,
		policy:     retry.Default,
		now:        time.Now,
	}
}

// relayDocument is the wire shape the relay accepts.
type relayDocument struct {
	Author   string   `json:"author"`
	Permlink string   `json:"permlink"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Tags     []string `json:"tags"`
}

// relayResponse is the wire shape the relay returns on success.
type relayResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// maxPermlinkAttempts bounds the collision-retry loop: the timestamp suffix
// makes collisions rare but the relay may still report one.
const maxPermlinkAttempts = 3

// Publish posts the document to the relay. Transient failures (5xx, network)
// are retried with backoff; a permlink collision (409) gets a fresh suffix.
func (c *Client) Publish(ctx context.Context, req Request) Result {
	base := c.now()
	for attempt := 0; attempt < maxPermlinkAttempts; attempt++ {
		// Each collision retry steps the suffix forward one second.
		permlink := Slug(req.Title, base.Add(time.Duration(attempt)*time.Second))

		resp, err := c.post(ctx, relayDocument{
			Author:   c.author,
			Permlink: permlink,
			Title:    req.Title,
			Body:     req.Content,
			Tags:     req.Tags,
		})
		if err == nil {
			c.logger.Info("Published post", "permlink", permlink, "post_id", resp.ID)
			return Result{Success: true, PostID: resp.ID, URL: resp.URL}
		}
		if isCollision(err) {
			c.logger.Warn("Permlink collision, regenerating", "permlink", permlink)
			continue
		}
		return Result{Error: err.Error()}
	}
	return Result{Error: "permlink collisions exhausted retries"}
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("relay returned %d: %s", e.code, e.body)
}

func isCollision(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.code == http.StatusConflict
}

func (c *Client) post(ctx context.Context, doc relayDocument) (relayResponse, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return relayResponse{}, fmt.Errorf("encoding post: %w", err)
	}

	var out relayResponse
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("building relay request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("calling relay: %w", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if err := json.Unmarshal(body, &out); err != nil {
				return fmt.Errorf("decoding relay response: %w", err)
			}
			return nil
		}
		return &statusError{code: resp.StatusCode, body: string(bytes.TrimSpace(body))}
	}

	policy := c.policy
	policy.Retryable = func(err error) bool {
		se, ok := err.(*statusError)
		if !ok {
			// Network-level failure; worth another try.
			return true
		}
		return se.code >= 500
	}

	if err := policy.Do(ctx, attempt); err != nil {
		return relayResponse{}, err
	}
	return out, nil
}
