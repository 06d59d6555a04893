// Package service provides the proxy core's upstream action client: it
// forwards write actions to the upstream social-network backend behind a
// small interface the inbound adapter depends on. The domain components
// themselves are wired together in cmd/egressproxy/cmd (start.go).
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sentinelgate/egressproxy/internal/domain/credential"
	"github.com/sentinelgate/egressproxy/internal/domain/schema"
)

// ActionUpstream is the port the proxy core's /post and /vote handlers
// depend on. It is implemented by MoltbookClient against the real
// upstream; tests may substitute a stub.
type ActionUpstream interface {
	CreatePost(ctx context.Context, req schema.PostRequest) (status int, body []byte, err error)
	CreateComment(ctx context.Context, threadID string, req schema.PostRequest) (status int, body []byte, err error)
	Vote(ctx context.Context, postID string) (status int, body []byte, err error)
}

// MoltbookClient is a thin bearer-authenticated HTTP client for the
// upstream action API the write endpoints forward to.
type MoltbookClient struct {
	baseURL    string
	httpClient *http.Client
	cred       *credential.Source
}

// NewMoltbookClient creates a client bound to baseURL, with every call
// bounded by timeout and authenticated with cred's bearer header.
func NewMoltbookClient(baseURL string, timeout time.Duration, cred *credential.Source) *MoltbookClient {
	return &MoltbookClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cred:       cred,
	}
}

// CreatePost posts req to the top-level posts endpoint.
func (c *MoltbookClient) CreatePost(ctx context.Context, req schema.PostRequest) (int, []byte, error) {
	return c.do(ctx, "POST", c.baseURL+"/api/posts", postBody(req))
}

// CreateComment posts req to the comments endpoint for threadID, used when
// a post request carries a thread_id.
func (c *MoltbookClient) CreateComment(ctx context.Context, threadID string, req schema.PostRequest) (int, []byte, error) {
	return c.do(ctx, "POST", fmt.Sprintf("%s/api/threads/%s/comments", c.baseURL, threadID), postBody(req))
}

// Vote casts an upvote for postID.
func (c *MoltbookClient) Vote(ctx context.Context, postID string) (int, []byte, error) {
	return c.do(ctx, "POST", fmt.Sprintf("%s/api/posts/%s/upvote", c.baseURL, postID), nil)
}

func (c *MoltbookClient) do(ctx context.Context, method, url string, body io.Reader) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("moltbook: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.cred.BearerHeader())
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("moltbook: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("moltbook: read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// postBody marshals req, the same shape the upstream expects for both a
// top-level post and a threaded comment.
func postBody(req schema.PostRequest) io.Reader {
	data, _ := json.Marshal(req)
	return bytes.NewReader(data)
}
