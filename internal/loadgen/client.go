package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/okian/trials/internal/domain/model"
	"github.com/okian/trials/internal/domain/types"
)

// Identity headers understood by the API.
const (
	headerUserID   = "X-User-ID"
	headerUserName = "X-User-Name"
)

// syntheticVideo is uploaded for every attempt.
var syntheticVideo = []byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom")

// client wraps http.Client with the API's request shapes.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{http: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

func (c *client) do(ctx context.Context, method, path string, body io.Reader, headers map[string]string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

func (c *client) doJSON(ctx context.Context, method, path string, in any, headers map[string]string, out any) (int, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request body: %w", err)
	}
	h := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	return c.do(ctx, method, path, bytes.NewReader(data), h, out)
}

func (c *client) health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", http.NoBody, nil, nil)
	return err
}

func (c *client) putAthlete(ctx context.Context, p *Plan) error {
	_, err := c.doJSON(ctx, http.MethodPut, "/athletes/"+p.AthleteID, map[string]string{
		"clerkId": p.UserID,
		"name":    p.Name,
	}, nil, nil)
	return err
}

func (c *client) submit(ctx context.Context, p *Plan) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("testType", string(p.TestType)); err != nil {
		return "", err
	}
	fw, err := mw.CreateFormFile("video", "attempt.mp4")
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(syntheticVideo); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var out struct {
		ID string `json:"id"`
	}
	_, err = c.do(ctx, http.MethodPost, "/attempts", &buf, map[string]string{
		"Content-Type": mw.FormDataContentType(),
		headerUserID:   p.UserID,
		headerUserName: p.Name,
	}, &out)
	return out.ID, err
}

func (c *client) postResult(ctx context.Context, p *Plan) (int, error) {
	return c.doJSON(ctx, http.MethodPost, "/attempts/"+p.AttemptID+"/result", map[string]any{
		"status":       "success",
		"username":     p.Name,
		"analysisData": map[string]any{"synthetic": true, "testType": p.TestType},
	}, nil, nil)
}

func (c *client) status(ctx context.Context, id string) (model.Status, error) {
	var out struct {
		Attempt model.TestAttempt `json:"attempt"`
	}
	_, err := c.do(ctx, http.MethodGet, "/attempts/"+id, http.NoBody, nil, &out)
	return out.Attempt.Status, err
}

func (c *client) assess(ctx context.Context, p *Plan, reviewer string) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/attempts/"+p.AttemptID+"/assessment", map[string]any{
		"score":   p.Score,
		"remarks": "synthetic assessment",
	}, map[string]string{headerUserID: reviewer}, nil)
	return err
}

func (c *client) leaderboard(ctx context.Context, n int) ([]types.Entry, error) {
	var out []types.Entry
	_, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/leaderboard?limit=%d", n), http.NoBody, nil, &out)
	return out, err
}
