package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Dispatcher performs the upstream HTTP call. On 2xx it hands back the open
// response body without buffering it; streaming depends on that.
type Dispatcher struct {
	client *http.Client
}

func NewDispatcher() *Dispatcher {
	// No client-level timeout: streams legitimately outlive any fixed
	// read deadline. The caller's ctx bounds the whole request.
	return &Dispatcher{client: &http.Client{}}
}

func (d *Dispatcher) Dispatch(ctx context.Context, ur *UpstreamRequest) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ur.URL, bytes.NewReader(ur.Body))
	if err != nil {
		return nil, err
	}
	for k, v := range ur.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    parseErrorBody(body, resp.StatusCode),
		}
	}

	return resp.Body, nil
}

// parseErrorBody digs the provider's own error text out of a failure body:
// {"message": ...} and {"error": {"message": ...}} are both in the wild.
// Raw text is the fallback.
func parseErrorBody(body []byte, status int) string {
	var structured struct {
		Message string `json:"message"`
		Error   *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &structured); err == nil {
		if structured.Message != "" {
			return structured.Message
		}
		if structured.Error != nil && structured.Error.Message != "" {
			return structured.Error.Message
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return fmt.Sprintf("status %d", status)
}
