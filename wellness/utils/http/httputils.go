package httputils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// StatusError carries the upstream status and a short body excerpt.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status: %d %s", e.Code, e.Body)
}

func post(ctx context.Context, url, apiKey string, body any) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	r, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if r.StatusCode != http.StatusOK {
		defer r.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(r.Body, 512))
		return nil, &StatusError{Code: r.StatusCode, Body: string(b)}
	}
	return r, nil
}

func PostJSON(ctx context.Context, url string, body any, resp any) error {
	return PostJSONWithAuth(ctx, url, "", body, resp)
}

func PostJSONWithAuth(ctx context.Context, url, apiKey string, body any, resp any) error {
	r, err := post(ctx, url, apiKey, body)
	if err != nil {
		return err
	}
	defer r.Body.Close()
	if resp != nil {
		return json.NewDecoder(r.Body).Decode(resp)
	}
	return nil
}

// PostStream returns the open response body. The caller closes it.
func PostStream(ctx context.Context, url string, body any) (io.ReadCloser, error) {
	return PostStreamWithAuth(ctx, url, "", body)
}

func PostStreamWithAuth(ctx context.Context, url, apiKey string, body any) (io.ReadCloser, error) {
	r, err := post(ctx, url, apiKey, body)
	if err != nil {
		return nil, err
	}
	return r.Body, nil
}
