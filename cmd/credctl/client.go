package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// credentialPath は /v1/credentials 配下のパスを組み立てる。サブジェクトはエスケープする。
func credentialPath(subject string, suffix ...string) string {
	p := "/v1/credentials"
	if subject != "" {
		p += "/" + url.PathEscape(subject)
	}
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

// call はAPIを呼び出し、wantStatus 以外のステータスはエラーにする。
func call(ctx context.Context, method, path string, payload any, wantStatus int) ([]byte, error) {
	if apiURL == "" {
		return nil, errors.New("--api-url is required (or set CREDCTL_API_URL)")
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(apiURL, "/")+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != wantStatus {
		return nil, handleErrorResponse(resp.StatusCode, respBody)
	}
	return respBody, nil
}

func handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&errResp); err == nil && errResp.Message != "" {
		msg := errResp.Message
		for field, reason := range errResp.Fields {
			msg += fmt.Sprintf("; %s: %s", field, reason)
		}
		return fmt.Errorf("server error (%s): %s", errResp.Code, msg)
	}
	return fmt.Errorf("server returned status %d", statusCode)
}
