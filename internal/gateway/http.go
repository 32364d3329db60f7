package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
)

// DoJSON sends a JSON request and decodes the JSON response body into a map.
// Non-2xx responses become an error whose text carries the HTTP status code,
// which the engine's retry classifier inspects for transient markers
// (502/503/504).
func DoJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, body any) (map[string]any, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := sonic.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(raw))
	}

	decoded := make(map[string]any)
	if len(raw) > 0 {
		if err := sonic.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("decode response body: %w", err)
		}
	}
	return decoded, nil
}

// VerifySignature checks an HMAC-SHA256 hex signature over the raw webhook
// payload using a constant-time comparison. An empty configured secret
// accepts any payload, matching the connectors' demo behavior; production
// deployments must configure secrets.
func VerifySignature(secret string, payload []byte, signature string) bool {
	if secret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
