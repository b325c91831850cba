// Package openai is the completion gateway: credential resolution and the
// upstream chat-completions call, with upstream failures mapped to local
// error categories.
package openai

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

const (
	// HeaderUserKey carries a caller-supplied (bring-your-own) API key.
	HeaderUserKey = "x-user-openai-key"

	defaultBaseURL        = "https://api.openai.com"
	completionsPath       = "/v1/chat/completions"
	defaultRequestTimeout = 90 * time.Second

	// Provider key prefix used for syntactic validation of caller keys.
	keyPrefix = "sk-"
)

// Error categories surfaced to the request boundary.
var (
	// ErrNoCredential means neither a caller key nor a server key is
	// available; this is an operator fault, not a caller fault.
	ErrNoCredential = errors.New("openai: no credential configured")
	// ErrUpstreamExhausted means the provider rejected the request because
	// the account's own quota is spent.
	ErrUpstreamExhausted = errors.New("openai: upstream quota exhausted")
)

// Credential is a resolved upstream API key.
type Credential struct {
	Key  string
	BYOK bool // true when the caller supplied the key
}

// ResolveCredential prefers a syntactically valid caller-supplied key (the
// dedicated header, then a bearer authorization header) and falls back to
// the server-held key.
func ResolveCredential(r *http.Request, serverKey string) (Credential, error) {
	if r != nil {
		if key := strings.TrimSpace(r.Header.Get(HeaderUserKey)); validKey(key) {
			return Credential{Key: key, BYOK: true}, nil
		}
		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			if token = strings.TrimSpace(token); validKey(token) {
				return Credential{Key: token, BYOK: true}, nil
			}
		}
	}
	if serverKey = strings.TrimSpace(serverKey); serverKey != "" {
		return Credential{Key: serverKey}, nil
	}
	return Credential{}, ErrNoCredential
}

func validKey(key string) bool {
	return key != "" && strings.HasPrefix(key, keyPrefix)
}

// GenerateRequest holds the inputs for one completion call.
type GenerateRequest struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	Credential  Credential
}

// Client calls the chat-completions endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client. An empty baseURL targets the public API.
func NewClient(baseURL string) *Client {
	if baseURL = strings.TrimSpace(strings.TrimSuffix(baseURL, "/")); baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	Temperature         float64       `json:"temperature"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate runs one completion and returns the trimmed text of the first
// choice, or an empty string if the upstream returned nothing.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if c == nil {
		return "", errors.New("openai: nil client")
	}
	if strings.TrimSpace(req.Credential.Key) == "" {
		return "", ErrNoCredential
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload := chatRequest{
		Model:               req.Model,
		Temperature:         req.Temperature,
		MaxCompletionTokens: req.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
	}
	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return "", fmt.Errorf("openai: marshal request: %w", errMarshal)
	}

	httpReq, errBuild := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(body))
	if errBuild != nil {
		return "", fmt.Errorf("openai: build request: %w", errBuild)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.Credential.Key)

	resp, errDo := c.httpClient.Do(httpReq)
	if errDo != nil {
		return "", fmt.Errorf("openai: request failed: %w", errDo)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	raw, errRead := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if errRead != nil {
		return "", fmt.Errorf("openai: read response: %w", errRead)
	}

	if resp.StatusCode != http.StatusOK {
		var upstreamErr errorResponse
		_ = json.Unmarshal(raw, &upstreamErr)
		if resp.StatusCode == http.StatusTooManyRequests && isInsufficientQuota(upstreamErr, raw) {
			return "", ErrUpstreamExhausted
		}
		msg := strings.TrimSpace(upstreamErr.Error.Message)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("openai: upstream status %d: %s", resp.StatusCode, msg)
	}

	var out chatResponse
	if errUnmarshal := json.Unmarshal(raw, &out); errUnmarshal != nil {
		return "", fmt.Errorf("openai: decode response: %w", errUnmarshal)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func isInsufficientQuota(parsed errorResponse, raw []byte) bool {
	if parsed.Error.Code == "insufficient_quota" {
		return true
	}
	return bytes.Contains(bytes.ToLower(raw), []byte("insufficient_quota"))
}
