package translate

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultGoogleEndpoint   = "https://translate.googleapis.com/translate_a/single"
	DefaultMyMemoryEndpoint = "https://api.mymemory.translated.net/get"

	maxResponseBytes = 256 * 1024
	maxTextLength    = 500
	clientTimeout    = 20 * time.Second
)

// Google uses the public gtx endpoint, which needs no key.
type Google struct {
	Endpoint   string
	TargetLang string
	Client     *http.Client
}

func NewGoogle(targetLang string) *Google {
	return &Google{
		Endpoint:   DefaultGoogleEndpoint,
		TargetLang: targetLang,
		Client:     &http.Client{Timeout: clientTimeout},
	}
}

func (g *Google) Translate(ctx context.Context, text, sourceLang string) (string, error) {
	query := url.Values{}
	query.Set("client", "gtx")
	query.Set("sl", cmp.Or(sourceLang, "auto"))
	query.Set("tl", g.TargetLang)
	query.Set("dt", "t")
	query.Set("q", clip(text, maxTextLength))

	body, err := get(ctx, g.Client, g.Endpoint+"?"+query.Encode())
	if err != nil {
		return "", fmt.Errorf("google: %w", err)
	}

	// Response shape: [[["translated","original",...],...],...]
	var raw []any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("google: failed to decode response: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("google: %w", ErrUnavailable)
	}

	outer, ok := raw[0].([]any)
	if !ok {
		return "", fmt.Errorf("google: %w", ErrUnavailable)
	}

	var result strings.Builder
	for _, seg := range outer {
		pair, ok := seg.([]any)
		if !ok || len(pair) < 1 {
			continue
		}
		if s, ok := pair[0].(string); ok {
			result.WriteString(s)
		}
	}

	out := strings.TrimSpace(result.String())
	if out == "" {
		return "", fmt.Errorf("google: %w", ErrUnavailable)
	}
	return out, nil
}

// MyMemory uses the free MyMemory API.
type MyMemory struct {
	Endpoint   string
	TargetLang string
	Client     *http.Client
}

func NewMyMemory(targetLang string) *MyMemory {
	return &MyMemory{
		Endpoint:   DefaultMyMemoryEndpoint,
		TargetLang: targetLang,
		Client:     &http.Client{Timeout: clientTimeout},
	}
}

func (m *MyMemory) Translate(ctx context.Context, text, sourceLang string) (string, error) {
	query := url.Values{}
	query.Set("langpair", cmp.Or(sourceLang, "en")+"|"+m.TargetLang)
	query.Set("q", clip(text, maxTextLength))

	body, err := get(ctx, m.Client, m.Endpoint+"?"+query.Encode())
	if err != nil {
		return "", fmt.Errorf("mymemory: %w", err)
	}

	var out struct {
		ResponseData struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
		ResponseStatus any `json:"responseStatus"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("mymemory: failed to decode response: %w", err)
	}

	// Quota and language errors arrive as HTTP 200 with the message in translatedText.
	if status, ok := responseStatus(out.ResponseStatus); !ok || status != http.StatusOK {
		return "", fmt.Errorf("mymemory: status %v: %w", out.ResponseStatus, ErrUnavailable)
	}

	translated := strings.TrimSpace(out.ResponseData.TranslatedText)
	if translated == "" {
		return "", fmt.Errorf("mymemory: %w", ErrUnavailable)
	}
	return translated, nil
}

// responseStatus reads a status that may be encoded as a number or a string.
func responseStatus(v any) (int, bool) {
	switch s := v.(type) {
	case float64:
		return int(s), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(s))
		return n, err == nil
	default:
		return 0, false
	}
}

func get(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
