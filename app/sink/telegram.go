package sink

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultAPIBase = "https://api.telegram.org"

	maxErrorBody = 512
)

// Telegram posts each chunk as one sendMessage call.
type Telegram struct {
	APIBase   string
	Token     string
	ChatID    string
	ThreadID  int64 // forum topic, 0 for none
	ParseMode string
	Client    *http.Client
}

func NewTelegram(token, chatID string, threadID int64, parseMode string) *Telegram {
	return &Telegram{
		APIBase:   DefaultAPIBase,
		Token:     token,
		ChatID:    chatID,
		ThreadID:  threadID,
		ParseMode: parseMode,
		Client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type linkPreviewOptions struct {
	IsDisabled bool `json:"is_disabled"`
}

type sendMessageRequest struct {
	ChatID             string             `json:"chat_id"`
	MessageThreadID    int64              `json:"message_thread_id,omitempty"`
	Text               string             `json:"text"`
	ParseMode          string             `json:"parse_mode,omitempty"`
	LinkPreviewOptions linkPreviewOptions `json:"link_preview_options"`
}

// NewRequest builds the sendMessage payload for one chunk.
func (t *Telegram) NewRequest(chunk string) ([]byte, error) {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:             t.ChatID,
		MessageThreadID:    t.ThreadID,
		Text:               chunk,
		ParseMode:          t.ParseMode,
		LinkPreviewOptions: linkPreviewOptions{IsDisabled: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return payload, nil
}

func (t *Telegram) Deliver(ctx context.Context, chunks []string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(cmp.Or(t.APIBase, DefaultAPIBase), "/"), t.Token)

	for i, chunk := range chunks {
		if err := t.send(ctx, endpoint, chunk); err != nil {
			var de *DeliveryError
			if !errors.As(err, &de) {
				de = &DeliveryError{Err: err}
			}
			de.Index = i
			return de
		}
		slog.Debug("Chunk delivered", "index", i, "length", len(chunk))
	}

	return nil
}

func (t *Telegram) send(ctx context.Context, endpoint, chunk string) error {
	payload, err := t.NewRequest(chunk)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		// The request URL carries the bot token.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &DeliveryError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
