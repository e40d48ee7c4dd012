package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrUnavailable means no translation could be produced for the text.
var ErrUnavailable = errors.New("translation unavailable")

type Translator interface {
	Translate(ctx context.Context, text, sourceLang string) (string, error)
}

// Chain tries each translator in order and returns the first result.
type Chain []Translator

func (c Chain) Translate(ctx context.Context, text, sourceLang string) (string, error) {
	var errs []error
	for _, t := range c {
		out, err := t.Translate(ctx, text, sourceLang)
		if err == nil && out != "" {
			return out, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return "", ErrUnavailable
	}
	return "", fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
}

// Localize translates text, returning it unchanged when translation fails.
func Localize(ctx context.Context, t Translator, text, sourceLang string) string {
	if t == nil || strings.TrimSpace(text) == "" {
		return text
	}

	out, err := t.Translate(ctx, text, sourceLang)
	if err != nil || strings.TrimSpace(out) == "" {
		slog.Debug("Translation unavailable, keeping original", "lang", sourceLang, "error", err)
		return text
	}
	return out
}

// clip limits text to max runes before it is sent to a remote service.
func clip(text string, max int) string {
	if runes := []rune(text); len(runes) > max {
		return string(runes[:max])
	}
	return text
}
