// Package llm talks to the hosted text-generation services.
package llm

import (
	"context"
	"strings"

	"github.com/AnshRaj112/journeygen-backend/internal/apperr"
)

// Request is one system/user instruction pair. A nil Temperature leaves the
// provider default in place.
type Request struct {
	System      string
	User        string
	Model       string
	MaxTokens   int
	Temperature *float32
}

// Generator returns the raw reply text for a request. Implementations make a
// single attempt and never retry.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Float32 is a convenience for building Request.Temperature.
func Float32(v float32) *float32 { return &v }

func unavailable(msg string, err error) error {
	return apperr.New(apperr.GenerationUnavailable, msg, err)
}

func checkEmpty(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", apperr.Newf(apperr.EmptyGeneration, "model returned no text")
	}
	return text, nil
}
