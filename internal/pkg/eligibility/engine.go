// Package eligibility decides whether an identity may submit a new request
// for a document type, based on its time-windowed request history. The engine
// is pure: it reads history through an injected finder and never writes.
package eligibility

import (
	"errors"
	"fmt"
	"time"

	"github.com/citydesk/citydesk/app/models"
	"gorm.io/gorm"
)

// HistoryFinder looks up the most recent request counting against the window
// for an identity and document type. Implementations return
// gorm.ErrRecordNotFound when no such request exists.
type HistoryFinder interface {
	FindLatestCounting(identity models.RequestIdentity, documentType string, since time.Time) (*models.DocumentRequest, error)
}

// Result is the outcome of an eligibility check. When Allowed is false,
// NextAllowedAt and BlockingRequestID identify when and why.
type Result struct {
	Allowed           bool       `json:"allowed"`
	NextAllowedAt     *time.Time `json:"next_allowed_at,omitempty"`
	BlockingRequestID uint       `json:"blocking_request_id,omitempty"`
}

// Engine evaluates re-request windows over request history.
type Engine struct {
	history HistoryFinder
	cfg     Config
}

// NewEngine creates an eligibility engine with an explicit window config.
func NewEngine(history HistoryFinder, cfg Config) *Engine {
	return &Engine{history: history, cfg: cfg}
}

// Check reports whether the identity may submit a new request for the
// document type at the given instant. A prior request blocks when it has a
// counting status, matches the identity and was created inside the window.
func (e *Engine) Check(identity models.RequestIdentity, documentType string, now time.Time) (Result, error) {
	if err := identity.Validate(); err != nil {
		return Result{}, err
	}
	if documentType == "" {
		return Result{}, fmt.Errorf("%w: document type is required", models.ErrInvalidIdentity)
	}

	window := e.cfg.WindowFor(documentType)
	since := now.Add(-window)

	blocking, err := e.history.FindLatestCounting(identity, documentType, since)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{Allowed: true}, nil
		}
		return Result{}, err
	}

	next := blocking.CreatedAt.Add(window)
	return Result{
		Allowed:           false,
		NextAllowedAt:     &next,
		BlockingRequestID: blocking.ID,
	}, nil
}
