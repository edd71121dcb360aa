package submit

import (
	"context"
	"errors"
)

var (
	ErrMissingLink   = errors.New("missing download link")
	ErrInvalidLink   = errors.New("invalid download link")
	ErrRateLimited   = errors.New("rate limited")
	ErrNotConfigured = errors.New("webhook not configured")
	ErrDelivery      = errors.New("webhook delivery failed")
)

const (
	SuccessMessage = "Submission sent successfully! Your drum kit will be reviewed and may be added to the collection."

	msgMissing     = "Download link is required"
	msgInvalid     = "Invalid download link. Please check that it's a valid file hosting URL."
	msgRateLimited = "Too many submissions. Please wait a minute and try again."
	msgFailed      = "Failed to submit. Please try again later."
)

type notifier interface {
	Notify(ctx context.Context, link string) error
	Configured() bool
}

// Service accepts link submissions: validate, rate limit, then notify.
type Service struct {
	limiter  *Limiter
	notifier notifier
}

func NewService(limiter *Limiter, n *Notifier) *Service {
	return &Service{limiter: limiter, notifier: n}
}

// Configured reports whether submissions can be delivered at all.
func (s *Service) Configured() bool {
	return s.notifier != nil && s.notifier.Configured()
}

// Submit returns the accepted link. Validation errors are returned before the
// caller is charged against the rate limit.
func (s *Service) Submit(ctx context.Context, addr, link string) (string, error) {
	clean, err := Validate(link)
	if err != nil {
		return "", err
	}
	if !s.Configured() {
		return "", ErrNotConfigured
	}
	if s.limiter != nil && !s.limiter.Allow(addr) {
		return "", ErrRateLimited
	}
	if err := s.notifier.Notify(ctx, clean); err != nil {
		return "", err
	}
	return clean, nil
}

// UserMessage maps an error from Submit to a message safe to show callers.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingLink):
		return msgMissing
	case errors.Is(err, ErrInvalidLink):
		return msgInvalid
	case errors.Is(err, ErrRateLimited):
		return msgRateLimited
	default:
		return msgFailed
	}
}
