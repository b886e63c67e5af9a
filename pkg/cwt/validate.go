package cwt

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrExpired     = errors.New("token expired")
	ErrNotYetValid = errors.New("token not yet valid")
)

// ExpiredError carries the expiry timestamp that was exceeded.
type ExpiredError struct {
	ExpiresAt int64
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("token expired at %s", time.Unix(e.ExpiresAt, 0).UTC().Format(time.RFC3339))
}

func (e *ExpiredError) Unwrap() error { return ErrExpired }

// NotYetValidError carries the not-before timestamp that has not been reached.
type NotYetValidError struct {
	NotBefore int64
}

func (e *NotYetValidError) Error() string {
	return fmt.Sprintf("token not valid before %s", time.Unix(e.NotBefore, 0).UTC().Format(time.RFC3339))
}

func (e *NotYetValidError) Unwrap() error { return ErrNotYetValid }

// Validate checks the token window at now. A token is expired when
// now > exp+skew and not yet valid when now < nbf-skew; both boundaries are
// inclusive of the valid side. Absent timestamps are not checked.
func (m Meta) Validate(now time.Time, skew time.Duration) error {
	t := now.Unix()
	tol := int64(skew / time.Second)

	if m.ExpiresAt != nil && t > saturatingAdd(*m.ExpiresAt, tol) {
		return &ExpiredError{ExpiresAt: *m.ExpiresAt}
	}
	if m.NotBefore != nil && t < saturatingAdd(*m.NotBefore, -tol) {
		return &NotYetValidError{NotBefore: *m.NotBefore}
	}
	return nil
}

// ExpiresWithin reports whether the token has an expiry that falls in
// (now, now+window].
func (m Meta) ExpiresWithin(now time.Time, window time.Duration) bool {
	if m.ExpiresAt == nil || window <= 0 {
		return false
	}
	t := now.Unix()
	return *m.ExpiresAt >= t && *m.ExpiresAt <= saturatingAdd(t, int64(window/time.Second))
}

func saturatingAdd(a, b int64) int64 {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return math.MaxInt64
	case b < 0 && a < math.MinInt64-b:
		return math.MinInt64
	}
	return a + b
}
