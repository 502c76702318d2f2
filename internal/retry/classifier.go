// Package retry classifies execution failures and computes backoff delays.
//
// The rule table is built once at startup and is immutable afterwards, so
// concurrent sessions can classify errors without synchronization.
package retry

import (
	"strings"
)

// Category buckets an error by how the executor should react to it.
type Category string

const (
	// Transient covers network-level noise. Always retryable.
	Transient Category = "transient"
	// Recoverable covers page, selector, and DOM-timing issues. Retryable
	// with backoff. This is the default for unclassified errors.
	Recoverable Category = "recoverable"
	// Fatal covers auth failures, unknown actions, and destroyed execution
	// contexts. Never retried.
	Fatal Category = "fatal"
)

// rule pairs a category with the lowercase substrings that select it.
type rule struct {
	category Category
	patterns []string
}

// Classifier maps errors to categories by matching their message against an
// ordered rule table. Fatal rules are checked first so that an error text
// matching both a fatal and a transient pattern fails closed.
type Classifier struct {
	rules           []rule
	defaultCategory Category
}

// NewClassifier builds the static rule table. defaultCategory is applied to
// errors no rule matches; Recoverable preserves the optimistic-retry policy,
// Fatal makes unpatterned errors fail fast.
func NewClassifier(defaultCategory Category) *Classifier {
	if defaultCategory == "" {
		defaultCategory = Recoverable
	}
	return &Classifier{
		defaultCategory: defaultCategory,
		rules: []rule{
			{
				category: Fatal,
				patterns: []string{
					"unauthorized",
					"forbidden",
					"authentication failed",
					"invalid credentials",
					"permission denied",
					"unknown action",
					"execution context was destroyed",
					"target closed",
					"browser has been closed",
				},
			},
			{
				category: Transient,
				patterns: []string{
					"timeout",
					"timed out",
					"deadline exceeded",
					"connection reset",
					"connection refused",
					"connection closed",
					"broken pipe",
					"unexpected eof",
					"temporarily unavailable",
					"net::err_connection",
					"net::err_timed_out",
					"net::err_network_changed",
					"net::err_name_not_resolved",
					"socket hang up",
				},
			},
			{
				category: Recoverable,
				patterns: []string{
					"selector",
					"element not found",
					"element not visible",
					"node does not have a layout object",
					"navigation failed",
					"net::err_aborted",
					"captcha",
					"waiting for",
					"could not find node",
				},
			},
		},
	}
}

// Classify maps an error to its category. A nil error has no category and
// returns the empty string.
func (c *Classifier) Classify(err error) Category {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	for _, r := range c.rules {
		for _, p := range r.patterns {
			if strings.Contains(msg, p) {
				return r.category
			}
		}
	}
	return c.defaultCategory
}

// ShouldRetry reports whether another attempt is allowed. Fatal errors are
// never retried regardless of attempt count; anything else retries while
// attempt < maxRetries.
func (c *Classifier) ShouldRetry(err error, attempt, maxRetries int) bool {
	if err == nil {
		return false
	}
	if c.Classify(err) == Fatal {
		return false
	}
	return attempt < maxRetries
}
