// Package actions maps scenario step verbs onto page interactions. Aliases
// are folded into canonical kinds at parse time so the dispatch table stays
// closed and an unknown verb fails loudly instead of half-matching.
package actions

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a canonical action verb.
type Kind string

const (
	KindOpen    Kind = "open"
	KindPlay    Kind = "play"
	KindScroll  Kind = "scroll"
	KindClick   Kind = "click"
	KindLike    Kind = "like"
	KindComment Kind = "comment"
	KindWait    Kind = "wait"
)

// ErrUnknownAction marks a verb outside the action surface. The classifier
// treats it as fatal: a scenario referencing an unsupported verb can never
// succeed by retrying.
var ErrUnknownAction = errors.New("unknown action")

// aliases folds synonyms onto canonical kinds.
var aliases = map[string]Kind{
	"open":     KindOpen,
	"navigate": KindOpen,
	"goto":     KindOpen,
	"play":     KindPlay,
	"scroll":   KindScroll,
	"click":    KindClick,
	"tap":      KindClick,
	"like":     KindLike,
	"comment":  KindComment,
	"type":     KindComment,
	"input":    KindComment,
	"wait":     KindWait,
	"pause":    KindWait,
	"sleep":    KindWait,
}

// ParseKind resolves a raw scenario verb to its canonical Kind. Matching is
// case-insensitive and tolerant of surrounding whitespace.
func ParseKind(raw string) (Kind, error) {
	k, ok := aliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, raw)
	}
	return k, nil
}
