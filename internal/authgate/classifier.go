// Package authgate decides whether a request path needs a session cookie and
// turns requests without one away before they reach a handler.
package authgate

import "strings"

type PathClass int

const (
	ClassOpen PathClass = iota
	ClassSecured
)

func (c PathClass) String() string {
	switch c {
	case ClassSecured:
		return "secured"
	default:
		return "open"
	}
}

// Classifier matches paths against an ordered prefix list. The first matching
// prefix wins; a path matching none is open.
type Classifier struct {
	prefixes []string
}

func NewClassifier(prefixes []string) *Classifier {
	cleaned := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return &Classifier{prefixes: cleaned}
}

func (c *Classifier) Classify(path string) PathClass {
	if _, ok := c.Match(path); ok {
		return ClassSecured
	}
	return ClassOpen
}

// Match returns the prefix that secured path, if any.
func (c *Classifier) Match(path string) (string, bool) {
	for _, prefix := range c.prefixes {
		if strings.HasPrefix(path, prefix) {
			return prefix, true
		}
	}
	return "", false
}

func (c *Classifier) Prefixes() []string {
	out := make([]string, len(c.prefixes))
	copy(out, c.prefixes)
	return out
}
