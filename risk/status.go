// Package risk holds the derived types the breach monitor produces: the
// computed status of a security, its freshness, the transitions between
// statuses and the manual alert overlay layered on top of them.
package risk

import (
	"fmt"
	"strings"
	"time"
)

type Status int

const (
	Safe Status = iota
	Warning
	Breach
)

func (s Status) String() string {
	switch s {
	case Warning:
		return "Warning"
	case Breach:
		return "Breach"
	default:
		return "Safe"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "safe":
		return Safe, nil
	case "warning":
		return Warning, nil
	case "breach":
		return Breach, nil
	}
	return Safe, fmt.Errorf("unknown status %q", s)
}

// Freshness grades how current the figures behind an assessment are.
type Freshness string

const (
	Fresh     Freshness = "fresh"
	Aging     Freshness = "aging"
	Stale     Freshness = "stale"
	FeedError Freshness = "feed-error"
)

const (
	AgingAfter     = time.Minute
	StaleAfter     = 15 * time.Minute
	FeedErrorAfter = time.Hour
)

// ClassifyFreshness grades data of the given age. A disconnected feed is
// never better than Stale.
func ClassifyFreshness(age time.Duration, connected bool) Freshness {
	var f Freshness
	switch {
	case age < AgingAfter:
		f = Fresh
	case age < StaleAfter:
		f = Aging
	case age <= FeedErrorAfter:
		f = Stale
	default:
		f = FeedError
	}
	if !connected && (f == Fresh || f == Aging) {
		return Stale
	}
	return f
}
