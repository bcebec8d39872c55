package application

import (
	"regexp"
	"strings"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"
)

const (
	maxWindowChars  = 8192
	keepWindowChars = 4096
)

// Phase is a bit set so a scan can enable several phases at once.
type Phase uint8

const (
	PhaseLogin Phase = 1 << iota
	PhaseGameplay
)

// Policy says how a match mutates the window.
type Policy int

const (
	// Consume drops the window through the end of the match and ends the
	// pass. Used for prompts that expect exactly one reaction.
	Consume Policy = iota
	// Strip removes only the matched text; scanning continues.
	Strip
)

type Match struct {
	Start int
	End   int
	Event domain.Event
}

// Detector is a pure matcher over the window. It keeps no state between
// calls; the cascade applies its Policy.
type Detector struct {
	Name   string
	Phase  Phase
	Policy Policy
	Match  func(window string) (Match, bool)
}

// Cascade holds the rolling window of unprocessed server text.
type Cascade struct {
	detectors []Detector
	window    string
}

func NewCascade(detectors []Detector) *Cascade {
	return &Cascade{detectors: detectors}
}

func (c *Cascade) Feed(text string) {
	c.window += text
	if len(c.window) > maxWindowChars {
		c.window = lastBytes(c.window, keepWindowChars)
	}
}

// Scan runs one ordered pass of the detectors enabled by phases.
func (c *Cascade) Scan(phases Phase) []domain.Event {
	var events []domain.Event
	for _, detector := range c.detectors {
		if detector.Phase&phases == 0 {
			continue
		}
		for {
			match, ok := detector.Match(c.window)
			if !ok || match.End <= match.Start || match.End > len(c.window) {
				break
			}
			events = append(events, match.Event)
			if detector.Policy == Consume {
				c.window = c.window[match.End:]
				return events
			}
			c.window = c.window[:match.Start] + c.window[match.End:]
		}
	}
	return events
}

func (c *Cascade) Window() string {
	return c.window
}

func (c *Cascade) Reset() {
	c.window = ""
}

// regexDetector builds a detector from one or more patterns. build may
// reject a match, in which case scanning continues past it.
func regexDetector(name string, phase Phase, policy Policy, build func(groups []string) (domain.Event, bool), patterns ...*regexp.Regexp) Detector {
	return Detector{
		Name:   name,
		Phase:  phase,
		Policy: policy,
		Match: func(window string) (Match, bool) {
			best := Match{Start: -1}
			for _, pattern := range patterns {
				for _, loc := range pattern.FindAllStringSubmatchIndex(window, -1) {
					if best.Start >= 0 && loc[0] >= best.Start {
						break
					}
					groups := submatches(window, loc)
					event, ok := build(groups)
					if !ok {
						continue
					}
					if event.Text == "" {
						event.Text = strings.TrimSpace(groups[0])
					}
					best = Match{Start: loc[0], End: loc[1], Event: event}
					break
				}
			}
			return best, best.Start >= 0
		},
	}
}

func submatches(text string, loc []int) []string {
	groups := make([]string, len(loc)/2)
	for i := range groups {
		start, end := loc[2*i], loc[2*i+1]
		if start >= 0 && end >= 0 {
			groups[i] = text[start:end]
		}
	}
	return groups
}

// firstGroup returns the first non-empty capture group.
func firstGroup(groups []string) string {
	for _, group := range groups[1:] {
		if trimmed := strings.TrimSpace(group); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
