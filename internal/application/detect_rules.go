package application

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"
)

// Patterns are tunable; line-based ones require the terminating newline so a
// chunk boundary never yields a truncated value.
var (
	usernamePrompts = []*regexp.Regexp{
		regexp.MustCompile(`(?i)By what name do you wish to be known\??`),
		regexp.MustCompile(`(?i)Enter your character name:`),
		regexp.MustCompile(`(?i)Enter your name:`),
		regexp.MustCompile(`(?i)Your name\?`),
		regexp.MustCompile(`(?i)Please enter the name 'new' if you are new to The Two Towers\.`),
	}
	passwordPrompts = []*regexp.Regexp{
		regexp.MustCompile(`(?i)What is your password\??`),
		regexp.MustCompile(`(?i)Enter your password:`),
		regexp.MustCompile(`(?i)Password:`),
	}

	vitalsPrompt     = regexp.MustCompile(`(?m)^[ \t]*HP:\s*(\d+)\s+EP:\s*(\d+)\s*>`)
	paginationPrompt = []*regexp.Regexp{
		regexp.MustCompile(`--\s?More\s?--(?:\(\d+%\))?`),
		regexp.MustCompile(`(?i)\[\s*Press (?:return|enter)[^\]\n]*\]`),
		regexp.MustCompile(`(?i)Press <?(?:return|enter)>? to continue\.?`),
	}
	remoteClose = regexp.MustCompile(`(?i)connection closed[^\n]*`)
)

type lineRule struct {
	reason  string
	pattern *regexp.Regexp
}

var hazardRules = []lineRule{
	{"movement blocked", regexp.MustCompile(`(?im)^[ \t]*(?:You can(?:'|no)t go that way|Alas, you cannot go that way|There is no exit (?:in that direction|that way))[^\n]*\n`)},
	{"target missing", regexp.MustCompile(`(?im)^[ \t]*(?:You don't see (?:that|any)|There is no [^\n]+ here|I see no |You can(?:'|no)t find |No such (?:item|object|person))[^\n]*\n`)},
	{"insufficient funds", regexp.MustCompile(`(?im)^[ \t]*(?:You (?:don't|do not) have enough (?:gold|money|coins)|You can(?:'|no)t afford)[^\n]*\n`)},
	{"locked door", regexp.MustCompile(`(?im)^[ \t]*(?:The [\w ]+ is locked|It is locked|It's locked)[^\n]*\n`)},
	{"unknown command", regexp.MustCompile(`(?im)^[ \t]*(?:What\?|Huh\?|I don't understand[^\n]*|Unknown command[^\n]*)[ \t]*\r?\n`)},
	{"exhausted", regexp.MustCompile(`(?im)^[ \t]*You are too (?:tired|exhausted|weak)[^\n]*\n`)},
	{"needs food or drink", regexp.MustCompile(`(?im)^[ \t]*You are (?:hungry|thirsty|starving|parched)[^\n]*\n`)},
	{"character died", regexp.MustCompile(`(?im)^[ \t]*(?:You die|You have died|You have been killed|You are dead)[^\n]*\n`)},
}

var progressRules = []lineRule{
	{"experience gained", regexp.MustCompile(`(?im)^[ \t]*You (?:gain|receive|earn) \d+ (?:experience|xp|exp)[^\n]*\n`)},
	{"level up", regexp.MustCompile(`(?im)^[ \t]*(?:You (?:advance|have advanced|rise) to level \d+|Congratulations[^\n]*level \d+)[^\n]*\n`)},
	{"victory", regexp.MustCompile(`(?im)^[ \t]*(?:You (?:have )?(?:killed|slain|defeated) [^\n]+|[^\n]+ (?:is|falls) dead[.!])[^\n]*\n`)},
	{"loot", regexp.MustCompile(`(?im)^[ \t]*You (?:get|take|pick up|receive) [^\n]+\.[ \t]*\r?\n`)},
	{"discovery", regexp.MustCompile(`(?im)^[ \t]*You (?:discover|find|notice|uncover) (?:[^n\n]|n[^o\n]|no[^t\n])[^\n]*\n`)},
}

type statusRule struct {
	field   domain.StatusField
	pattern *regexp.Regexp
	value   func(groups []string) string
}

var statusRules = []statusRule{
	{domain.FieldGold, regexp.MustCompile(`(?im)^[ \t]*You (?:have|are carrying) (\d+) (?:gold coins?|gold|coins?)\b[^\n]*\n`), nil},
	{domain.FieldGold, regexp.MustCompile(`(?i)\bGold:\s*(\d+)(?:\s|,)`), nil},
	{domain.FieldExits, regexp.MustCompile(`(?im)^[ \t]*(?:Obvious exits?|Exits?):\s*([^\n]+?)\.?[ \t]*\r?\n`), nil},
	{domain.FieldExits, regexp.MustCompile(`(?im)^[ \t]*There (?:is|are) \w+ obvious exits?:\s*([^\n]+?)\.?[ \t]*\r?\n`), nil},
	{domain.FieldLocation, regexp.MustCompile(`(?im)^[ \t]*Location:\s*([^\n]+?)[ \t]*\r?\n`), nil},
	{domain.FieldLocation, regexp.MustCompile(`(?im)^[ \t]*You are (?:standing )?(?:in|at|on|inside) (?:the )?([^\n]+?)\.[ \t]*\r?\n`), nil},
	{domain.FieldEnvironment, regexp.MustCompile(`(?im)^[ \t]*It is (?:now )?((?:early |late )?(?:dawn|morning|daytime|day|noon|afternoon|dusk|evening|midnight|night|dark|raining|snowing|foggy|cloudy|sunny))\b[^\n]*\n`), lowerValue},
	{domain.FieldTravel, regexp.MustCompile(`(?im)^[ \t]*You (?:begin|start) (?:to )?(?:follow(?:ing)?|travel(?:l?ing)?(?: to(?:wards)?)?) ([^\n]+?)\.?[ \t]*\r?\n`), prefixValue("travelling: ")},
	{domain.FieldTravel, regexp.MustCompile(`(?im)^[ \t]*You (?:stop following|arrive at|have arrived at|reach) [^\n]*\n`), constValue("arrived")},
	{domain.FieldRest, regexp.MustCompile(`(?im)^[ \t]*You (sit down|rest|lie down|go to sleep|fall asleep|stand up|wake up)\b[^\n]*\n`), restValue},
	{domain.FieldEncumbrance, regexp.MustCompile(`(?im)^[ \t]*You are (unburdened|unencumbered|lightly burdened|burdened|heavily burdened|overloaded|carrying too much)\b[^\n]*\n`), lowerValue},
	{domain.FieldEncumbrance, regexp.MustCompile(`(?im)^[ \t]*You can(?:'|no)t carry any more[^\n]*\n`), constValue("overloaded")},
	{domain.FieldInventory, regexp.MustCompile(`(?im)^[ \t]*You are (?:not carrying anything|empty[- ]handed)[^\n]*\n`), constValue("empty")},
	{domain.FieldInventory, regexp.MustCompile(`(?im)^[ \t]*You are carrying:?[ \t]*\r?\n`), constValue("carrying items")},
}

var sightingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^[ \t]*(?:(?:An?|The)\s+)?([A-Za-z][\w' -]{1,40}?)\s+(?:is|are)\s+(?:standing |sitting |resting |lurking )?here\.[ \t]*\r?\n`),
}

var attackPattern = regexp.MustCompile(`(?m)^[ \t]*(?:(?:An?|The)\s+)?([A-Za-z][\w' -]{1,40}?) attacks you[.!]*[ \t]*\r?\n`)

// DefaultDetectors is the ordered cascade. Login prompts come first; among
// gameplay detectors the strip-type informational ones run before the
// consuming prompts so a prompt never swallows unreported lines.
func DefaultDetectors() []Detector {
	detectors := []Detector{
		regexDetector("username-prompt", PhaseLogin, Consume, kindEvent(domain.EventUsernamePrompt), usernamePrompts...),
		regexDetector("password-prompt", PhaseLogin, Consume, kindEvent(domain.EventPasswordPrompt), passwordPrompts...),
	}

	for _, rule := range hazardRules {
		detectors = append(detectors, regexDetector("hazard:"+rule.reason, PhaseGameplay, Strip, reasonEvent(domain.EventHazard, rule.reason), rule.pattern))
	}
	for _, rule := range progressRules {
		detectors = append(detectors, regexDetector("progress:"+rule.reason, PhaseGameplay, Strip, reasonEvent(domain.EventProgress, rule.reason), rule.pattern))
	}
	for _, rule := range statusRules {
		detectors = append(detectors, regexDetector("status:"+string(rule.field), PhaseGameplay, Strip, statusEvent(rule), rule.pattern))
	}
	detectors = append(detectors,
		regexDetector("attack", PhaseGameplay, Strip, sightingEvent("under attack"), attackPattern),
		regexDetector("sighting", PhaseGameplay, Strip, sightingEvent("sighting"), sightingPatterns...),
		regexDetector("vitals-prompt", PhaseGameplay, Consume, vitalsEvent, vitalsPrompt),
		regexDetector("pagination", PhaseLogin|PhaseGameplay, Consume, kindEvent(domain.EventPagination), paginationPrompt...),
		regexDetector("remote-close", PhaseLogin|PhaseGameplay, Consume, kindEvent(domain.EventRemoteClose), remoteClose),
		genericPromptDetector(),
	)

	return detectors
}

func kindEvent(kind domain.EventKind) func([]string) (domain.Event, bool) {
	return func([]string) (domain.Event, bool) {
		return domain.Event{Kind: kind}, true
	}
}

func reasonEvent(kind domain.EventKind, reason string) func([]string) (domain.Event, bool) {
	return func([]string) (domain.Event, bool) {
		return domain.Event{Kind: kind, Reason: reason}, true
	}
}

func statusEvent(rule statusRule) func([]string) (domain.Event, bool) {
	return func(groups []string) (domain.Event, bool) {
		var value string
		if rule.value != nil {
			value = rule.value(groups)
		} else {
			value = firstGroup(groups)
		}
		if value == "" {
			return domain.Event{}, false
		}
		if rule.field == domain.FieldGold {
			if _, err := strconv.Atoi(value); err != nil {
				return domain.Event{}, false
			}
		}
		return domain.Event{Kind: domain.EventStatus, Field: rule.field, Value: value}, true
	}
}

func sightingEvent(reason string) func([]string) (domain.Event, bool) {
	return func(groups []string) (domain.Event, bool) {
		name := NormalizeName(firstGroup(groups))
		if name == "" || name == "you" || name == "there" || name == "nobody" {
			return domain.Event{}, false
		}
		return domain.Event{Kind: domain.EventSighting, Reason: reason, Name: name}, true
	}
}

func vitalsEvent(groups []string) (domain.Event, bool) {
	hp, err := strconv.Atoi(groups[1])
	if err != nil {
		return domain.Event{}, false
	}
	ep, err := strconv.Atoi(groups[2])
	if err != nil {
		return domain.Event{}, false
	}
	return domain.Event{Kind: domain.EventVitals, Vitals: domain.Vitals{HP: hp, EP: ep}}, true
}

// genericPromptDetector fires on a window that ends in a bare '>' prompt.
func genericPromptDetector() Detector {
	return Detector{
		Name:   "generic-prompt",
		Phase:  PhaseGameplay,
		Policy: Consume,
		Match: func(window string) (Match, bool) {
			trimmed := strings.TrimRight(window, " \t\r\n")
			if !strings.HasSuffix(trimmed, ">") {
				return Match{}, false
			}
			return Match{Start: 0, End: len(window), Event: domain.Event{Kind: domain.EventPrompt, Text: ">"}}, true
		},
	}
}

// NormalizeName lowercases, drops a leading article and collapses spaces.
func NormalizeName(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) > 1 {
		switch fields[0] {
		case "a", "an", "the":
			fields = fields[1:]
		}
	}
	return strings.Join(fields, " ")
}

func lowerValue(groups []string) string {
	return strings.ToLower(firstGroup(groups))
}

func prefixValue(prefix string) func([]string) string {
	return func(groups []string) string {
		value := firstGroup(groups)
		if value == "" {
			return ""
		}
		return prefix + value
	}
}

func constValue(value string) func([]string) string {
	return func([]string) string {
		return value
	}
}

func restValue(groups []string) string {
	switch verb := strings.ToLower(firstGroup(groups)); verb {
	case "sit down", "rest", "lie down":
		return "resting"
	case "go to sleep", "fall asleep":
		return "sleeping"
	case "stand up", "wake up":
		return "standing"
	default:
		return verb
	}
}
