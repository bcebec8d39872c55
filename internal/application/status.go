package application

import (
	"fmt"
	"strings"
	"sync"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"
)

const DefaultStagnationThreshold = 4

// StatusTracker owns the StatusSnapshot. Every setter is change-detected:
// an unchanged value neither touches the transcript nor reports a change.
type StatusTracker struct {
	mu         sync.Mutex
	snapshot   domain.StatusSnapshot
	repeats    int
	stagnant   bool
	threshold  int
	transcript *Transcript
	issues     *EventLog
}

func NewStatusTracker(transcript *Transcript, issues *EventLog) *StatusTracker {
	return &StatusTracker{
		threshold:  DefaultStagnationThreshold,
		transcript: transcript,
		issues:     issues,
	}
}

func (s *StatusTracker) UpdateVitals(hp, ep int) bool {
	s.mu.Lock()
	if s.snapshot.Vitals != nil && s.snapshot.Vitals.HP == hp && s.snapshot.Vitals.EP == ep {
		s.mu.Unlock()
		return false
	}
	vitals := domain.Vitals{HP: hp, EP: ep}
	s.snapshot.Vitals = &vitals
	s.mu.Unlock()

	s.note(domain.FieldVitals, vitals.String())
	return true
}

func (s *StatusTracker) UpdateGold(gold int) bool {
	s.mu.Lock()
	if s.snapshot.Gold != nil && *s.snapshot.Gold == gold {
		s.mu.Unlock()
		return false
	}
	s.snapshot.Gold = &gold
	s.mu.Unlock()

	s.note(domain.FieldGold, fmt.Sprintf("%d", gold))
	return true
}

// UpdateLocation returns whether the location changed and how many times in
// a row it has now been reported.
func (s *StatusTracker) UpdateLocation(location string) (bool, int) {
	location = strings.TrimSpace(location)
	if location == "" {
		return false, 0
	}

	s.mu.Lock()
	changed := s.snapshot.Location != location
	if changed {
		s.snapshot.Location = location
		s.repeats = 1
	} else {
		s.repeats++
	}
	repeats := s.repeats
	s.mu.Unlock()

	if changed {
		s.note(domain.FieldLocation, location)
	}
	s.TrackStagnation(location, repeats)
	return changed, repeats
}

// TrackStagnation raises one issue per stagnation episode. The episode ends
// when the count falls below the threshold, which is also what a location
// change does.
func (s *StatusTracker) TrackStagnation(location string, repeatCount int) {
	s.mu.Lock()
	if repeatCount < s.threshold {
		s.stagnant = false
		s.mu.Unlock()
		return
	}
	if s.stagnant {
		s.mu.Unlock()
		return
	}
	s.stagnant = true
	s.mu.Unlock()

	if s.issues != nil {
		s.issues.Add(fmt.Sprintf("No progress: still at %s after %d observations", location, repeatCount))
	}
}

func (s *StatusTracker) UpdateExits(exits string) bool {
	return s.updateText(domain.FieldExits, exits)
}

func (s *StatusTracker) UpdateEnvironment(environment string) bool {
	return s.updateText(domain.FieldEnvironment, environment)
}

func (s *StatusTracker) UpdateTravel(travel string) bool {
	return s.updateText(domain.FieldTravel, travel)
}

func (s *StatusTracker) UpdateRest(rest string) bool {
	return s.updateText(domain.FieldRest, rest)
}

func (s *StatusTracker) UpdateEncumbrance(encumbrance string) bool {
	return s.updateText(domain.FieldEncumbrance, encumbrance)
}

func (s *StatusTracker) UpdateInventory(inventory string) bool {
	return s.updateText(domain.FieldInventory, inventory)
}

// Update dispatches a textual field update by name.
func (s *StatusTracker) Update(field domain.StatusField, value string) bool {
	if field == domain.FieldLocation {
		changed, _ := s.UpdateLocation(value)
		return changed
	}
	return s.updateText(field, value)
}

func (s *StatusTracker) updateText(field domain.StatusField, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}

	s.mu.Lock()
	target := s.textField(field)
	if target == nil || *target == value {
		s.mu.Unlock()
		return false
	}
	*target = value
	s.mu.Unlock()

	s.note(field, value)
	return true
}

func (s *StatusTracker) textField(field domain.StatusField) *string {
	switch field {
	case domain.FieldExits:
		return &s.snapshot.Exits
	case domain.FieldEnvironment:
		return &s.snapshot.Environment
	case domain.FieldTravel:
		return &s.snapshot.Travel
	case domain.FieldRest:
		return &s.snapshot.Rest
	case domain.FieldEncumbrance:
		return &s.snapshot.Encumbrance
	case domain.FieldInventory:
		return &s.snapshot.Inventory
	default:
		return nil
	}
}

func (s *StatusTracker) note(field domain.StatusField, value string) {
	if s.transcript != nil {
		s.transcript.AppendLine(fmt.Sprintf("[status] %s: %s", field, value))
	}
}

func (s *StatusTracker) Snapshot() domain.StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.snapshot
	if s.snapshot.Vitals != nil {
		vitals := *s.snapshot.Vitals
		out.Vitals = &vitals
	}
	if s.snapshot.Gold != nil {
		gold := *s.snapshot.Gold
		out.Gold = &gold
	}
	return out
}

func (s *StatusTracker) LocationRepeats() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.repeats
}

func (s *StatusTracker) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = domain.StatusSnapshot{}
	s.repeats = 0
	s.stagnant = false
}
