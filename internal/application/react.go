package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"
)

// react applies the deterministic response to one detected event. Only
// credential and pagination prompts are answered directly; everything else
// is bookkeeping plus an optional planner wake.
func (s *Session) react(ctx context.Context, event domain.Event) {
	switch event.Kind {
	case domain.EventUsernamePrompt:
		s.sendUsername(ctx)
	case domain.EventPasswordPrompt:
		s.sendPassword(ctx)
	case domain.EventVitals:
		s.opts.Status.UpdateVitals(event.Vitals.HP, event.Vitals.EP)
		if !s.loggedIn {
			s.loggedIn = true
			s.setState(domain.StateActive)
			s.opts.Planner.Activate()
			s.note("Login confirmed.")
			s.opts.Planner.Wake("login")
			return
		}
		s.opts.Planner.Wake("prompt")
	case domain.EventPagination:
		s.send(ctx, "")
	case domain.EventRemoteClose:
		s.note("Server reported the connection closed.")
		s.closeConn()
	case domain.EventHazard:
		s.opts.Issues.Add(fmt.Sprintf("%s: %s", event.Reason, event.Text))
		s.opts.Planner.Wake("hazard: " + event.Reason)
	case domain.EventProgress:
		s.opts.Opportunities.Add(fmt.Sprintf("%s: %s", event.Reason, event.Text))
		s.opts.Planner.Wake("progress: " + event.Reason)
	case domain.EventSighting:
		s.reactSighting(event)
	case domain.EventStatus:
		s.reactStatus(event)
	case domain.EventPrompt:
		if s.loggedIn {
			s.opts.Planner.Wake("prompt")
		}
	}
}

func (s *Session) sendUsername(ctx context.Context) {
	if s.profile.Username == "" {
		return
	}
	if s.send(ctx, s.profile.Username) {
		s.usernameSent = true
		s.note("Sent username " + s.profile.Username)
	}
}

func (s *Session) sendPassword(ctx context.Context) {
	if err := s.opts.Dispatcher.SendSecret(ctx, s.profile.Password, "password"); err != nil {
		s.sendFailed("password", err)
		return
	}
	s.passwordSent = true
	s.note("Sent password (redacted)")
}

func (s *Session) send(ctx context.Context, command string) bool {
	if err := s.opts.Dispatcher.Send(ctx, command); err != nil {
		s.sendFailed(displayCommand(normalizeCommand(command)), err)
		return false
	}
	return true
}

func (s *Session) sendFailed(what string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrNotConnected) {
		return
	}
	s.log.Warn().Err(err).Str("what", what).Msg("deterministic send failed")
	s.renderError(fmt.Sprintf("Failed to send %s: %v", what, err))
}

func (s *Session) reactSighting(event domain.Event) {
	key := event.Reason + "|" + event.Name
	now := s.opts.Clock.Now()
	if last, ok := s.sightings[key]; ok && now.Sub(last) < s.opts.SightingWindow {
		return
	}
	for seen, at := range s.sightings {
		if now.Sub(at) >= s.opts.SightingWindow {
			delete(s.sightings, seen)
		}
	}
	s.sightings[key] = now

	if event.Reason == "under attack" {
		s.opts.Events.Add("Under attack by " + event.Name)
		s.opts.Planner.Wake("under attack: " + event.Name)
		return
	}
	s.opts.Events.Add("Spotted " + event.Name)
	s.opts.Planner.Wake("sighting: " + event.Name)
}

func (s *Session) reactStatus(event domain.Event) {
	switch event.Field {
	case domain.FieldGold:
		gold, err := strconv.Atoi(event.Value)
		if err != nil {
			return
		}
		s.opts.Status.UpdateGold(gold)
	case domain.FieldLocation:
		if changed, _ := s.opts.Status.UpdateLocation(event.Value); changed {
			s.opts.Planner.Wake("location changed: " + event.Value)
		}
	case domain.FieldEncumbrance:
		if s.opts.Status.UpdateEncumbrance(event.Value) {
			s.opts.Planner.Wake("encumbrance: " + event.Value)
		}
	default:
		s.opts.Status.Update(event.Field, event.Value)
	}
}
