package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/application"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"
)

// View is what the CLI shows about configured profiles and, after a run,
// the last known session status.
type View struct {
	Profiles []application.ProfileSummary
	// Current marks the profile the next session starts with.
	Current string
	Session *SessionView
}

type SessionView struct {
	Profile  string
	State    domain.SessionState
	Snapshot domain.StatusSnapshot
	Runtime  time.Duration
}

func renderView(view View, s styles) string {
	lines := []string{
		s.title.Render("T2T Character Profiles"),
		s.header.Render(fmt.Sprintf("profiles: %d", len(view.Profiles))),
	}

	if len(view.Profiles) == 0 {
		lines = append(lines, s.empty.Render("No profiles configured. Add one with `t2t profiles add`."))
	}
	for _, profile := range view.Profiles {
		lines = append(lines, renderProfile(profile, view.Current, s))
	}

	if view.Session != nil {
		lines = append(lines, s.section.Render(renderSession(*view.Session, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderProfile(profile application.ProfileSummary, current string, s styles) string {
	title := s.profile.Render(profile.Username)
	if current != "" && strings.EqualFold(profile.Username, current) {
		title = lipgloss.JoinHorizontal(lipgloss.Top, title, " ", s.current.Render("(next)"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, "  "+passwordLine(profile, s))
}

func passwordLine(profile application.ProfileSummary, s styles) string {
	switch profile.Storage {
	case application.StorageSecretStore:
		return s.detail.Render(fmt.Sprintf("password: secret store (%s)", profile.SecretRef))
	case application.StorageInline:
		return s.warning.Render("password: inline in profiles.toml")
	default:
		return s.warning.Render("password: missing")
	}
}

func renderSession(session SessionView, s styles) string {
	parts := []string{
		s.title.Render("Session"),
		fieldLine("profile", valueOr(session.Profile, "none"), s),
		fieldLine("state", valueOr(string(session.State), string(domain.StateDisconnected)), s),
	}
	if session.Runtime > 0 {
		parts = append(parts, fieldLine("runtime", session.Runtime.Round(time.Second).String(), s))
	}

	if session.Snapshot.Empty() {
		parts = append(parts, s.empty.Render("No status observed."))
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	for _, line := range strings.Split(session.Snapshot.Summary(), "\n") {
		key, value, _ := strings.Cut(line, ": ")
		parts = append(parts, fieldLine(key, value, s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func fieldLine(key, value string, s styles) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, s.key.Render(key+":"), " ", s.value.Render(value))
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
