package domain

import (
	"fmt"
	"strings"
	"sync"
)

// CharacterProfile is the identity a session logs in with. It is never
// mutated once a session has picked it.
type CharacterProfile struct {
	Username string
	Password string
}

func (p CharacterProfile) Validate() error {
	if strings.TrimSpace(p.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if strings.ContainsAny(p.Username, "\r\n") {
		return fmt.Errorf("username %q contains a line break", p.Username)
	}
	if strings.ContainsAny(p.Password, "\r\n") {
		return fmt.Errorf("password for %q contains a line break", p.Username)
	}

	return nil
}

// ProfileRotation hands out profiles round-robin.
type ProfileRotation struct {
	mu       sync.Mutex
	profiles []CharacterProfile
	index    int
}

func NewProfileRotation(profiles []CharacterProfile) (*ProfileRotation, error) {
	if len(profiles) == 0 {
		return nil, ErrNoProfiles
	}
	for _, profile := range profiles {
		if err := profile.Validate(); err != nil {
			return nil, fmt.Errorf("validate profile: %w", err)
		}
	}

	copied := make([]CharacterProfile, len(profiles))
	copy(copied, profiles)

	return &ProfileRotation{profiles: copied}, nil
}

func (r *ProfileRotation) Current() CharacterProfile {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.profiles[r.index]
}

func (r *ProfileRotation) Advance() CharacterProfile {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.index = (r.index + 1) % len(r.profiles)
	return r.profiles[r.index]
}

// Select moves the rotation to the named profile.
func (r *ProfileRotation) Select(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, profile := range r.profiles {
		if strings.EqualFold(profile.Username, username) {
			r.index = i
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrProfileNotFound, username)
}

func (r *ProfileRotation) Len() int {
	return len(r.profiles)
}

// ProfileRecord is a stored profile before its password is resolved.
// SecretRef takes precedence over an inline Password.
type ProfileRecord struct {
	Username  string
	SecretRef string
	Password  string
}
