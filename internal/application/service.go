package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/ports"
)

const secretKeyPrefix = "t2t"

type ProfileStorage string

const (
	StorageSecretStore ProfileStorage = "secret store"
	StorageInline      ProfileStorage = "inline"
	StorageNone        ProfileStorage = "none"
)

// ProfileSummary is what the CLI may show about a profile; it never carries
// the password.
type ProfileSummary struct {
	Username  string
	Storage   ProfileStorage
	SecretRef string
}

// ProfileService manages stored character profiles and resolves them into a
// rotation for the session.
type ProfileService struct {
	repo  ports.ProfileRepository
	store ports.SecretStore
}

func NewProfileService(repo ports.ProfileRepository, store ports.SecretStore) *ProfileService {
	return &ProfileService{repo: repo, store: store}
}

// SecretKey is the secret store key holding username's password.
func SecretKey(username string) string {
	return secretKeyPrefix + "/" + strings.ToLower(strings.TrimSpace(username)) + "/password"
}

func (s *ProfileService) List(ctx context.Context) ([]ProfileSummary, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	summaries := make([]ProfileSummary, 0, len(records))
	for _, record := range records {
		summary := ProfileSummary{Username: record.Username, SecretRef: record.SecretRef}
		switch {
		case record.SecretRef != "":
			summary.Storage = StorageSecretStore
		case record.Password != "":
			summary.Storage = StorageInline
		default:
			summary.Storage = StorageNone
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// Add stores the password in the secret store and records a reference to it.
// A failed save removes the freshly stored secret again.
func (s *ProfileService) Add(ctx context.Context, username, password string) error {
	profile := domain.CharacterProfile{Username: strings.TrimSpace(username), Password: password}
	if err := profile.Validate(); err != nil {
		return err
	}
	if password == "" {
		return errors.New("password is required")
	}

	previous, err := s.find(ctx, profile.Username)
	if err != nil && !errors.Is(err, domain.ErrProfileNotFound) {
		return err
	}

	key := SecretKey(profile.Username)
	if err := s.store.Put(ctx, key, password); err != nil {
		return fmt.Errorf("store profile password: %w", err)
	}

	record := domain.ProfileRecord{Username: profile.Username, SecretRef: key}
	if err := s.repo.Save(ctx, record); err != nil {
		if rollbackErr := s.store.Delete(ctx, key); rollbackErr != nil {
			return fmt.Errorf("save profile and rollback stored password: %w", errors.Join(err, rollbackErr))
		}
		return fmt.Errorf("save profile: %w", err)
	}

	if previous.SecretRef != "" && previous.SecretRef != key {
		if err := s.store.Delete(ctx, previous.SecretRef); err != nil && !errors.Is(err, domain.ErrSecretNotFound) {
			return fmt.Errorf("delete previous profile password: %w", err)
		}
	}

	return nil
}

// Remove deletes the profile and its stored password. When the password
// cannot be deleted the profile record is restored.
func (s *ProfileService) Remove(ctx context.Context, username string) error {
	record, err := s.find(ctx, username)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, record.Username); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if record.SecretRef == "" {
		return nil
	}

	if err := s.store.Delete(ctx, record.SecretRef); err != nil && !errors.Is(err, domain.ErrSecretNotFound) {
		if restoreErr := s.repo.Save(ctx, record); restoreErr != nil {
			return fmt.Errorf("delete profile password and restore profile: %w", errors.Join(err, restoreErr))
		}
		return fmt.Errorf("delete profile password: %w", err)
	}

	return nil
}

// Rotation resolves every stored profile into a rotation that starts at
// start, or at the first profile when start is empty.
func (s *ProfileService) Rotation(ctx context.Context, start string) (*domain.ProfileRotation, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	if len(records) == 0 {
		return nil, domain.ErrNoProfiles
	}

	profiles := make([]domain.CharacterProfile, 0, len(records))
	for _, record := range records {
		password := record.Password
		if record.SecretRef != "" {
			password, err = s.store.Get(ctx, record.SecretRef)
			if err != nil {
				return nil, fmt.Errorf("resolve password for %s: %w", record.Username, err)
			}
		}
		profiles = append(profiles, domain.CharacterProfile{Username: record.Username, Password: password})
	}

	rotation, err := domain.NewProfileRotation(profiles)
	if err != nil {
		return nil, err
	}
	if start = strings.TrimSpace(start); start != "" {
		if err := rotation.Select(start); err != nil {
			return nil, err
		}
	}

	return rotation, nil
}

func (s *ProfileService) find(ctx context.Context, username string) (domain.ProfileRecord, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return domain.ProfileRecord{}, fmt.Errorf("list profiles: %w", err)
	}
	for _, record := range records {
		if strings.EqualFold(record.Username, strings.TrimSpace(username)) {
			return record, nil
		}
	}

	return domain.ProfileRecord{}, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, username)
}
