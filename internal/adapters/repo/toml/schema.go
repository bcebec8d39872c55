package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int             `toml:"version"`
	Profiles []profileSchema `toml:"profiles"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported profiles schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

// profileSchema keeps either a secret_ref into the secret store or an inline
// password for throwaway characters.
type profileSchema struct {
	Username  string `toml:"username"`
	SecretRef string `toml:"secret_ref,omitempty"`
	Password  string `toml:"password,omitempty"`
}
