package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/application"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"
)

func TestRenderProfiles(t *testing.T) {
	output, err := Render(View{
		Profiles: []application.ProfileSummary{
			{Username: "Marchos", Storage: application.StorageSecretStore, SecretRef: "t2t/marchos/password"},
			{Username: "Zesty", Storage: application.StorageInline},
			{Username: "Ghost", Storage: application.StorageNone},
		},
		Current: "zesty",
	})

	require.NoError(t, err)
	assert.Contains(t, output, "profiles: 3")
	assert.Contains(t, output, "Marchos")
	assert.Contains(t, output, "password: secret store (t2t/marchos/password)")
	assert.Contains(t, output, "Zesty (next)")
	assert.Contains(t, output, "password: inline in profiles.toml")
	assert.Contains(t, output, "password: missing")
	assert.NotContains(t, output, "Marchos (next)")
}

func TestRenderNoProfiles(t *testing.T) {
	output, err := Render(View{})

	require.NoError(t, err)
	assert.Contains(t, output, "profiles: 0")
	assert.Contains(t, output, "No profiles configured")
	assert.NotContains(t, output, "Session")
}

func TestRenderSessionSnapshot(t *testing.T) {
	gold := 12
	output, err := Render(View{
		Profiles: []application.ProfileSummary{{Username: "Marchos", Storage: application.StorageSecretStore, SecretRef: "t2t/marchos/password"}},
		Session: &SessionView{
			Profile: "Marchos",
			State:   domain.StateDisconnected,
			Runtime: 90*time.Second + 400*time.Millisecond,
			Snapshot: domain.StatusSnapshot{
				Vitals:   &domain.Vitals{HP: 80, EP: 40},
				Gold:     &gold,
				Location: "Bree",
				Exits:    "north, south",
			},
		},
	})

	require.NoError(t, err)
	assert.Contains(t, output, "Session")
	assert.Contains(t, output, "profile: Marchos")
	assert.Contains(t, output, "state: disconnected")
	assert.Contains(t, output, "runtime: 1m30s")
	assert.Contains(t, output, "vitals: HP 80 EP 40")
	assert.Contains(t, output, "gold: 12")
	assert.Contains(t, output, "location: Bree")
	assert.Contains(t, output, "exits: north, south")
}

func TestRenderSessionWithoutStatus(t *testing.T) {
	output, err := Render(View{Session: &SessionView{Profile: "Zesty"}})

	require.NoError(t, err)
	assert.Contains(t, output, "state: disconnected")
	assert.Contains(t, output, "No status observed.")
}
