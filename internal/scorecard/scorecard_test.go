package scorecard_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxline/robocall-qa-backend/internal/scorecard"
)

func writeScorecard(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scorecard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns the default scorecard", func(t *testing.T) {
		sc, err := scorecard.Load("")
		require.NoError(t, err)

		assert.Equal(t, "robocall-default", sc.Name)
		assert.NoError(t, sc.Validate())
	})

	t.Run("loads criteria from a yaml file", func(t *testing.T) {
		path := writeScorecard(t, `
name: custom
criteria:
  - name: greeting_within_sop
    weight: 50
  - name: no_prohibited_language
    weight: 0
    zero_tolerance: true
`)

		sc, err := scorecard.Load(path)
		require.NoError(t, err)

		assert.Equal(t, "custom", sc.Name)
		require.Len(t, sc.Criteria, 2)
		assert.Equal(t, 50, sc.Criteria[0].Weight)
		assert.True(t, sc.Criteria[1].ZeroTolerance)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := scorecard.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read scorecard file")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeScorecard(t, "criteria: [not: closed")

		_, err := scorecard.Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse scorecard file")
	})

	t.Run("rejects invalid definitions", func(t *testing.T) {
		_, err := scorecard.Load(writeScorecard(t, "name: empty\ncriteria: []\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no criteria")
	})
}

func TestScorecardValidate(t *testing.T) {
	tests := []struct {
		name    string
		sc      scorecard.Scorecard
		wantErr string
	}{
		{
			name: "valid",
			sc: scorecard.Scorecard{
				Name:     "ok",
				Criteria: []scorecard.Criterion{{Name: "a", Weight: 100}},
			},
		},
		{
			name:    "no criteria",
			sc:      scorecard.Scorecard{Name: "empty"},
			wantErr: "no criteria",
		},
		{
			name: "unnamed criterion",
			sc: scorecard.Scorecard{
				Name:     "bad",
				Criteria: []scorecard.Criterion{{Weight: 10}},
			},
			wantErr: "has no name",
		},
		{
			name: "duplicate criterion",
			sc: scorecard.Scorecard{
				Name:     "bad",
				Criteria: []scorecard.Criterion{{Name: "a", Weight: 10}, {Name: "a", Weight: 10}},
			},
			wantErr: "duplicate criterion",
		},
		{
			name: "negative weight",
			sc: scorecard.Scorecard{
				Name:     "bad",
				Criteria: []scorecard.Criterion{{Name: "a", Weight: -1}},
			},
			wantErr: "negative weight",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sc.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
