package speckle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseURLProject(t *testing.T) {
	t.Parallel()

	ref, err := ParseURL("https://app.speckle.systems/projects/080aa54b8c/models/672e2108a2")
	require.NoError(t, err)
	require.Equal(t, "https://app.speckle.systems", ref.Server)
	require.Equal(t, "080aa54b8c", ref.ProjectID)
	require.Equal(t, []string{"672e2108a2"}, ref.ModelIDs)
	require.Equal(t, "080aa54b8c", ref.StreamKey())
}

func TestParseURLModelList(t *testing.T) {
	t.Parallel()

	ref, err := ParseURL("https://app.speckle.systems/projects/080aa54b8c/models/672e2108a2,beef00beef")
	require.NoError(t, err)
	require.Equal(t, []string{"672e2108a2", "beef00beef"}, ref.ModelIDs)
}

func TestParseURLLegacyStream(t *testing.T) {
	t.Parallel()

	ref, err := ParseURL("https://speckle.example.com/streams/deadbeef01/")
	require.NoError(t, err)
	require.Equal(t, "https://speckle.example.com", ref.Server)
	require.Empty(t, ref.ProjectID)
	require.Equal(t, "deadbeef01", ref.StreamID)
	require.Equal(t, "deadbeef01", ref.StreamKey())
}

func TestParseURLTrailingSlashAndWhitespace(t *testing.T) {
	t.Parallel()

	ref, err := ParseURL("  https://app.speckle.systems/projects/aa11/models/bb22/  ")
	require.NoError(t, err)
	require.Equal(t, "aa11", ref.ProjectID)
	require.Equal(t, []string{"bb22"}, ref.ModelIDs)
}

func TestParseURLUnsupported(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"",
		"not-a-url",
		"https://app.speckle.systems/settings/profile",
		"ftp://app.speckle.systems/projects/aa/models/bb",
	} {
		_, err := ParseURL(raw)
		require.Error(t, err, "input %q", raw)
	}
}
