package dockhand_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ryanmoran/dockhand"
)

func TestAPIVersion(t *testing.T) {
	t.Run("ParseAPIVersion", func(t *testing.T) {
		t.Run("with major only", func(t *testing.T) {
			version, err := dockhand.ParseAPIVersion("1")
			require.NoError(t, err)
			require.Equal(t, dockhand.APIVersion{Major: 1, Minor: -1, Patch: -1}, version)
			require.Equal(t, "1", version.String())
		})

		t.Run("with major and minor", func(t *testing.T) {
			version, err := dockhand.ParseAPIVersion("1.41")
			require.NoError(t, err)
			require.Equal(t, dockhand.APIVersion{Major: 1, Minor: 41, Patch: -1}, version)
			require.Equal(t, "1.41", version.String())
		})

		t.Run("with major, minor and patch", func(t *testing.T) {
			version, err := dockhand.ParseAPIVersion("1.41.2")
			require.NoError(t, err)
			require.Equal(t, dockhand.APIVersion{Major: 1, Minor: 41, Patch: 2}, version)
			require.Equal(t, "1.41.2", version.String())
		})

		t.Run("failure cases", func(t *testing.T) {
			for _, malformed := range []string{"", "one", "1.x", "1.41.x", "1.41.2.9"} {
				_, err := dockhand.ParseAPIVersion(malformed)
				require.Error(t, err, "expected %q to fail", malformed)
				require.True(t, dockhand.IsKind(err, dockhand.KindInvalidEndpoint))
			}
		})
	})

	t.Run("Compare", func(t *testing.T) {
		parse := func(s string) dockhand.APIVersion {
			version, err := dockhand.ParseAPIVersion(s)
			require.NoError(t, err)
			return version
		}

		require.Equal(t, 0, parse("1.41").Compare(parse("1.41")))
		require.Equal(t, 0, parse("1.41").Compare(parse("1.41.0")))
		require.Equal(t, -1, parse("1.40").Compare(parse("1.41")))
		require.Equal(t, 1, parse("2").Compare(parse("1.99.99")))
		require.Equal(t, 1, parse("1.41.1").Compare(parse("1.41")))
	})

	t.Run("Path", func(t *testing.T) {
		version, err := dockhand.ParseAPIVersion("1.41")
		require.NoError(t, err)
		require.Equal(t, "/v1.41/containers/json", version.Path("/containers/json"))
		require.Equal(t, "/v1.41/containers/json", version.Path("containers/json"))
	})

	t.Run("IsZero", func(t *testing.T) {
		require.True(t, dockhand.APIVersion{}.IsZero())

		version, err := dockhand.ParseAPIVersion("1.41")
		require.NoError(t, err)
		require.False(t, version.IsZero())
	})
}
