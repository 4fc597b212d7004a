package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCurrentReflectsLinkedValues(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "v1.2.3"
	info := Current()
	require.Equal(t, "v1.2.3", info.Version)
	require.NotEmpty(t, info.BuildTime)
	require.NotEmpty(t, info.GitCommit)
	require.Contains(t, String(), "shadowjar v1.2.3")
}
