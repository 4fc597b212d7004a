package flavor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveSupportedFlavors(t *testing.T) {
	for _, f := range All() {
		d, err := Resolve(string(f), "1.21.4")
		require.NoError(t, err, f)
		require.Equal(t, f, d.Flavor)
		require.NotEmpty(t, d.ToolFilename)
		require.NotEmpty(t, d.ExpectedOutput)
		require.NotEmpty(t, d.Invocation)
		require.NotEmpty(t, d.SelfCheck)
	}
}

func TestResolveUnsupported(t *testing.T) {
	for _, id := range []string{"", "Forge", "UnknownServer", "spigot-1.21", "\x00"} {
		require.NotPanics(t, func() {
			_, err := Resolve(id, "1.21.4")
			require.True(t, errors.Is(err, ErrNotSupported), "id %q", id)
		})
	}
}

func TestResolveCaseInsensitiveFallback(t *testing.T) {
	d, err := Resolve(" spigot ", "1.20.2")
	require.NoError(t, err)
	require.Equal(t, Spigot, d.Flavor)
}

func TestResolveEmbedsVersion(t *testing.T) {
	d, err := Resolve("Spigot", "1.21.4")
	require.NoError(t, err)
	require.Equal(t, "spigot-1.21.4.jar", d.ExpectedOutput)
	require.Equal(t, []string{"java", "-jar", "BuildTools.jar", "--rev", "1.21.4"}, d.InvocationArgs("1.21.4"))
	require.Equal(t, []string{"java", "-jar", "BuildTools.jar", "--help"}, d.SelfCheckArgs())

	p, err := Resolve("Paper", "1.20.1")
	require.NoError(t, err)
	require.Equal(t, "versions/1.20.1/paper-1.20.1.jar", p.ExpectedOutput)
}

func TestInvocationIsPerFlavor(t *testing.T) {
	spigot, _ := Resolve("Spigot", "1.21")
	fabric, _ := Resolve("Fabric", "1.21")
	require.NotEqual(t, spigot.InvocationArgs("1.21"), fabric.InvocationArgs("1.21"))
	require.Contains(t, fabric.InvocationArgs("1.21"), "-mcversion")
}

func TestDescriptorsAreIndependentCopies(t *testing.T) {
	a, _ := Resolve("Spigot", "1.21.4")
	a.Invocation[0] = "mutated"
	b, _ := Resolve("Spigot", "1.21.4")
	require.Equal(t, "java", b.Invocation[0])
}

func TestWithToolURL(t *testing.T) {
	d, _ := Resolve("Paper", "1.21.4")
	require.Empty(t, d.ToolURL)
	require.Equal(t, "https://example.invalid/paperclip.jar", WithToolURL(d, "https://example.invalid/paperclip.jar").ToolURL)

	s, _ := Resolve("Spigot", "1.21.4")
	require.Equal(t, s.ToolURL, WithToolURL(s, "").ToolURL)
}
