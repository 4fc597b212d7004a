// Package flavor maps server software flavors to their immutable build recipes.
package flavor

import (
	"slices"
	"strings"

	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
	"git.home.luguber.info/inful/shadowjar/internal/foundation/normalization"
)

// Flavor identifies a supported server software family.
type Flavor string

const (
	Spigot Flavor = "Spigot"
	Paper  Flavor = "Paper"
	Fabric Flavor = "Fabric"
)

// Placeholders substituted into Descriptor templates.
const (
	PlaceholderTool    = "{tool}"
	PlaceholderVersion = "{version}"
)

// ErrNotSupported is returned by Resolve for identifiers outside the supported set.
var ErrNotSupported = errors.NotFoundError("server flavor not supported").Build()

// Descriptor is the build recipe for one flavor and requested version.
type Descriptor struct {
	Flavor       Flavor
	ToolFilename string
	ToolURL      string
	// SelfCheck is a harmless invocation used to verify the tool binary.
	SelfCheck []string
	// Invocation is the argv that produces the artifact.
	Invocation []string
	// ExpectedOutput is a glob, relative to the workspace, matching the artifact.
	ExpectedOutput string
}

type recipe struct {
	toolFilename   string
	toolURL        string
	selfCheck      []string
	invocation     []string
	expectedOutput string
}

var recipes = map[Flavor]recipe{
	Spigot: {
		toolFilename:   "BuildTools.jar",
		toolURL:        "https://hub.spigotmc.org/jenkins/job/BuildTools/lastSuccessfulBuild/artifact/target/BuildTools.jar",
		selfCheck:      []string{"java", "-jar", PlaceholderTool, "--help"},
		invocation:     []string{"java", "-jar", PlaceholderTool, "--rev", PlaceholderVersion},
		expectedOutput: "spigot-" + PlaceholderVersion + ".jar",
	},
	// Paperclip has no stable "latest" download URL; operators configure one per version.
	Paper: {
		toolFilename:   "paperclip.jar",
		selfCheck:      []string{"java", "-jar", PlaceholderTool, "--help"},
		invocation:     []string{"java", "-Dpaperclip.patchonly=true", "-jar", PlaceholderTool},
		expectedOutput: "versions/" + PlaceholderVersion + "/paper-" + PlaceholderVersion + ".jar",
	},
	Fabric: {
		toolFilename:   "fabric-installer.jar",
		toolURL:        "https://maven.fabricmc.net/net/fabricmc/fabric-installer/1.0.1/fabric-installer-1.0.1.jar",
		selfCheck:      []string{"java", "-jar", PlaceholderTool, "help"},
		invocation:     []string{"java", "-jar", PlaceholderTool, "server", "-mcversion", PlaceholderVersion, "-downloadMinecraft"},
		expectedOutput: "fabric-server-launch.jar",
	},
}

var flavorNormalizer = normalization.NewNormalizer(map[string]Flavor{
	string(Spigot): Spigot,
	string(Paper):  Paper,
	string(Fabric): Fabric,
}, "")

// All returns the supported flavors in a stable order.
func All() []Flavor {
	out := make([]Flavor, 0, len(recipes))
	for f := range recipes {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Parse maps an identifier to a Flavor. Canonical names match exactly;
// other casings are accepted as a fallback.
func Parse(id string) (Flavor, error) {
	if _, ok := recipes[Flavor(id)]; ok {
		return Flavor(id), nil
	}
	f, err := flavorNormalizer.NormalizeWithError(id)
	if err != nil {
		return "", ErrNotSupported.WithContext("flavor", id)
	}
	return f, nil
}

// Resolve returns the build descriptor for (id, version). It has no side effects.
func Resolve(id, version string) (Descriptor, error) {
	f, err := Parse(id)
	if err != nil {
		return Descriptor{}, err
	}
	r := recipes[f]
	return Descriptor{
		Flavor:         f,
		ToolFilename:   r.toolFilename,
		ToolURL:        r.toolURL,
		SelfCheck:      slices.Clone(r.selfCheck),
		Invocation:     slices.Clone(r.invocation),
		ExpectedOutput: strings.ReplaceAll(r.expectedOutput, PlaceholderVersion, version),
	}, nil
}

// WithToolURL returns a copy of d that downloads its tool from url. An empty
// url keeps the built-in source.
func WithToolURL(d Descriptor, url string) Descriptor {
	if url != "" {
		d.ToolURL = url
	}
	return d
}

// Render substitutes the tool filename and version into an argv template.
func Render(template []string, toolFilename, version string) []string {
	r := strings.NewReplacer(PlaceholderTool, toolFilename, PlaceholderVersion, version)
	out := make([]string, len(template))
	for i, arg := range template {
		out[i] = r.Replace(arg)
	}
	return out
}

// InvocationArgs returns the rendered build argv for version.
func (d Descriptor) InvocationArgs(version string) []string {
	return Render(d.Invocation, d.ToolFilename, version)
}

// SelfCheckArgs returns the rendered self-check argv.
func (d Descriptor) SelfCheckArgs() []string {
	return Render(d.SelfCheck, d.ToolFilename, "")
}
