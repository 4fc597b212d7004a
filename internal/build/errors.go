package build

import "git.home.luguber.info/inful/shadowjar/internal/foundation/errors"

// Build failures. All abort the current run only.
var (
	ErrNonZeroExit     = errors.BuildError("build tool exited with non-zero status").Build()
	ErrArtifactMissing = errors.BuildError("build produced no artifact matching expected output").Build()
	ErrWorkspace       = errors.FileSystemError("failed to prepare build workspace").Build()
)
