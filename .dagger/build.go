package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/algoqa/internal/dagger"
)

// Build and return directory of go binaries.
// go-sqlite3 requires CGO, so binaries are built natively for linux on the
// shared bookworm container rather than cross compiled.
func (a *Algoqa) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	path := "linux/amd64/"

	build := a.goContainer().
		WithEnvVariable("GOOS", "linux").
		WithEnvVariable("GOARCH", "amd64").
		WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/algoqa"})

	return dag.Directory().WithDirectory(path, build.Directory(path))
}

// BuildRelease compiles versioned release binaries with embedded version info
func (a *Algoqa) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/algoqa/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/algoqa/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/algoqa/pkg/utils.Buildtime=%s'", buildtime),
	}

	return a.Build(ctx, strings.Join(ldflags, " "))
}
