package main

import (
	"fmt"
	"strings"
	"time"

	"context"

	"dagger/passage/internal/dagger"
)

// Build and return directory of go binaries
func (p *Passage) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	// define build matrix; sqlite and sqlite-vec need cgo, so each target
	// gets a cross toolchain instead of disabling cgo
	targets := []struct {
		goos   string
		goarch string
		cc     string
	}{
		{"linux", "amd64", "gcc"},
		{"linux", "arm64", "aarch64-linux-gnu-gcc"},
	}

	// create empty directory to put build artifacts
	outputs := dag.Directory()

	golang := dag.Container().
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "gcc-aarch64-linux-gnu", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("GOEXPERIMENT", "jsonv2").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithDirectory("/src", p.Source).
		WithWorkdir("/src")

	for _, target := range targets {
		// create directory for each OS and architecture
		path := fmt.Sprintf("%s/%s/", target.goos, target.goarch)

		// build artifact
		build := golang.
			WithEnvVariable("GOOS", target.goos).
			WithEnvVariable("GOARCH", target.goarch).
			WithEnvVariable("CC", target.cc).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/passage"}).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/passageapi"})

		// add build to outputs
		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	// return build directory
	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (p *Passage) BuildRelease(
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
		fmt.Sprintf("-X 'github.com/passagehq/passage/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/passagehq/passage/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/passagehq/passage/pkg/utils.Buildtime=%s'", buildtime),
	}

	return p.Build(ctx, strings.Join(ldflags, " "))
}
