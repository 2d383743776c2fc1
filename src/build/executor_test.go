package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harbour-build/harbour/src/core"
	"github.com/harbour-build/harbour/src/fingerprint"
	"github.com/harbour-build/harbour/src/plan"
	"github.com/harbour-build/harbour/src/surface"
	"github.com/harbour-build/harbour/src/toolchain"
)

// touchToolchain renders every step as a shell command that touches its
// declared output, so the executor can be exercised end to end without a
// real C/C++ toolchain installed.
type touchToolchain struct{}

func (touchToolchain) Family() string        { return "touch" }
func (touchToolchain) VersionString() string { return "1" }
func (touchToolchain) Compile(in toolchain.CompileInput) toolchain.Command {
	return toolchain.Command{Program: "/usr/bin/touch", Args: []string{in.ObjOut}}
}
func (touchToolchain) Archive(in toolchain.ArchiveInput) toolchain.Command {
	return toolchain.Command{Program: "/usr/bin/touch", Args: []string{in.ArchiveOut}}
}
func (touchToolchain) Link(in toolchain.LinkInput) toolchain.Command {
	return toolchain.Command{Program: "/usr/bin/touch", Args: []string{in.ImageOut}}
}

func newTestRef() surface.TargetRef {
	pkg := core.NewPackageId("app", core.MustParseVersion("1.0.0"), core.NewRegistrySourceId(""))
	return surface.TargetRef{Package: pkg, Target: "main"}
}

func TestExecutorRunsCompileThenLink(t *testing.T) {
	outDir := t.TempDir()
	ref := newTestRef()
	obj := filepath.Join(outDir, "a.o")
	image := filepath.Join(outDir, "app")

	bp := &plan.BuildPlan{Steps: []plan.Step{
		{Kind: plan.StepCompile, Compile: &plan.CompileStep{
			ID: "compile1", Target: ref, SrcFile: "a.cc", ObjOut: obj,
			Toolchain: toolchain.CompileInput{SrcFile: "a.cc", ObjOut: obj},
		}},
		{Kind: plan.StepLink, Link: &plan.LinkStep{
			ID: "link1", Target: ref, ImageOut: image,
			Toolchain: toolchain.LinkInput{Objs: []string{obj}, ImageOut: image},
		}},
	}}

	store, err := fingerprint.Load(filepath.Join(outDir, "fingerprints.json"))
	require.NoError(t, err)

	// The compile step's source file doesn't exist on disk, but runCompile
	// hashes it with HashFile to build the fingerprint key before the
	// command runs, so back it with a real (empty) file.
	require.NoError(t, os.WriteFile("a.cc", []byte{}, 0o644))
	defer os.Remove("a.cc")

	exec := &Executor{Plan: bp, Toolchain: touchToolchain{}, Store: store, ToolchainFP: "tcfp", Parallelism: 1}
	err = exec.Run(context.Background())
	require.NoError(t, err)

	assert.FileExists(t, obj)
	assert.FileExists(t, image)

	_, ok := store.Get("compile1")
	assert.True(t, ok)
	_, ok = store.Get("link1")
	assert.True(t, ok)
}

func TestExecutorSkipsUnchangedCompile(t *testing.T) {
	outDir := t.TempDir()
	ref := newTestRef()
	obj := filepath.Join(outDir, "a.o")

	require.NoError(t, os.WriteFile("b.cc", []byte{}, 0o644))
	defer os.Remove("b.cc")

	bp := &plan.BuildPlan{Steps: []plan.Step{
		{Kind: plan.StepCompile, Compile: &plan.CompileStep{
			ID: "compile1", Target: ref, SrcFile: "b.cc", ObjOut: obj,
			Toolchain: toolchain.CompileInput{SrcFile: "b.cc", ObjOut: obj},
		}},
	}}
	store, err := fingerprint.Load(filepath.Join(outDir, "fingerprints.json"))
	require.NoError(t, err)

	exec := &Executor{Plan: bp, Toolchain: touchToolchain{}, Store: store, ToolchainFP: "tcfp", Parallelism: 1}
	require.NoError(t, exec.Run(context.Background()))

	first, err := os.Stat(obj)
	require.NoError(t, err)

	exec2 := &Executor{Plan: bp, Toolchain: touchToolchain{}, Store: store, ToolchainFP: "tcfp", Parallelism: 1}
	require.NoError(t, exec2.Run(context.Background()))

	second, err := os.Stat(obj)
	require.NoError(t, err)
	assert.Equal(t, first.ModTime(), second.ModTime(), "unchanged fingerprint with existing output must skip recompilation")
}

func TestExecutorStopsOnFirstError(t *testing.T) {
	outDir := t.TempDir()
	ref := newTestRef()

	bp := &plan.BuildPlan{Steps: []plan.Step{
		{Kind: plan.StepExternal, External: &plan.ExternalStep{
			ID: "ext1", Target: ref, Command: []string{"/bin/false"},
		}},
		{Kind: plan.StepArchive, Archive: &plan.ArchiveStep{
			ID: "archive1", Target: ref, ArchiveOut: filepath.Join(outDir, "lib.a"),
		}},
	}}
	store, err := fingerprint.Load(filepath.Join(outDir, "fingerprints.json"))
	require.NoError(t, err)

	exec := &Executor{Plan: bp, Toolchain: touchToolchain{}, Store: store, ToolchainFP: "tcfp", Parallelism: 1}
	err = exec.Run(context.Background())
	require.Error(t, err)

	var extErr *core.ExternalRecipeFailedError
	assert.ErrorAs(t, err, &extErr)
	assert.NoFileExists(t, filepath.Join(outDir, "lib.a"), "the archive step after a failing external step must never run")
}

func TestRunCommandTerminatesHungSubprocessOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err := runCommand(ctx, toolchain.Command{Program: "/bin/sleep", Args: []string{"30"}})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, CancelGracePeriod, "a subprocess that responds to SIGTERM must not be waited on for the full grace period")
}
