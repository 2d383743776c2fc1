package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harbour-build/harbour/src/core"
	"github.com/harbour-build/harbour/src/resolve"
	"github.com/harbour-build/harbour/src/surface"
	"github.com/harbour-build/harbour/src/toolchain"
)

type fakeToolchain struct{}

func (fakeToolchain) Family() string        { return "gcc" }
func (fakeToolchain) VersionString() string { return "12.2.0" }
func (fakeToolchain) Compile(in toolchain.CompileInput) toolchain.Command {
	return toolchain.Command{Program: "cc", Args: []string{in.SrcFile, "-o", in.ObjOut}}
}
func (fakeToolchain) Archive(in toolchain.ArchiveInput) toolchain.Command {
	return toolchain.Command{Program: "ar"}
}
func (fakeToolchain) Link(in toolchain.LinkInput) toolchain.Command {
	return toolchain.Command{Program: "cc"}
}

func TestPlannerProducesCompileAndLinkSteps(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.cc"), []byte("int main(){}"), 0o644))

	appID := core.NewPackageId("app", core.MustParseVersion("1.0.0"), core.NewPathSourceId(root))
	pkg := core.Package{
		ID:   appID,
		Root: root,
		Manifest: core.Manifest{
			Targets: map[string]core.Target{
				"main": {Name: "main", Kind: core.TargetExe, Language: core.LangCpp, CppStd: "17", Sources: []string{"*.cc"}},
			},
		},
	}
	graph, err := resolve.NewResolve(appID, map[core.PackageId]core.Package{appID: pkg}, nil)
	require.NoError(t, err)

	resolver := surface.NewResolver(graph, surface.BuildContext{})
	p := &Planner{Graph: graph, Resolver: resolver, Toolchain: fakeToolchain{}, OutDir: t.TempDir()}

	bp, err := p.Plan(surface.TargetRef{Package: appID, Target: "main"})
	require.NoError(t, err)

	var kinds []StepKind
	for _, s := range bp.Steps {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []StepKind{StepCompile, StepLink}, kinds)
}

func TestPlannerHeaderOnlyTargetProducesNoSteps(t *testing.T) {
	root := t.TempDir()
	appID := core.NewPackageId("app", core.MustParseVersion("1.0.0"), core.NewPathSourceId(root))
	pkg := core.Package{
		ID:   appID,
		Root: root,
		Manifest: core.Manifest{
			Targets: map[string]core.Target{
				"hdrs": {Name: "hdrs", Kind: core.TargetHeaderOnly},
			},
		},
	}
	graph, err := resolve.NewResolve(appID, map[core.PackageId]core.Package{appID: pkg}, nil)
	require.NoError(t, err)

	resolver := surface.NewResolver(graph, surface.BuildContext{})
	p := &Planner{Graph: graph, Resolver: resolver, Toolchain: fakeToolchain{}, OutDir: t.TempDir()}

	bp, err := p.Plan(surface.TargetRef{Package: appID, Target: "hdrs"})
	require.NoError(t, err)
	assert.Empty(t, bp.Steps)
}

func TestPlannerNoSourcesErrors(t *testing.T) {
	root := t.TempDir()
	appID := core.NewPackageId("app", core.MustParseVersion("1.0.0"), core.NewPathSourceId(root))
	pkg := core.Package{
		ID:   appID,
		Root: root,
		Manifest: core.Manifest{
			Targets: map[string]core.Target{
				"main": {Name: "main", Kind: core.TargetExe, Sources: []string{"*.cc"}},
			},
		},
	}
	graph, err := resolve.NewResolve(appID, map[core.PackageId]core.Package{appID: pkg}, nil)
	require.NoError(t, err)

	resolver := surface.NewResolver(graph, surface.BuildContext{})
	p := &Planner{Graph: graph, Resolver: resolver, Toolchain: fakeToolchain{}, OutDir: t.TempDir()}

	_, err = p.Plan(surface.TargetRef{Package: appID, Target: "main"})
	require.Error(t, err)
	var noSources *core.NoSourcesError
	assert.ErrorAs(t, err, &noSources)
}

func TestPlannerExternalRecipeProducesNoCompileSteps(t *testing.T) {
	root := t.TempDir()
	appID := core.NewPackageId("app", core.MustParseVersion("1.0.0"), core.NewPathSourceId(root))
	pkg := core.Package{
		ID:   appID,
		Root: root,
		Manifest: core.Manifest{
			Targets: map[string]core.Target{
				"vendored": {
					Name: "vendored", Kind: core.TargetStaticLib, Recipe: core.RecipeCMake,
					RecipeCommand:   []string{"cmake", "--build", "."},
					DeclaredOutputs: []string{"libvendored.a"},
				},
			},
		},
	}
	graph, err := resolve.NewResolve(appID, map[core.PackageId]core.Package{appID: pkg}, nil)
	require.NoError(t, err)

	resolver := surface.NewResolver(graph, surface.BuildContext{})
	p := &Planner{Graph: graph, Resolver: resolver, Toolchain: fakeToolchain{}, OutDir: t.TempDir()}

	bp, err := p.Plan(surface.TargetRef{Package: appID, Target: "vendored"})
	require.NoError(t, err)
	require.Len(t, bp.Steps, 1)
	assert.Equal(t, StepExternal, bp.Steps[0].Kind)
}
