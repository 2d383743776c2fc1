package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harbour-build/harbour/src/core"
	"github.com/harbour-build/harbour/src/resolve"
)

func newTestGraph(t *testing.T, nodes map[core.PackageId]core.Package, edges map[core.PackageId][]core.PackageId, root core.PackageId) *resolve.Resolve {
	t.Helper()
	r, err := resolve.NewResolve(root, nodes, edges)
	require.NoError(t, err)
	return r
}

func TestResolverPropagatesPublicIncludeDirsTransitively(t *testing.T) {
	fmtID := core.NewPackageId("fmtlib", core.MustParseVersion("9.1.0"), core.NewRegistrySourceId(""))
	appID := core.NewPackageId("app", core.MustParseVersion("1.0.0"), core.NewRegistrySourceId(""))

	fmtPkg := core.Package{
		ID: fmtID,
		Manifest: core.Manifest{
			Targets: map[string]core.Target{
				"fmt": {
					Name: "fmt",
					Kind: core.TargetStaticLib,
					Surface: core.Surface{
						Compile: core.CompileSurface{
							Public: core.CompileHalf{IncludeDirs: []string{"/fmt/include"}},
						},
					},
				},
			},
		},
	}
	appPkg := core.Package{
		ID: appID,
		Manifest: core.Manifest{
			Targets: map[string]core.Target{
				"main": {
					Name: "main",
					Kind: core.TargetExe,
					Deps: []core.TargetDep{
						{DepPackage: "fmtlib", TargetName: "fmt", CompileVisibility: core.Public, LinkVisibility: core.Public},
					},
				},
			},
		},
	}

	nodes := map[core.PackageId]core.Package{appID: appPkg, fmtID: fmtPkg}
	edges := map[core.PackageId][]core.PackageId{appID: {fmtID}}
	graph := newTestGraph(t, nodes, edges, appID)

	r := NewResolver(graph, BuildContext{OS: "linux", Arch: "amd64", Compiler: "gcc"})
	resolved, err := r.Resolve(TargetRef{Package: appID, Target: "main"})
	require.NoError(t, err)

	var dirs []string
	for _, d := range resolved.IncludeDirs {
		dirs = append(dirs, d.Value)
	}
	assert.Contains(t, dirs, "/fmt/include")
}

func TestResolverPrivateDepsDoNotExport(t *testing.T) {
	depID := core.NewPackageId("internal", core.MustParseVersion("1.0.0"), core.NewRegistrySourceId(""))
	libID := core.NewPackageId("lib", core.MustParseVersion("1.0.0"), core.NewRegistrySourceId(""))
	consumerID := core.NewPackageId("consumer", core.MustParseVersion("1.0.0"), core.NewRegistrySourceId(""))

	depPkg := core.Package{
		ID: depID,
		Manifest: core.Manifest{
			Targets: map[string]core.Target{
				"internal": {
					Name: "internal",
					Kind: core.TargetStaticLib,
					Surface: core.Surface{
						Compile: core.CompileSurface{Public: core.CompileHalf{IncludeDirs: []string{"/internal/include"}}},
					},
				},
			},
		},
	}
	libPkg := core.Package{
		ID: libID,
		Manifest: core.Manifest{
			Targets: map[string]core.Target{
				"lib": {
					Name: "lib",
					Kind: core.TargetStaticLib,
					Deps: []core.TargetDep{
						{DepPackage: "internal", TargetName: "internal", CompileVisibility: core.Private, LinkVisibility: core.Private},
					},
				},
			},
		},
	}
	consumerPkg := core.Package{
		ID: consumerID,
		Manifest: core.Manifest{
			Targets: map[string]core.Target{
				"main": {
					Name: "main",
					Kind: core.TargetExe,
					Deps: []core.TargetDep{
						{DepPackage: "lib", TargetName: "lib", CompileVisibility: core.Public, LinkVisibility: core.Public},
					},
				},
			},
		},
	}

	nodes := map[core.PackageId]core.Package{consumerID: consumerPkg, libID: libPkg, depID: depPkg}
	edges := map[core.PackageId][]core.PackageId{
		consumerID: {libID},
		libID:      {depID},
	}
	graph := newTestGraph(t, nodes, edges, consumerID)

	r := NewResolver(graph, BuildContext{OS: "linux", Arch: "amd64", Compiler: "gcc"})
	resolved, err := r.Resolve(TargetRef{Package: consumerID, Target: "main"})
	require.NoError(t, err)

	for _, d := range resolved.IncludeDirs {
		assert.NotEqual(t, "/internal/include", d.Value, "private dep's include dirs must not reach transitive consumers")
	}
}

func TestResolverAbiMismatchErrors(t *testing.T) {
	yes := true
	no := false
	aID := core.NewPackageId("a", core.MustParseVersion("1.0.0"), core.NewRegistrySourceId(""))
	bID := core.NewPackageId("b", core.MustParseVersion("1.0.0"), core.NewRegistrySourceId(""))
	appID := core.NewPackageId("app", core.MustParseVersion("1.0.0"), core.NewRegistrySourceId(""))

	aPkg := core.Package{ID: aID, Manifest: core.Manifest{Targets: map[string]core.Target{
		"a": {Name: "a", Kind: core.TargetStaticLib, Surface: core.Surface{Abi: core.AbiToggles{Exceptions: &yes}}},
	}}}
	bPkg := core.Package{ID: bID, Manifest: core.Manifest{Targets: map[string]core.Target{
		"b": {Name: "b", Kind: core.TargetStaticLib, Surface: core.Surface{Abi: core.AbiToggles{Exceptions: &no}}},
	}}}
	appPkg := core.Package{ID: appID, Manifest: core.Manifest{Targets: map[string]core.Target{
		"main": {Name: "main", Kind: core.TargetExe, Deps: []core.TargetDep{
			{DepPackage: "a", TargetName: "a", CompileVisibility: core.Public, LinkVisibility: core.Public},
			{DepPackage: "b", TargetName: "b", CompileVisibility: core.Public, LinkVisibility: core.Public},
		}},
	}}}

	nodes := map[core.PackageId]core.Package{appID: appPkg, aID: aPkg, bID: bPkg}
	edges := map[core.PackageId][]core.PackageId{appID: {aID, bID}}
	graph := newTestGraph(t, nodes, edges, appID)

	r := NewResolver(graph, BuildContext{})
	_, err := r.Resolve(TargetRef{Package: appID, Target: "main"})
	assert.Error(t, err)
}

func TestResolverConditionalSurfaceAppliesOnlyWhenMatched(t *testing.T) {
	appID := core.NewPackageId("app", core.MustParseVersion("1.0.0"), core.NewRegistrySourceId(""))
	appPkg := core.Package{ID: appID, Manifest: core.Manifest{Targets: map[string]core.Target{
		"main": {
			Name: "main",
			Kind: core.TargetExe,
			Surface: core.Surface{
				Conditionals: []core.ConditionalSurface{
					{
						Match: core.ConditionMatch{OS: []string{"windows"}},
						Patch: core.SurfacePatch{Compile: core.CompileSurface{Public: core.CompileHalf{Defines: []core.Define{{Name: "WIN32"}}}}},
					},
				},
			},
		},
	}}}
	nodes := map[core.PackageId]core.Package{appID: appPkg}
	graph := newTestGraph(t, nodes, nil, appID)

	r := NewResolver(graph, BuildContext{OS: "linux"})
	resolved, err := r.Resolve(TargetRef{Package: appID, Target: "main"})
	require.NoError(t, err)
	assert.Empty(t, resolved.Defines)

	r2 := NewResolver(graph, BuildContext{OS: "windows"})
	resolved2, err := r2.Resolve(TargetRef{Package: appID, Target: "main"})
	require.NoError(t, err)
	require.Len(t, resolved2.Defines, 1)
	assert.Equal(t, "WIN32", resolved2.Defines[0].Define.Name)
}

func TestResolverConditionalSurfacePublicHalfPropagatesToDependents(t *testing.T) {
	libID := core.NewPackageId("lib", core.MustParseVersion("1.0.0"), core.NewRegistrySourceId(""))
	appID := core.NewPackageId("app", core.MustParseVersion("1.0.0"), core.NewRegistrySourceId(""))

	libPkg := core.Package{
		ID: libID,
		Manifest: core.Manifest{Targets: map[string]core.Target{
			"lib": {
				Name: "lib",
				Kind: core.TargetStaticLib,
				Surface: core.Surface{
					Conditionals: []core.ConditionalSurface{
						{
							Match: core.ConditionMatch{OS: []string{"linux"}},
							Patch: core.SurfacePatch{
								Compile: core.CompileSurface{
									Public:  core.CompileHalf{Defines: []core.Define{{Name: "LIB_LINUX"}}},
									Private: core.CompileHalf{Defines: []core.Define{{Name: "LIB_LINUX_INTERNAL"}}},
								},
							},
						},
					},
				},
			},
		}},
	}
	appPkg := core.Package{
		ID: appID,
		Manifest: core.Manifest{Targets: map[string]core.Target{
			"main": {
				Name: "main",
				Kind: core.TargetExe,
				Deps: []core.TargetDep{
					{DepPackage: "lib", TargetName: "lib", CompileVisibility: core.Public, LinkVisibility: core.Public},
				},
			},
		}},
	}

	nodes := map[core.PackageId]core.Package{appID: appPkg, libID: libPkg}
	edges := map[core.PackageId][]core.PackageId{appID: {libID}}
	graph := newTestGraph(t, nodes, edges, appID)

	r := NewResolver(graph, BuildContext{OS: "linux"})
	resolved, err := r.Resolve(TargetRef{Package: appID, Target: "main"})
	require.NoError(t, err)

	var names []string
	for _, d := range resolved.Defines {
		names = append(names, d.Define.Name)
	}
	assert.Contains(t, names, "LIB_LINUX", "a matched conditional patch's public half must propagate to dependents")
	assert.NotContains(t, names, "LIB_LINUX_INTERNAL", "a matched conditional patch's private half must stay local to its own target")
}
