package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harbour-build/harbour/src/core"
)

func writeManifest(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

const sampleManifest = `
[package]
name = "app"
version = "1.2.3"

[dependencies.fmtlib]
version = "^9.0"
git = "https://example.com/fmtlib.git"
tag = "9.1.0"

[targets.main]
kind = "exe"
language = "cpp"
cpp_std = "17"
sources = ["src/*.cc"]

[targets.main.public]
include_dirs = ["include"]
defines = ["RELEASE", "VERSION=3"]
libs = ["pthread", "-lm", "-framework CoreFoundation", "pkg:fmtlib/fmt"]

[[targets.main.deps]]
`

func TestLoadManifestParsesPackageAndDependency(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "Harbour.toml", sampleManifest)

	m, err := loadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, "app", m.Package.Name)
	assert.Equal(t, "1.2.3", m.Package.Version.String())

	dep, ok := m.Dependencies["fmtlib"]
	require.True(t, ok)
	assert.Equal(t, core.SourceGit, dep.Source.Kind)
	assert.Equal(t, core.GitTag, dep.Source.GitRef.Kind)
	assert.Equal(t, "9.1.0", dep.Source.GitRef.Value)
}

func TestLoadManifestConvertsTargetSurface(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "Harbour.toml", sampleManifest)

	m, err := loadManifest(dir)
	require.NoError(t, err)
	target, ok := m.Targets["main"]
	require.True(t, ok)
	assert.Equal(t, core.TargetExe, target.Kind)
	assert.Equal(t, core.LangCpp, target.Language)
	assert.Equal(t, []string{"include"}, target.Surface.Compile.Public.IncludeDirs)

	libs := target.Surface.Link.Public.Libs
	require.Len(t, libs, 4)
	assert.Equal(t, core.LibRef{Kind: core.LibSystem, Name: "pthread"}, libs[0])
	assert.Equal(t, core.LibRef{Kind: core.LibSystem, Name: "m"}, libs[1])
	assert.Equal(t, core.LibRef{Kind: core.LibFramework, Name: "CoreFoundation"}, libs[2])
	assert.Equal(t, core.LibRef{Kind: core.LibPackageTarget, Name: "fmtlib", Target: "fmt"}, libs[3])
}

func TestFindManifestFilePrefersHarbourOverHarbor(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "Harbor.toml", "[package]\nname=\"x\"\nversion=\"1.0.0\"\n")
	writeManifest(t, dir, "Harbour.toml", "[package]\nname=\"y\"\nversion=\"1.0.0\"\n")

	path, err := findManifestFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Harbour.toml"), path)
}

func TestFindManifestFileFallsBackToHarbor(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "Harbor.toml", "[package]\nname=\"x\"\nversion=\"1.0.0\"\n")

	path, err := findManifestFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Harbor.toml"), path)
}

func TestFindManifestFileMissingErrors(t *testing.T) {
	_, err := findManifestFile(t.TempDir())
	assert.Error(t, err)
}

func TestLoadManifestInvalidVersionErrors(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "Harbour.toml", "[package]\nname=\"app\"\nversion=\"not-a-version\"\n")

	_, err := loadManifest(dir)
	require.Error(t, err)
	var invalid *core.InvalidValueError
	assert.ErrorAs(t, err, &invalid)
}

func TestLoadManifestMalformedTomlIsParseError(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "Harbour.toml", "this is not valid toml {{{")

	_, err := loadManifest(dir)
	require.Error(t, err)
	var parseErr *core.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestConvertTargetHeaderOnlyWithSourcesErrors(t *testing.T) {
	_, err := convertTarget("hdrs", tomlTarget{Kind: "header-only", Sources: []string{"*.h"}}, "Harbour.toml")
	require.Error(t, err)
	var conflict *core.TargetConflictsWithKindError
	assert.ErrorAs(t, err, &conflict)
}

func TestConvertTargetRecipeCommandLineIsShlexSplit(t *testing.T) {
	target, err := convertTarget("vendored", tomlTarget{
		Kind:              "static-lib",
		Recipe:            "cmake",
		RecipeCommandLine: `cmake --build . -- -j4`,
	}, "Harbour.toml")
	require.NoError(t, err)
	assert.Equal(t, []string{"cmake", "--build", ".", "--", "-j4"}, target.RecipeCommand)
}

func TestConvertTargetExplicitRecipeCommandWinsOverCommandLine(t *testing.T) {
	target, err := convertTarget("vendored", tomlTarget{
		Kind:              "static-lib",
		Recipe:            "cmake",
		RecipeCommand:     []string{"cmake", "--build", "."},
		RecipeCommandLine: "ignored --flag",
	}, "Harbour.toml")
	require.NoError(t, err)
	assert.Equal(t, []string{"cmake", "--build", "."}, target.RecipeCommand)
}

func TestGitReferenceFromPrecedence(t *testing.T) {
	assert.Equal(t, core.GitRev, gitReferenceFrom(tomlDependency{Rev: "abc", Tag: "v1", Branch: "main"}).Kind)
	assert.Equal(t, core.GitTag, gitReferenceFrom(tomlDependency{Tag: "v1", Branch: "main"}).Kind)
	assert.Equal(t, core.GitBranch, gitReferenceFrom(tomlDependency{Branch: "main"}).Kind)
	assert.Equal(t, core.GitDefaultBranch, gitReferenceFrom(tomlDependency{}).Kind)
}

func TestParseVisibilityDefaultsToPrivate(t *testing.T) {
	assert.Equal(t, core.Public, parseVisibility("public"))
	assert.Equal(t, core.Private, parseVisibility("private"))
	assert.Equal(t, core.Private, parseVisibility(""))
}
