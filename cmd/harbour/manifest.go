package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/shlex"

	"github.com/harbour-build/harbour/src/core"
)

// Manifest deserialization is explicitly out of scope for the core module
// (spec §1); this file is the CLI's own narrow, pragmatic loader satisfying
// source.ManifestLoader. It supports the shorthand surface syntax
// (`[targets.X.public]` / `[targets.X.private]`) and defines written as
// plain "NAME" / "NAME=VALUE" strings; the full nested `surface.compile.*`
// form and the `{name, value}` define object are not implemented here.

type tomlManifest struct {
	Package struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
	Dependencies map[string]tomlDependency `toml:"dependencies"`
	Targets      map[string]tomlTarget     `toml:"targets"`
	Workspace    *struct {
		Members []string `toml:"members"`
	} `toml:"workspace"`
	Build *struct {
		DefaultCStd   string `toml:"default_c_std"`
		DefaultCppStd string `toml:"default_cpp_std"`
		CppRuntime    string `toml:"cpp_runtime"`
		Exceptions    bool   `toml:"exceptions"`
		RTTI          bool   `toml:"rtti"`
	} `toml:"build"`
}

type tomlDependency struct {
	Version  string   `toml:"version"`
	Path     string   `toml:"path"`
	Git      string   `toml:"git"`
	Branch   string   `toml:"branch"`
	Tag      string   `toml:"tag"`
	Rev      string   `toml:"rev"`
	Registry string   `toml:"registry"`
	Optional bool     `toml:"optional"`
	Features []string `toml:"features"`
}

type tomlHalf struct {
	IncludeDirs []string `toml:"include_dirs"`
	Defines     []string `toml:"defines"`
	CFlags      []string `toml:"cflags"`
	Libs        []string `toml:"libs"`
	LDFlags     []string `toml:"ldflags"`
	Frameworks  []string `toml:"frameworks"`
}

type tomlTargetDep struct {
	Package           string `toml:"package"`
	Target            string `toml:"target"`
	CompileVisibility string `toml:"compile_visibility"`
	LinkVisibility    string `toml:"link_visibility"`
}

type tomlTarget struct {
	Kind          string          `toml:"kind"`
	Language      string          `toml:"language"`
	CStd          string          `toml:"c_std"`
	CppStd        string          `toml:"cpp_std"`
	Sources       []string        `toml:"sources"`
	PublicHeaders []string        `toml:"public_headers"`
	Public        tomlHalf        `toml:"public"`
	Private       tomlHalf        `toml:"private"`
	Deps          []tomlTargetDep `toml:"deps"`
	Recipe        string          `toml:"recipe"`
	// RecipeCommand is the array form ("cmake", "--build", "."); RecipeCommandLine
	// is a single shell-style string split with shlex, for manifests that would
	// rather write "cmake --build . -- -j4" than a quoted array.
	RecipeCommand     []string `toml:"recipe_command"`
	RecipeCommandLine string   `toml:"recipe_command_line"`
	RecipeWorkdir     string   `toml:"recipe_workdir"`
	DeclaredOutputs   []string `toml:"declared_outputs"`
}

// loadManifest implements source.ManifestLoader against Harbour.toml /
// Harbor.toml under packageRoot.
func loadManifest(packageRoot string) (core.Manifest, error) {
	path, err := findManifestFile(packageRoot)
	if err != nil {
		return core.Manifest{}, err
	}

	var doc tomlManifest
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return core.Manifest{}, &core.ParseError{Prov: core.Provenance{Operation: "manifest-load", File: path}, Cause: err}
	}

	version, err := core.ParseVersion(doc.Package.Version)
	if err != nil {
		return core.Manifest{}, &core.InvalidValueError{
			Prov:  core.Provenance{Operation: "manifest-load", File: path},
			Field: "package.version",
			Value: doc.Package.Version,
		}
	}

	m := core.Manifest{
		Package:      core.PackageMeta{Name: doc.Package.Name, Version: version},
		Dependencies: map[string]core.Dependency{},
		Targets:      map[string]core.Target{},
	}

	for name, d := range doc.Dependencies {
		dep, err := convertDependency(name, d, path)
		if err != nil {
			return core.Manifest{}, err
		}
		m.Dependencies[name] = dep
	}

	for name, t := range doc.Targets {
		target, err := convertTarget(name, t, path)
		if err != nil {
			return core.Manifest{}, err
		}
		m.Targets[name] = target
	}

	if doc.Workspace != nil {
		m.Workspace = &core.WorkspaceConfig{Members: doc.Workspace.Members}
	}
	if doc.Build != nil {
		m.Build = &core.BuildConfig{
			DefaultCStd:   doc.Build.DefaultCStd,
			DefaultCppStd: doc.Build.DefaultCppStd,
			CppRuntime:    doc.Build.CppRuntime,
			Exceptions:    doc.Build.Exceptions,
			RTTI:          doc.Build.RTTI,
		}
	}
	return m, nil
}

func findManifestFile(root string) (string, error) {
	for _, name := range []string{"Harbour.toml", "Harbor.toml"} {
		p := filepath.Join(root, name)
		if fileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("no Harbour.toml or Harbor.toml found under %s", root)
}

func convertDependency(name string, d tomlDependency, manifestPath string) (core.Dependency, error) {
	req, err := core.ParseRequirement(d.Version)
	if err != nil {
		return core.Dependency{}, &core.InvalidValueError{
			Prov:  core.Provenance{Operation: "manifest-load", File: manifestPath},
			Field: fmt.Sprintf("dependencies.%s.version", name),
			Value: d.Version,
		}
	}

	spec := core.SourceSpec{}
	switch {
	case d.Path != "":
		spec.Kind = core.SourcePath
		spec.Path = d.Path
	case d.Git != "":
		spec.Kind = core.SourceGit
		spec.GitURL = d.Git
		spec.GitRef = gitReferenceFrom(d)
	default:
		spec.Kind = core.SourceRegistry
		spec.Registry = d.Registry
	}

	return core.Dependency{
		Name:        name,
		Requirement: req,
		Source:      spec,
		Optional:    d.Optional,
		Features:    d.Features,
	}, nil
}

func gitReferenceFrom(d tomlDependency) core.GitReference {
	switch {
	case d.Rev != "":
		return core.GitReference{Kind: core.GitRev, Value: d.Rev}
	case d.Tag != "":
		return core.GitReference{Kind: core.GitTag, Value: d.Tag}
	case d.Branch != "":
		return core.GitReference{Kind: core.GitBranch, Value: d.Branch}
	default:
		return core.GitReference{Kind: core.GitDefaultBranch}
	}
}

func convertTarget(name string, t tomlTarget, manifestPath string) (core.Target, error) {
	kind, err := parseTargetKind(t.Kind)
	if err != nil {
		return core.Target{}, &core.InvalidValueError{
			Prov:  core.Provenance{Operation: "manifest-load", File: manifestPath, Target: name},
			Field: "kind",
			Value: t.Kind,
		}
	}
	lang := core.LangC
	if t.Language == "cpp" {
		lang = core.LangCpp
	}
	recipe := core.RecipeNative
	switch t.Recipe {
	case "cmake":
		recipe = core.RecipeCMake
	case "custom":
		recipe = core.RecipeCustom
	}

	if kind == core.TargetHeaderOnly && len(t.Sources) > 0 {
		return core.Target{}, &core.TargetConflictsWithKindError{
			Prov:   core.Provenance{Operation: "manifest-load", File: manifestPath, Target: name},
			Kind:   kind,
			Reason: "declares sources",
		}
	}

	var deps []core.TargetDep
	for _, d := range t.Deps {
		deps = append(deps, core.TargetDep{
			DepPackage:        d.Package,
			TargetName:        d.Target,
			CompileVisibility: parseVisibility(d.CompileVisibility),
			LinkVisibility:    parseVisibility(d.LinkVisibility),
		})
	}

	recipeCommand := t.RecipeCommand
	if len(recipeCommand) == 0 && t.RecipeCommandLine != "" {
		split, err := shlex.Split(t.RecipeCommandLine)
		if err != nil {
			return core.Target{}, &core.InvalidValueError{
				Prov:  core.Provenance{Operation: "manifest-load", File: manifestPath, Target: name},
				Field: "recipe_command_line",
				Value: t.RecipeCommandLine,
			}
		}
		recipeCommand = split
	}

	return core.Target{
		Name:          name,
		Kind:          kind,
		Language:      lang,
		CStd:          t.CStd,
		CppStd:        t.CppStd,
		Sources:       t.Sources,
		PublicHeaders: t.PublicHeaders,
		Surface: core.Surface{
			Compile: core.CompileSurface{
				Public:  convertCompileHalf(t.Public),
				Private: convertCompileHalf(t.Private),
			},
			Link: core.LinkSurface{
				Public:  convertLinkHalf(t.Public),
				Private: convertLinkHalf(t.Private),
			},
		},
		Deps:            deps,
		Recipe:          recipe,
		RecipeCommand:   recipeCommand,
		RecipeWorkdir:   t.RecipeWorkdir,
		DeclaredOutputs: t.DeclaredOutputs,
	}, nil
}

func parseTargetKind(s string) (core.TargetKind, error) {
	switch s {
	case "exe", "":
		return core.TargetExe, nil
	case "static-lib":
		return core.TargetStaticLib, nil
	case "shared-lib":
		return core.TargetSharedLib, nil
	case "header-only":
		return core.TargetHeaderOnly, nil
	default:
		return 0, fmt.Errorf("unknown target kind %q", s)
	}
}

func parseVisibility(s string) core.Visibility {
	if s == "public" {
		return core.Public
	}
	return core.Private
}

func convertCompileHalf(h tomlHalf) core.CompileHalf {
	var defines []core.Define
	for _, raw := range h.Defines {
		if name, value, ok := strings.Cut(raw, "="); ok {
			defines = append(defines, core.Define{Name: name, Value: value, HasValue: true})
		} else {
			defines = append(defines, core.Define{Name: raw})
		}
	}
	return core.CompileHalf{IncludeDirs: h.IncludeDirs, Defines: defines, CFlags: h.CFlags}
}

func convertLinkHalf(h tomlHalf) core.LinkHalf {
	var libs []core.LibRef
	for _, raw := range h.Libs {
		libs = append(libs, parseLibRef(raw))
	}
	return core.LinkHalf{Libs: libs, LDFlags: h.LDFlags, Frameworks: h.Frameworks}
}

// parseLibRef accepts the string shorthands named in spec §6: "pthread",
// "-lm", "-framework X". Anything starting with "pkg:" names a dependency
// package's target as "pkg:<package>/<target>".
func parseLibRef(raw string) core.LibRef {
	switch {
	case strings.HasPrefix(raw, "-framework "):
		return core.LibRef{Kind: core.LibFramework, Name: strings.TrimPrefix(raw, "-framework ")}
	case strings.HasPrefix(raw, "-l"):
		return core.LibRef{Kind: core.LibSystem, Name: strings.TrimPrefix(raw, "-l")}
	case strings.HasPrefix(raw, "pkg:"):
		rest := strings.TrimPrefix(raw, "pkg:")
		pkg, target, _ := strings.Cut(rest, "/")
		return core.LibRef{Kind: core.LibPackageTarget, Name: pkg, Target: target}
	case strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../"):
		return core.LibRef{Kind: core.LibPath, Name: raw}
	default:
		return core.LibRef{Kind: core.LibSystem, Name: raw}
	}
}
