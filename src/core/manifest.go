package core

// Language is the source language of a native target.
type Language int

const (
	LangC Language = iota
	LangCpp
)

func (l Language) String() string {
	if l == LangCpp {
		return "cpp"
	}
	return "c"
}

// TargetKind distinguishes the artifact kinds a Target can produce.
type TargetKind int

const (
	TargetExe TargetKind = iota
	TargetStaticLib
	TargetSharedLib
	TargetHeaderOnly
)

func (k TargetKind) String() string {
	switch k {
	case TargetExe:
		return "exe"
	case TargetStaticLib:
		return "static-lib"
	case TargetSharedLib:
		return "shared-lib"
	case TargetHeaderOnly:
		return "header-only"
	default:
		return "unknown"
	}
}

// Recipe selects how a target's outputs are produced.
type Recipe int

const (
	RecipeNative Recipe = iota
	RecipeCMake
	RecipeCustom
)

func (r Recipe) String() string {
	switch r {
	case RecipeNative:
		return "native"
	case RecipeCMake:
		return "cmake"
	case RecipeCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// SourceSpec is the requested source of a dependency, as written in the
// manifest, before it is resolved against a SourceCache. Exactly one of
// Path, Git or Registry describes the variant; Kind says which.
type SourceSpec struct {
	Kind     SourceKind
	Path     string
	GitURL   string
	GitRef   GitReference
	Registry string
}

// Dependency is one entry in a Manifest's dependency map.
type Dependency struct {
	Name        string
	Requirement Requirement
	Source      SourceSpec
	Optional    bool
	Features    []string
}

// Target is one entry in a Manifest's target map.
type Target struct {
	Name          string
	Kind          TargetKind
	Language      Language
	CStd          string
	CppStd        string
	Sources       []string // glob patterns, relative to the package root
	PublicHeaders []string // glob patterns, relative to the package root
	Surface       Surface
	Deps          []TargetDep
	Recipe        Recipe

	// RecipeCommand and RecipeWorkdir apply when Recipe is CMake or Custom.
	RecipeCommand []string
	RecipeWorkdir string
	// DeclaredOutputs lists the files an External recipe must produce.
	DeclaredOutputs []string
}

// BuildConfig is a Manifest's optional workspace-wide build defaults.
type BuildConfig struct {
	DefaultCStd   string
	DefaultCppStd string
	CppRuntime    string // "libstdc++" or "libc++"
	Exceptions    bool
	RTTI          bool
}

// WorkspaceConfig declares a manifest as the root of a multi-package workspace.
type WorkspaceConfig struct {
	Members []string // path patterns relative to the workspace root
}

// Profile is a named set of build settings (e.g. "debug", "release").
type Profile struct {
	Name       string
	OptLevel   string
	DebugInfo  bool
	Sanitizers []string
	Defines    []Define
}

// PackageMeta is the package-level metadata block of a Manifest.
type PackageMeta struct {
	Name    string
	Version Version
}

// Manifest is the fully-loaded, typed contents of a package's Harbour.toml.
// Manifest values are read-only once constructed; this package never
// deserializes one (spec §1 Out of scope), it only operates on values handed
// in by the loader.
type Manifest struct {
	Package      PackageMeta
	Dependencies map[string]Dependency
	Targets      map[string]Target
	Workspace    *WorkspaceConfig
	Build        *BuildConfig
	Profiles     map[string]Profile
}
