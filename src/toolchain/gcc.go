package toolchain

import (
	"github.com/harbour-build/harbour/src/core"
)

// GCCToolchain covers GCC, Clang, and Apple Clang: all three accept the same
// driver flag dialect (spec §4.4).
type GCCToolchain struct {
	CCPath  string
	CXXPath string
	ARPath  string
	family  string // "gcc", "clang", "apple-clang"
	version string
}

func (t *GCCToolchain) Family() string        { return t.family }
func (t *GCCToolchain) VersionString() string { return t.version }

func (t *GCCToolchain) driver(lang core.Language) string {
	if lang == core.LangCpp {
		return t.CXXPath
	}
	return t.CCPath
}

func (t *GCCToolchain) Compile(in CompileInput) Command {
	args := []string{"-c", in.SrcFile, "-o", in.ObjOut}
	if in.Std != "" {
		args = append(args, "-std="+in.Std)
	}
	for _, d := range in.IncludeDirs {
		args = append(args, "-I"+d)
	}
	for _, d := range in.Defines {
		args = append(args, "-D"+d)
	}
	args = append(args, optFlags(in.Profile)...)
	args = append(args, abiFlags(in.Abi)...)
	for _, s := range in.Profile.Sanitizers {
		args = append(args, "-fsanitize="+s)
	}
	if in.DepFileOut != "" {
		args = append(args, "-MMD", "-MF", in.DepFileOut)
	}
	args = append(args, in.CFlags...)
	return Command{Program: t.driver(in.Language), Args: args}
}

func optFlags(p ProfileSettings) []string {
	var args []string
	if p.OptLevel != "" {
		args = append(args, "-O"+p.OptLevel)
	}
	if p.DebugInfo {
		args = append(args, "-g")
	}
	return args
}

func abiFlags(abi core.AbiToggles) []string {
	var args []string
	if abi.PIC != nil && *abi.PIC {
		args = append(args, "-fPIC")
	}
	if abi.Visibility != "" {
		args = append(args, "-fvisibility="+abi.Visibility)
	}
	if abi.Exceptions != nil && !*abi.Exceptions {
		args = append(args, "-fno-exceptions")
	}
	if abi.RTTI != nil && !*abi.RTTI {
		args = append(args, "-fno-rtti")
	}
	if abi.CppStdlib == core.CppStdlibLibcxx {
		args = append(args, "-stdlib=libc++")
	} else if abi.CppStdlib == core.CppStdlibLibstdcxx {
		args = append(args, "-stdlib=libstdc++")
	}
	return args
}

func (t *GCCToolchain) Archive(in ArchiveInput) Command {
	args := append([]string{"rcs", in.ArchiveOut}, in.Objs...)
	return Command{Program: t.ARPath, Args: args}
}

func (t *GCCToolchain) Link(in LinkInput) Command {
	lang := core.LangCpp // the linker driver is always chosen as C++ capable when any archive might contain C++ object code
	args := append([]string{}, in.Objs...)
	if in.Kind == core.TargetSharedLib {
		args = append(args, "-shared")
	}
	args = append(args, optFlags(in.Profile)...)
	args = append(args, abiFlags(in.Abi)...)
	// Dependee-before-dependency ordering is standard GCC link ordering
	// (spec §4.6 Link order); in.Archives already arrives in that order.
	args = append(args, in.Archives...)
	for _, lib := range in.Libs {
		args = append(args, libFlag(lib)...)
	}
	args = append(args, in.LDFlags...)
	args = append(args, "-o", in.ImageOut)
	return Command{Program: t.driver(lang), Args: args}
}

// libFlag renders a LibRef for the GCC-style command line. LibPackageTarget
// entries are expected to have already been resolved to a concrete archive
// path by the build planner and folded into LinkInput.Archives; any that
// reach here (e.g. a dependency target with no native recipe) fall back to
// being passed through as a path.
func libFlag(lib core.LibRef) []string {
	switch lib.Kind {
	case core.LibSystem:
		return []string{"-l" + lib.Name}
	case core.LibFramework:
		return []string{"-framework", lib.Name}
	case core.LibPath, core.LibPackageTarget:
		return []string{lib.Name}
	default:
		return nil
	}
}
