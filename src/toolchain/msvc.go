package toolchain

import (
	"github.com/harbour-build/harbour/src/core"
)

// MSVCToolchain covers the Visual C++ compiler and linker (spec §4.4).
type MSVCToolchain struct {
	CLPath  string
	LibPath string // lib.exe, for archiving
	version string
}

func (t *MSVCToolchain) Family() string        { return "msvc" }
func (t *MSVCToolchain) VersionString() string { return t.version }

func (t *MSVCToolchain) Compile(in CompileInput) Command {
	args := []string{"/c", in.SrcFile, "/Fo" + in.ObjOut}
	if in.Std != "" {
		args = append(args, "/std:"+in.Std)
	}
	for _, d := range in.IncludeDirs {
		args = append(args, "/I"+d)
	}
	for _, d := range in.Defines {
		args = append(args, "/D"+d)
	}
	args = append(args, msvcOptFlags(in.Profile)...)
	args = append(args, msvcAbiFlags(in.Abi)...)
	args = append(args, in.CFlags...)
	return Command{Program: t.CLPath, Args: args}
}

func msvcOptFlags(p ProfileSettings) []string {
	var args []string
	switch p.OptLevel {
	case "0", "":
		args = append(args, "/Od")
	default:
		args = append(args, "/O"+p.OptLevel)
	}
	if p.DebugInfo {
		args = append(args, "/Z7")
	}
	return args
}

func msvcAbiFlags(abi core.AbiToggles) []string {
	var args []string
	switch abi.MSVCRuntime {
	case core.MSVCRuntimeDynamic:
		args = append(args, "/MD")
	case core.MSVCRuntimeStatic:
		args = append(args, "/MT")
	}
	if abi.Exceptions == nil || *abi.Exceptions {
		args = append(args, "/EHsc")
	}
	return args
}

func (t *MSVCToolchain) Archive(in ArchiveInput) Command {
	args := append([]string{"/OUT:" + in.ArchiveOut}, in.Objs...)
	return Command{Program: t.LibPath, Args: args}
}

func (t *MSVCToolchain) Link(in LinkInput) Command {
	args := append([]string{}, in.Objs...)
	if in.Kind == core.TargetSharedLib {
		args = append(args, "/LD")
	}
	args = append(args, msvcOptFlags(in.Profile)...)
	args = append(args, "/link")
	args = append(args, in.Archives...)
	for _, lib := range in.Libs {
		args = append(args, msvcLibFlag(lib))
	}
	args = append(args, in.LDFlags...)
	args = append(args, "/OUT:"+in.ImageOut)
	return Command{Program: t.CLPath, Args: args}
}

func msvcLibFlag(lib core.LibRef) string {
	switch lib.Kind {
	case core.LibSystem:
		return lib.Name + ".lib"
	case core.LibPath, core.LibPackageTarget:
		return lib.Name
	default:
		return lib.Name
	}
}
