package surface

import (
	"fmt"

	"github.com/harbour-build/harbour/src/core"
)

func provOf(ref TargetRef, slot string) core.Provenance {
	return core.Provenance{Operation: "surface", Package: ref.Package.Name, Target: ref.Target, Step: slot}
}

// mergeCompileHalf applies one CompileHalf's contributions onto dst, tagging
// each with ref/slot provenance (spec §4.3 Merge semantics).
func mergeCompileHalf(dst *ResolvedSurface, half core.CompileHalf, ref TargetRef, slot string) {
	prov := provOf(ref, slot)
	for _, dir := range half.IncludeDirs {
		addIncludeDir(dst, dir, prov)
	}
	for _, def := range half.Defines {
		addDefine(dst, def, prov)
	}
	for _, flag := range half.CFlags {
		dst.CFlags = append(dst.CFlags, Tagged[string]{Value: flag, Provenance: prov})
	}
}

// mergeLinkHalf applies one LinkHalf's contributions onto dst.
func mergeLinkHalf(dst *ResolvedSurface, half core.LinkHalf, ref TargetRef, slot string) {
	prov := provOf(ref, slot)
	for _, lib := range half.Libs {
		dst.Libs = append(dst.Libs, Tagged[core.LibRef]{Value: lib, Provenance: prov})
	}
	for _, flag := range half.LDFlags {
		dst.LDFlags = append(dst.LDFlags, Tagged[string]{Value: flag, Provenance: prov})
	}
	for _, fw := range half.Frameworks {
		addFramework(dst, fw, prov)
	}
}

// appendCompile merges an already-resolved dependency surface's compile
// contributions into dst, preserving dst's own dedup/override rules.
func appendCompile(dst *ResolvedSurface, src ResolvedSurface) {
	for _, d := range src.IncludeDirs {
		addIncludeDir(dst, d.Value, d.Provenance)
	}
	for _, d := range src.Defines {
		addDefine(dst, d.Define, d.Provenance)
	}
	dst.CFlags = append(dst.CFlags, src.CFlags...)
}

// appendLink merges an already-resolved dependency surface's link
// contributions into dst.
func appendLink(dst *ResolvedSurface, src ResolvedSurface) {
	dst.Libs = append(dst.Libs, src.Libs...)
	dst.LDFlags = append(dst.LDFlags, src.LDFlags...)
	for _, fw := range src.Frameworks {
		addFramework(dst, fw.Value, fw.Provenance)
	}
}

// addIncludeDir dedupes on absolute-path equality, preserving first
// insertion order (spec §4.3: "this controls header shadowing").
func addIncludeDir(dst *ResolvedSurface, dir string, prov core.Provenance) {
	for _, existing := range dst.IncludeDirs {
		if existing.Value == dir {
			return
		}
	}
	dst.IncludeDirs = append(dst.IncludeDirs, Tagged[string]{Value: dir, Provenance: prov})
}

// addDefine is keyed by name; a later same-name define overrides an earlier
// one, warning if the values differ (spec §4.3, resolving the Open Question
// in spec §9 as warn-and-override).
func addDefine(dst *ResolvedSurface, def core.Define, prov core.Provenance) {
	for i, existing := range dst.Defines {
		if existing.Define.Name != def.Name {
			continue
		}
		if existing.Define.Value != def.Value || existing.Define.HasValue != def.HasValue {
			log.Warning("define %q overridden: %s (%s) -> %s (%s)",
				def.Name, defineValue(existing.Define), existing.Provenance, defineValue(def), prov)
		}
		dst.Defines[i] = TaggedDefine{Define: def, Provenance: prov}
		return
	}
	dst.Defines = append(dst.Defines, TaggedDefine{Define: def, Provenance: prov})
}

func defineValue(d core.Define) string {
	if !d.HasValue {
		return d.Name
	}
	return fmt.Sprintf("%s=%s", d.Name, d.Value)
}

// addFramework dedupes frameworks by name (spec §4.3).
func addFramework(dst *ResolvedSurface, name string, prov core.Provenance) {
	for _, existing := range dst.Frameworks {
		if existing.Value == name {
			return
		}
	}
	dst.Frameworks = append(dst.Frameworks, Tagged[string]{Value: name, Provenance: prov})
}

// mergeAbi joins src into dst; a conflicting explicit toggle between the two
// is an AbiMismatchError (spec §4.3).
func mergeAbi(dst *core.AbiToggles, src core.AbiToggles, ref TargetRef) error {
	if err := mergeBoolToggle(&dst.PIC, src.PIC, "pic", ref); err != nil {
		return err
	}
	if err := mergeBoolToggle(&dst.Exceptions, src.Exceptions, "exceptions", ref); err != nil {
		return err
	}
	if err := mergeBoolToggle(&dst.RTTI, src.RTTI, "rtti", ref); err != nil {
		return err
	}
	if src.Visibility != "" {
		if dst.Visibility != "" && dst.Visibility != src.Visibility {
			return &core.AbiMismatchError{Toggle: "visibility", A: dst.Visibility, B: fmt.Sprintf("%s (%s:%s)", src.Visibility, ref.Package.Name, ref.Target)}
		}
		dst.Visibility = src.Visibility
	}
	if src.MSVCRuntime != core.MSVCRuntimeUnspecified {
		if dst.MSVCRuntime != core.MSVCRuntimeUnspecified && dst.MSVCRuntime != src.MSVCRuntime {
			return &core.AbiMismatchError{Toggle: "msvc-runtime", A: fmt.Sprint(dst.MSVCRuntime), B: fmt.Sprintf("%v (%s:%s)", src.MSVCRuntime, ref.Package.Name, ref.Target)}
		}
		dst.MSVCRuntime = src.MSVCRuntime
	}
	if src.CppStdlib != core.CppStdlibUnspecified {
		if dst.CppStdlib != core.CppStdlibUnspecified && dst.CppStdlib != src.CppStdlib {
			return &core.AbiMismatchError{Toggle: "cpp-stdlib", A: fmt.Sprint(dst.CppStdlib), B: fmt.Sprintf("%v (%s:%s)", src.CppStdlib, ref.Package.Name, ref.Target)}
		}
		dst.CppStdlib = src.CppStdlib
	}
	return nil
}

func mergeBoolToggle(dst **bool, src *bool, name string, ref TargetRef) error {
	if src == nil {
		return nil
	}
	if *dst != nil && **dst != *src {
		return &core.AbiMismatchError{
			Toggle: name,
			A:      fmt.Sprintf("%v", **dst),
			B:      fmt.Sprintf("%v (%s:%s)", *src, ref.Package.Name, ref.Target),
		}
	}
	*dst = src
	return nil
}
