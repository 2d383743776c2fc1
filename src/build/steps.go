package build

import (
	"context"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/harbour-build/harbour/src/core"
	"github.com/harbour-build/harbour/src/fingerprint"
	"github.com/harbour-build/harbour/src/plan"
	"github.com/harbour-build/harbour/src/toolchain"
)

// logArtifact reports a produced file's size and how long it took to build,
// the same shape dir_cache.go logs cache entries in.
func logArtifact(verb, path string, started time.Time) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	log.Info("%s %s (%s) in %s", verb, path, humanize.Bytes(uint64(info.Size())), humanize.RelTime(started, time.Now(), "", ""))
}

// runCompile computes the compile fingerprint for step, skips it if
// unchanged and the object file exists, otherwise invokes the compiler and
// persists the new fingerprint on success (spec §4.7 level 2, §4.8).
func (e *Executor) runCompile(ctx context.Context, step *plan.CompileStep) error {
	started := time.Now()
	sourceHash, err := fingerprint.HashFile(step.SrcFile)
	if err != nil {
		return &core.CompileFailedError{Prov: compileProv(step), Status: -1, Stderr: err.Error()}
	}
	headerHash, _, err := fingerprint.TransitiveHeaderHash(step.Toolchain.DepFileOut, step.SrcFile)
	if err != nil {
		return &core.CompileFailedError{Prov: compileProv(step), Status: -1, Stderr: err.Error()}
	}

	fp := fingerprint.Compile(sourceHash, step.Toolchain.CFlags, step.Toolchain.IncludeDirs, step.Toolchain.Defines, step.Toolchain.Std, step.Toolchain.Abi, e.ToolchainFP, headerHash)

	if persisted, ok := e.Store.Get(step.ID); ok && persisted == fp {
		if _, err := os.Stat(step.ObjOut); err == nil {
			log.Debug("skipping unchanged compile %s", step.SrcFile)
			return nil
		}
	}

	if err := ensureDir(step.ObjOut); err != nil {
		return &core.CompileFailedError{Prov: compileProv(step), Status: -1, Stderr: err.Error()}
	}
	cmd := e.Toolchain.Compile(step.Toolchain)
	status, out, err := runCommand(ctx, cmd)
	if err != nil {
		return &core.CompileFailedError{Prov: compileProv(step), Status: -1, Stderr: err.Error()}
	}
	if status != 0 {
		return &core.CompileFailedError{Prov: compileProv(step), Status: status, Stderr: out}
	}
	e.Store.Set(step.ID, fp)
	logArtifact("compiled", step.ObjOut, started)
	return nil
}

func compileProv(step *plan.CompileStep) core.Provenance {
	return core.Provenance{Operation: "compile", Package: step.Target.Package.Name, Target: step.Target.Target, Step: step.ID, File: step.SrcFile}
}

// runArchive computes the archive-level fingerprint from its input objects'
// persisted compile fingerprints, skips if unchanged, else invokes the
// archiver.
func (e *Executor) runArchive(ctx context.Context, step *plan.ArchiveStep) error {
	started := time.Now()
	var objFps []fingerprint.Digest
	for _, obj := range step.Objs {
		fp, err := fingerprint.HashFile(obj)
		if err != nil {
			return &core.ArchiveFailedError{Prov: archiveProv(step), Status: -1, Stderr: err.Error()}
		}
		objFps = append(objFps, fp)
	}
	fp := fingerprint.Link(objFps, nil, nil, e.ToolchainFP)

	if persisted, ok := e.Store.Get(step.ID); ok && persisted == fp {
		if _, err := os.Stat(step.ArchiveOut); err == nil {
			log.Debug("skipping unchanged archive %s", step.ArchiveOut)
			return nil
		}
	}

	if err := ensureDir(step.ArchiveOut); err != nil {
		return &core.ArchiveFailedError{Prov: archiveProv(step), Status: -1, Stderr: err.Error()}
	}
	os.Remove(step.ArchiveOut) // ar rcs won't replace a stale archive cleanly otherwise
	cmd := e.Toolchain.Archive(toolchain.ArchiveInput{Objs: step.Objs, ArchiveOut: step.ArchiveOut})
	status, out, err := runCommand(ctx, cmd)
	if err != nil {
		return &core.ArchiveFailedError{Prov: archiveProv(step), Status: -1, Stderr: err.Error()}
	}
	if status != 0 {
		return &core.ArchiveFailedError{Prov: archiveProv(step), Status: status, Stderr: out}
	}
	e.Store.Set(step.ID, fp)
	logArtifact("archived", step.ArchiveOut, started)
	return nil
}

func archiveProv(step *plan.ArchiveStep) core.Provenance {
	return core.Provenance{Operation: "archive", Package: step.Target.Package.Name, Target: step.Target.Target, Step: step.ID}
}

// runLink computes the link fingerprint from its input object and archive
// fingerprints, skips if unchanged, else invokes the linker.
func (e *Executor) runLink(ctx context.Context, step *plan.LinkStep) error {
	started := time.Now()
	var objFps, archiveFps []fingerprint.Digest
	for _, obj := range step.Toolchain.Objs {
		fp, err := fingerprint.HashFile(obj)
		if err != nil {
			return &core.LinkFailedError{Prov: linkProv(step), Status: -1, Stderr: err.Error()}
		}
		objFps = append(objFps, fp)
	}
	for _, archive := range step.Toolchain.Archives {
		fp, err := fingerprint.HashFile(archive)
		if err != nil {
			return &core.LinkFailedError{Prov: linkProv(step), Status: -1, Stderr: err.Error()}
		}
		archiveFps = append(archiveFps, fp)
	}
	fp := fingerprint.Link(objFps, archiveFps, step.Toolchain.LDFlags, e.ToolchainFP)

	if persisted, ok := e.Store.Get(step.ID); ok && persisted == fp {
		if _, err := os.Stat(step.ImageOut); err == nil {
			log.Debug("skipping unchanged link %s", step.ImageOut)
			return nil
		}
	}

	if err := ensureDir(step.ImageOut); err != nil {
		return &core.LinkFailedError{Prov: linkProv(step), Status: -1, Stderr: err.Error()}
	}
	cmd := e.Toolchain.Link(step.Toolchain)
	status, out, err := runCommand(ctx, cmd)
	if err != nil {
		return &core.LinkFailedError{Prov: linkProv(step), Status: -1, Stderr: err.Error()}
	}
	if status != 0 {
		return &core.LinkFailedError{Prov: linkProv(step), Status: status, Stderr: out}
	}
	e.Store.Set(step.ID, fp)
	logArtifact("linked", step.ImageOut, started)
	return nil
}

func linkProv(step *plan.LinkStep) core.Provenance {
	return core.Provenance{Operation: "link", Package: step.Target.Package.Name, Target: step.Target.Target, Step: step.ID}
}

// runExternal runs a CMake/Custom recipe and verifies its declared outputs
// appeared (spec §4.8 External recipes).
func (e *Executor) runExternal(ctx context.Context, step *plan.ExternalStep) error {
	if len(step.Command) == 0 {
		return &core.ExternalRecipeFailedError{Prov: externalProv(step), Status: -1, Stderr: "no command configured for external recipe"}
	}
	cmd := toolchain.Command{Program: step.Command[0], Args: step.Command[1:]}
	status, out, err := runCommand(ctx, cmd)
	if err != nil {
		return &core.ExternalRecipeFailedError{Prov: externalProv(step), Status: -1, Stderr: err.Error()}
	}
	if status != 0 {
		return &core.ExternalRecipeFailedError{Prov: externalProv(step), Status: status, Stderr: out}
	}
	for _, output := range step.DeclaredOutputs {
		if _, err := os.Stat(output); err != nil {
			return &core.RecipeOutputMissingError{Prov: externalProv(step), Output: output}
		}
	}
	return nil
}

func externalProv(step *plan.ExternalStep) core.Provenance {
	return core.Provenance{Operation: "external", Package: step.Target.Package.Name, Target: step.Target.Target, Step: step.ID}
}
