// Command harbour is the thin CLI entrypoint wiring flag parsing to the
// core resolve/surface/plan/build/abi packages (spec §6 CLI surface). It
// does no resolution, planning, or execution itself; every operation here
// is a direct call into one of those packages, mapping the returned
// HarbourError's Phase() to the process exit code.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/thought-machine/go-flags"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/harbour-build/harbour/src/abi"
	"github.com/harbour-build/harbour/src/build"
	"github.com/harbour-build/harbour/src/cli/logging"
	"github.com/harbour-build/harbour/src/core"
	"github.com/harbour-build/harbour/src/fingerprint"
	"github.com/harbour-build/harbour/src/plan"
	"github.com/harbour-build/harbour/src/resolve"
	"github.com/harbour-build/harbour/src/source"
	"github.com/harbour-build/harbour/src/surface"
	"github.com/harbour-build/harbour/src/toolchain"
)

var log = logging.Log

var opts struct {
	Verbosity logging.Level `short:"v" long:"verbosity" description:"Logging verbosity" default:"2"`
	Jobs      int           `short:"j" long:"jobs" description:"Parallel compile jobs; 0 autodetects from GOMAXPROCS"`
	Profile   string        `short:"p" long:"profile" description:"Build profile to use" default:"debug"`
	Target    string        `short:"t" long:"target" description:"Target triple override for cross-compilation"`

	Build struct {
		Args struct {
			Targets []string `positional-arg-name:"targets" description:"Targets to build; defaults to every target in the root package"`
		} `positional-args:"true"`
	} `command:"build" description:"Resolves dependencies and builds one or more targets"`

	Test struct {
		Args struct {
			Targets []string `positional-arg-name:"targets" description:"Targets to build and run as tests"`
		} `positional-args:"true"`
	} `command:"test" description:"Builds targets and runs their executables, failing on nonzero exit"`

	Update struct {
	} `command:"update" description:"Re-resolves dependencies and rewrites Harbour.lock"`

	Tree struct {
	} `command:"tree" description:"Prints the resolved dependency graph (pretty-printing is out of scope; raw PackageIds only)"`

	Flags struct {
		Args struct {
			Target string `positional-arg-name:"target" required:"true"`
		} `positional-args:"true"`
	} `command:"flags" description:"Prints a target's resolved compile/link flags (pretty-printing is out of scope; raw lists only)"`

	Linkplan struct {
		Args struct {
			Target string `positional-arg-name:"target" required:"true"`
		} `positional-args:"true"`
	} `command:"linkplan" description:"Prints a target's build plan steps (pretty-printing is out of scope; raw step list only)"`

	Explain struct {
		Args struct {
			Package string `positional-arg-name:"package" required:"true"`
		} `positional-args:"true"`
	} `command:"explain" description:"Prints why a package was resolved to its chosen version (pretty-printing is out of scope)"`
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	args, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(3)
	}

	logging.InitLogging(opts.Verbosity)

	if _, err := maxprocs.Set(maxprocs.Logger(log.Info)); err != nil {
		log.Warning("failed to set GOMAXPROCS from container CPU quota: %s", err)
	}

	command := parser.Command.Active
	if command == nil {
		fmt.Fprintln(os.Stderr, "no command given; try 'harbour build'")
		os.Exit(3)
	}

	os.Exit(run(command.Name, args))
}

func run(command string, extraArgs []string) int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx := globalContext()

	switch command {
	case "build":
		return runBuild(cwd, ctx, opts.Build.Args.Targets, false)
	case "test":
		return runBuild(cwd, ctx, opts.Test.Args.Targets, true)
	case "update":
		return runUpdate(cwd, ctx)
	case "tree":
		return runTree(cwd, ctx)
	case "flags":
		return runFlags(cwd, ctx, opts.Flags.Args.Target)
	case "linkplan":
		return runLinkplan(cwd, ctx, opts.Linkplan.Args.Target)
	case "explain":
		return runExplain(cwd, ctx, opts.Explain.Args.Package)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)
		return 3
	}
}

func globalContext() core.GlobalContext {
	cacheRoot := os.Getenv("HARBOUR_CACHE_DIR")
	if cacheRoot == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cacheRoot = filepath.Join(home, ".cache", "harbour")
		}
	}
	return core.GlobalContext{
		CacheRoot:    cacheRoot,
		Verbosity:    int(opts.Verbosity),
		CC:           os.Getenv("CC"),
		CXX:          os.Getenv("CXX"),
		AR:           os.Getenv("AR"),
		Parallelism:  opts.Jobs,
		Profile:      opts.Profile,
		TargetTriple: opts.Target,
	}
}

// loadAndResolve is the shared path every command takes: load the root
// manifest, read any existing lockfile for a preferred-version bias, run the
// solver, detect the toolchain, and build a surface.Resolver over the
// result.
func loadAndResolve(root string, ctx core.GlobalContext) (*resolve.Resolve, *surface.Resolver, toolchain.Toolchain, error) {
	m, err := loadManifest(root)
	if err != nil {
		return nil, nil, nil, err
	}
	rootPkg := core.Package{
		ID:       core.NewPackageId(m.Package.Name, m.Package.Version, core.NewPathSourceId(root)),
		Manifest: m,
		Root:     root,
	}

	cache := source.NewCache(ctx, loadManifest, fetchTarball)

	preferred := map[string]core.Version{}
	lockPath := filepath.Join(root, "Harbour.lock")
	if lf, err := resolve.ReadLockfile(lockPath); err == nil {
		preferred = lf.PreferredVersions()
	}

	graph, err := resolve.Solve(rootPkg, cache, preferred)
	if err != nil {
		return nil, nil, nil, err
	}

	tc, err := toolchain.Detect(ctx.CC, ctx.CXX, ctx.AR)
	if err != nil {
		return nil, nil, nil, &core.ToolNotFoundError{Tool: ctx.CC}
	}

	buildCtx := surface.BuildContext{OS: runtime.GOOS, Arch: runtime.GOARCH, Compiler: tc.Family()}
	resolver := surface.NewResolver(graph, buildCtx)

	validator := &abi.Validator{Graph: graph, Resolver: resolver}
	for _, targetName := range targetsOf(rootPkg) {
		ref := surface.TargetRef{Package: rootPkg.ID, Target: targetName}
		if merr := validator.Validate(ref); merr != nil {
			return nil, nil, nil, merr
		}
	}

	return graph, resolver, tc, nil
}

func targetsOf(pkg core.Package) []string {
	names := make([]string, 0, len(pkg.Manifest.Targets))
	for name := range pkg.Manifest.Targets {
		names = append(names, name)
	}
	return names
}

func runBuild(root string, ctx core.GlobalContext, targetNames []string, isTest bool) int {
	graph, resolver, tc, err := loadAndResolve(root, ctx)
	if err != nil {
		return exitFor(err)
	}

	rootPkg, _ := graph.Package(graph.Root)
	if len(targetNames) == 0 {
		targetNames = targetsOf(rootPkg)
	}

	outDir := filepath.Join(root, ".harbour", "target", ctx.Profile)
	planner := &plan.Planner{
		Graph:     graph,
		Resolver:  resolver,
		Toolchain: tc,
		OutDir:    outDir,
		Profile:   toolchain.ProfileSettings{OptLevel: profileOptLevel(ctx.Profile), DebugInfo: ctx.Profile != "release"},
	}

	fpStore, err := fingerprint.Load(filepath.Join(outDir, "fingerprints", "store.json"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	toolchainFP := fingerprint.Toolchain(tc.Family(), tc.VersionString(), ctx.TargetTriple, ctx.Profile)

	for _, name := range targetNames {
		ref := surface.TargetRef{Package: rootPkg.ID, Target: name}
		bp, err := planner.Plan(ref)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFor(err)
		}

		executor := &build.Executor{
			Plan:        bp,
			Toolchain:   tc,
			Store:       fpStore,
			ToolchainFP: toolchainFP,
			Parallelism: ctx.EffectiveParallelism(runtime.GOMAXPROCS(0)),
		}
		if err := executor.Run(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			if saveErr := fpStore.Save(); saveErr != nil {
				log.Warning("failed to save fingerprint store: %s", saveErr)
			}
			return exitFor(err)
		}

		if isTest {
			target, _ := rootPkg.Target(name)
			if target.Kind != core.TargetExe {
				continue
			}
			image := filepath.Join(outDir, "bin", rootPkg.ID.Name, name)
			if code := runTestBinary(image, name, rootPkg.ID.Name); code != 0 {
				fpStore.Save()
				return code
			}
		}
	}

	if err := fpStore.Save(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func profileOptLevel(profile string) string {
	if profile == "release" {
		return "2"
	}
	return "0"
}

// runProcess runs a built test image and reports its exit status, mirroring
// the executor's own subprocess-running helper (src/build/executor.go).
func runProcess(cmd toolchain.Command) (int, string, error) {
	c := exec.Command(cmd.Program, cmd.Args...)
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	out, err := c.CombinedOutput()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), string(out), nil
	}
	if err != nil {
		return -1, string(out), err
	}
	return 0, string(out), nil
}

func runTestBinary(image, target, pkg string) int {
	cmd := toolchain.Command{Program: image}
	status, out, err := runProcess(cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if status != 0 {
		testErr := &core.TestFailedError{
			Prov:   core.Provenance{Operation: "test", Package: pkg, Target: target},
			Status: status,
			Stderr: out,
		}
		fmt.Fprintln(os.Stderr, testErr)
		return 4
	}
	return 0
}

func runUpdate(root string, ctx core.GlobalContext) int {
	graph, _, _, err := loadAndResolve(root, ctx)
	if err != nil {
		return exitFor(err)
	}
	rootPkg, _ := graph.Package(graph.Root)
	hash, err := resolve.ManifestContentHash(rootPkg.Manifest)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	lf := resolve.FromResolve(graph, hash)
	if err := lf.WriteFile(filepath.Join(root, "Harbour.lock")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// runTree, runFlags, runLinkplan, and runExplain print raw, unformatted
// views over the Resolve graph / ResolvedSurface / BuildPlan: pretty-
// printing these is explicitly out of scope (spec §1), so each command's
// job ends at handing back the data structure the spec names.

func runTree(root string, ctx core.GlobalContext) int {
	graph, _, _, err := loadAndResolve(root, ctx)
	if err != nil {
		return exitFor(err)
	}
	for _, id := range graph.Order() {
		fmt.Printf("%s <- %v\n", id, graph.Deps(id))
	}
	return 0
}

func runFlags(root string, ctx core.GlobalContext, targetName string) int {
	graph, resolver, _, err := loadAndResolve(root, ctx)
	if err != nil {
		return exitFor(err)
	}
	rootPkg, _ := graph.Package(graph.Root)
	resolved, err := resolver.Resolve(surface.TargetRef{Package: rootPkg.ID, Target: targetName})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("%+v\n", resolved)
	return 0
}

func runLinkplan(root string, ctx core.GlobalContext, targetName string) int {
	graph, resolver, tc, err := loadAndResolve(root, ctx)
	if err != nil {
		return exitFor(err)
	}
	rootPkg, _ := graph.Package(graph.Root)
	ref := surface.TargetRef{Package: rootPkg.ID, Target: targetName}
	planner := &plan.Planner{Graph: graph, Resolver: resolver, Toolchain: tc, OutDir: filepath.Join(root, ".harbour", "target", ctx.Profile)}
	bp, err := planner.Plan(ref)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFor(err)
	}
	for _, step := range bp.Steps {
		fmt.Printf("%+v\n", step)
	}

	target, _ := rootPkg.Target(targetName)
	resolved, err := resolver.Resolve(ref)
	if err == nil {
		id := abi.Compute(ctx.TargetTriple, tc, target.Kind, resolved, majMin(tc.VersionString()))
		fmt.Printf("abi: %s (%s)\n", id, id.Fingerprint())
	}
	return 0
}

// majMin trims a full compiler version string ("13.2.1") down to its
// major.minor prefix, the granularity the ABI identity tuple uses (spec §3).
func majMin(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) >= 2 {
		return parts[0] + "." + parts[1]
	}
	return version
}

func runExplain(root string, ctx core.GlobalContext, pkgName string) int {
	graph, _, _, err := loadAndResolve(root, ctx)
	if err != nil {
		return exitFor(err)
	}
	for _, id := range graph.Nodes() {
		if id.Name == pkgName {
			fmt.Printf("%s resolved from %s\n", id, id.Source)
			return 0
		}
	}
	fmt.Fprintf(os.Stderr, "package %q not in resolve graph\n", pkgName)
	return 2
}

// exitFor maps a HarbourError's Phase() to the exit codes named in spec §6;
// unrecognised errors (e.g. from manifest loading's own os.Stat calls) exit 3.
func exitFor(err error) int {
	if herr, ok := err.(core.HarbourError); ok {
		switch herr.Phase() {
		case core.PhaseManifest:
			return 3
		case core.PhaseResolve:
			return 2
		case core.PhaseBuild:
			return 1
		case core.PhaseTest:
			return 4
		}
	}
	return 3
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
