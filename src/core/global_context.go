package core

// GlobalContext carries the settings that would otherwise be ambient process
// state: cache locations, registry overrides, verbosity, toolchain
// overrides, and parallelism. It is threaded explicitly through every
// operation rather than read from package-level globals (spec §9 Design
// Notes).
type GlobalContext struct {
	// CacheRoot is the root of the content-addressed source cache.
	CacheRoot string
	// RegistryURL overrides the default registry; empty means use the built-in default.
	RegistryURL string
	// Verbosity is a logging.Level as understood by src/cli/logging.
	Verbosity int

	// CC, CXX, AR mirror the identically named environment variables,
	// already resolved by the caller (spec §6 Environment variables consumed).
	CC string
	CXX string
	AR string

	// Parallelism overrides the compile worker pool size; 0 means "detect".
	Parallelism int

	// Profile is the active build profile name (e.g. "debug", "release").
	Profile string

	// TargetTriple is the compilation target; empty means "host".
	TargetTriple string
}

// EffectiveParallelism returns ctx.Parallelism if set, otherwise n (the
// caller passes in the automaxprocs-adjusted CPU count).
func (ctx GlobalContext) EffectiveParallelism(detected int) int {
	if ctx.Parallelism > 0 {
		return ctx.Parallelism
	}
	return detected
}
