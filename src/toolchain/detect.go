package toolchain

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("toolchain")

var (
	clangVersionRe = regexp.MustCompile(`clang version (\d+\.\d+(\.\d+)?)`)
	appleClangRe   = regexp.MustCompile(`Apple (?:LLVM|clang) version (\d+\.\d+(\.\d+)?)`)
	gccVersionRe   = regexp.MustCompile(`gcc(?:-\d+)? \(.*\) (\d+\.\d+\.\d+)`)
	msvcVersionRe  = regexp.MustCompile(`Version (\d+\.\d+\.\d+)`)
)

// Detect probes cc/cxx/ar (already resolved from CC/CXX/AR env overrides,
// spec §6) by invoking the compiler with a version flag and parsing its
// identifier (spec §4.4 Detection). The family and full version string
// become part of the toolchain fingerprint (spec §4.7).
func Detect(cc, cxx, ar string) (Toolchain, error) {
	if cc == "" {
		cc = "cc"
	}
	if cxx == "" {
		cxx = "c++"
	}
	if ar == "" {
		ar = "ar"
	}

	out, err := runVersion(cc)
	if err != nil {
		return nil, fmt.Errorf("detecting compiler %s: %w", cc, err)
	}

	switch {
	case appleClangRe.MatchString(out):
		m := appleClangRe.FindStringSubmatch(out)
		return &GCCToolchain{CCPath: cc, CXXPath: cxx, ARPath: ar, family: "apple-clang", version: m[1]}, nil
	case clangVersionRe.MatchString(out):
		m := clangVersionRe.FindStringSubmatch(out)
		return &GCCToolchain{CCPath: cc, CXXPath: cxx, ARPath: ar, family: "clang", version: m[1]}, nil
	case gccVersionRe.MatchString(out):
		m := gccVersionRe.FindStringSubmatch(out)
		return &GCCToolchain{CCPath: cc, CXXPath: cxx, ARPath: ar, family: "gcc", version: m[1]}, nil
	case msvcVersionRe.MatchString(out):
		m := msvcVersionRe.FindStringSubmatch(out)
		return &MSVCToolchain{CLPath: cc, LibPath: "lib.exe", version: m[1]}, nil
	default:
		return nil, fmt.Errorf("unrecognised compiler identifier from %s: %q", cc, strings.TrimSpace(out))
	}
}

// runVersion invokes prog with the version flags GCC-style and MSVC-style
// compilers accept and returns their combined stdout+stderr, since cl.exe
// prints its banner to stderr.
func runVersion(prog string) (string, error) {
	if out, err := exec.Command(prog, "--version").CombinedOutput(); err == nil {
		return string(out), nil
	}
	out, err := exec.Command(prog).CombinedOutput() // cl.exe prints its banner and usage when invoked bare
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return "", err
		}
	}
	return string(out), nil
}
