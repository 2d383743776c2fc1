// Package fingerprint implements the three-level, SHA-256-based content
// hashing that drives incremental rebuilds (spec §4.7). The digest
// algorithm is fixed by the spec itself rather than left to the
// implementation, so this package uses crypto/sha256 directly instead of a
// third-party hashing library.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sort"
	"strings"

	"github.com/harbour-build/harbour/src/core"
)

// Digest is a canonical SHA-256 fingerprint, hex-encoded.
type Digest string

func hashParts(parts ...string) Digest {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0}) // NUL separator so ("ab","c") != ("a","bc")
	}
	return Digest(hex.EncodeToString(h.Sum(nil)))
}

// HashFile returns the SHA-256 digest of a file's content.
func HashFile(path string) (Digest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return Digest(hex.EncodeToString(sum[:])), nil
}

// Toolchain computes the toolchain fingerprint: (compiler-family,
// full-version-string, target-triple, profile). If this changes, everything
// is rebuilt (spec §4.7 level 1).
func Toolchain(family, version, targetTriple, profile string) Digest {
	return hashParts("toolchain", family, version, targetTriple, profile)
}

func abiPart(abi core.AbiToggles) string {
	var b strings.Builder
	b.WriteString(boolPtrStr(abi.PIC))
	b.WriteByte('|')
	b.WriteString(abi.Visibility)
	b.WriteByte('|')
	b.WriteString(boolPtrStr(abi.Exceptions))
	b.WriteByte('|')
	b.WriteString(boolPtrStr(abi.RTTI))
	b.WriteByte('|')
	b.WriteString(mustItoa(int(abi.MSVCRuntime)))
	b.WriteByte('|')
	b.WriteString(mustItoa(int(abi.CppStdlib)))
	return b.String()
}

func boolPtrStr(b *bool) string {
	if b == nil {
		return "unset"
	}
	if *b {
		return "true"
	}
	return "false"
}

func mustItoa(i int) string {
	return string(rune('0' + i))
}

// Compile computes the per-source-file compile fingerprint (spec §4.7 level
// 2): source content, compile flags, include dirs, defines, std, ABI
// toggles, the toolchain fingerprint, and the transitive header hash.
// cflags and includeDirs are hashed in the order given, not sorted: cflags
// order is command-line order and later flags can override earlier ones,
// and include-dir order controls which directory's header wins when two
// shadow the same name (spec §4.3), so reordering either one changes the
// real compile command and must change the fingerprint. defines have no
// such ordering dependency and are sorted so that incidental reordering
// upstream (e.g. a map walk building the list) doesn't force a spurious
// rebuild.
func Compile(sourceHash Digest, cflags, includeDirs, defines []string, std string, abi core.AbiToggles, toolchainFp Digest, transitiveHeaderHash Digest) Digest {
	parts := []string{"compile", string(sourceHash), std, abiPart(abi), string(toolchainFp), string(transitiveHeaderHash)}
	parts = append(parts, cflags...)
	parts = append(parts, includeDirs...)
	parts = append(parts, sortedCopy(defines)...)
	return hashParts(parts...)
}

// Link computes the per-linkable-target link fingerprint (spec §4.7 level
// 3): the ordered input-object fingerprints, the ordered linked-library
// archive fingerprints, link flags, and the toolchain fingerprint. Object
// and library order is preserved (it is link-order-sensitive), same as
// Compile's cflags and include dirs.
func Link(objFps, libArchiveFps []Digest, linkFlags []string, toolchainFp Digest) Digest {
	parts := []string{"link", string(toolchainFp)}
	for _, fp := range objFps {
		parts = append(parts, string(fp))
	}
	for _, fp := range libArchiveFps {
		parts = append(parts, string(fp))
	}
	parts = append(parts, linkFlags...)
	return hashParts(parts...)
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
