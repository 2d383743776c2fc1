package toolchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionRegexesMatchRealBanners(t *testing.T) {
	cases := []struct {
		name    string
		banner  string
		re      func(string) bool
		version string
	}{
		{
			name:   "gcc",
			banner: "gcc (Ubuntu 12.2.0-3ubuntu1) 12.2.0\nCopyright (C) 2022 Free Software Foundation, Inc.",
			re:     gccVersionRe.MatchString,
		},
		{
			name:   "clang",
			banner: "Ubuntu clang version 15.0.7\nTarget: x86_64-pc-linux-gnu",
			re:     clangVersionRe.MatchString,
		},
		{
			name:   "apple-clang",
			banner: "Apple clang version 15.0.0 (clang-1500.1.0.2.5)\nTarget: arm64-apple-darwin23.0.0",
			re:     appleClangRe.MatchString,
		},
		{
			name:   "msvc",
			banner: "Microsoft (R) C/C++ Optimizing Compiler Version 19.38.33130 for x64",
			re:     msvcVersionRe.MatchString,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.True(t, c.re(c.banner))
		})
	}
}

func TestGCCVersionRegexExtractsVersion(t *testing.T) {
	m := gccVersionRe.FindStringSubmatch("gcc (Ubuntu 12.2.0-3ubuntu1) 12.2.0")
	if assert.Len(t, m, 3) {
		assert.Equal(t, "12.2.0", m[1])
	}
}

func TestAppleClangRegexMatchesAppleBanner(t *testing.T) {
	banner := "Apple clang version 15.0.0 (clang-1500.1.0.2.5)"
	assert.True(t, appleClangRe.MatchString(banner))
}
