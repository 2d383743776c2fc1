package fingerprint

import (
	"os"
	"sort"
	"strings"
)

// ParseDepFile parses a GCC-style Makefile dependency file (produced by
// "-MMD -MF", or the MSVC /sourceDependencies equivalent once normalized to
// this shape by the caller) and returns the header paths it lists, excluding
// the primary source file itself.
func ParseDepFile(path string, primarySource string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// Makefile dependency rules use "\\\n" to continue a line; join first.
	joined := strings.ReplaceAll(string(data), "\\\n", " ")
	joined = strings.ReplaceAll(joined, "\\\r\n", " ")

	colon := strings.Index(joined, ":")
	if colon < 0 {
		return nil, nil
	}
	fields := strings.Fields(joined[colon+1:])

	var headers []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || f == primarySource {
			continue
		}
		headers = append(headers, f)
	}
	return headers, nil
}

// TransitiveHeaderHash hashes the content of every header a source file
// transitively includes, as recorded in its dependency file. A missing
// dependency file (as on a first build) returns ok=false with an empty
// digest and no error (spec §4.7 level 2).
func TransitiveHeaderHash(depFilePath, primarySource string) (digest Digest, ok bool, err error) {
	if _, statErr := os.Stat(depFilePath); statErr != nil {
		return "", false, nil
	}
	headers, err := ParseDepFile(depFilePath, primarySource)
	if err != nil {
		return "", false, err
	}
	sort.Strings(headers)

	h := make([]string, 0, len(headers))
	for _, hdr := range headers {
		fp, err := HashFile(hdr)
		if err != nil {
			// A header listed in the dep file but now missing means the
			// build is certainly dirty; report not-ok rather than failing
			// the whole compute.
			return "", false, nil
		}
		h = append(h, hdr, string(fp))
	}
	return hashParts(h...), true, nil
}
