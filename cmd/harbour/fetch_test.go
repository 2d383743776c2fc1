package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestFetchTarballExtractsFilesAndVerifiesChecksum(t *testing.T) {
	payload := buildTarGz(t, map[string]string{
		"Harbour.toml": "[package]\nname=\"foo\"\nversion=\"1.0.0\"\n",
		"src/foo.cc":   "int foo() { return 0; }",
	})
	sum := sha256.Sum256(payload)
	want := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	destDir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, fetchTarball(srv.URL, want, destDir))

	data, err := os.ReadFile(filepath.Join(destDir, "Harbour.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "name=\"foo\"")

	data, err = os.ReadFile(filepath.Join(destDir, "src", "foo.cc"))
	require.NoError(t, err)
	assert.Equal(t, "int foo() { return 0; }", string(data))
}

func TestFetchTarballChecksumMismatchErrors(t *testing.T) {
	payload := buildTarGz(t, map[string]string{"a.txt": "hello"})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	err := fetchTarball(srv.URL, "0000000000000000000000000000000000000000000000000000000000000000", t.TempDir())
	assert.Error(t, err)
}

func TestFetchTarballSkipsChecksumWhenNotDeclared(t *testing.T) {
	payload := buildTarGz(t, map[string]string{"a.txt": "hello"})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	err := fetchTarball(srv.URL, "", filepath.Join(t.TempDir(), "out"))
	assert.NoError(t, err)
}

func TestFetchTarballNon200StatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := fetchTarball(srv.URL, "", t.TempDir())
	assert.Error(t, err)
}
