package fileutil

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain ascii passes through", "solo-leveling", "solo-leveling"},
		{"separators become underscores", "/webtoon/solo-leveling", "webtoon_solo-leveling"},
		{"non-ascii dropped", "나 혼자만 레벨업 ch1", "ch1"},
		{"mixed keeps ascii", "레벨업-s2", "-s2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SafeName(tt.input))
		})
	}
}

func TestSafeName_NeverEmpty(t *testing.T) {
	out := SafeName("전지적")
	assert.NotEmpty(t, out, "fully non-ascii names must still map to something")

	// Distinct identifiers must not collapse to one directory.
	assert.NotEqual(t, SafeName("전지적"), SafeName("화산귀환"))
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002.jpg", "001.jpg", "notes.txt", "003.webp"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "translated"), 0o755))

	images, err := ListImages(dir)
	require.NoError(t, err)
	require.Len(t, images, 3)
	assert.Equal(t, filepath.Join(dir, "001.jpg"), images[0], "pages sorted by name")
	assert.Equal(t, filepath.Join(dir, "003.webp"), images[2])
}

func TestExtractArchive(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "chapter.cbz")
	writeZip(t, archivePath, map[string]string{
		"001.jpg":   "page one",
		"002.jpg":   "page two",
		"info.json": "{}",
	})

	destDir := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(destDir, 0o755))

	extracted, err := ExtractArchive(archivePath, destDir)
	require.NoError(t, err)
	assert.Len(t, extracted, 3)

	content, err := os.ReadFile(filepath.Join(destDir, "001.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "page one", string(content))
}

func TestExtractArchive_RejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.zip")
	writeZip(t, archivePath, map[string]string{"../escape.jpg": "nope"})

	destDir := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(destDir, 0o755))

	_, err := ExtractArchive(archivePath, destDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
}

func TestSanitizeAndCopy_LeavesASCIIUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "001.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	out, err := SanitizeAndCopy([]string{path})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, path, out[0])
}

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range entries {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}
