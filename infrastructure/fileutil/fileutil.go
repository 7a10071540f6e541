// Package fileutil prepares files for the translation GUI: library path
// naming, archive extraction, and the ASCII rename pass the GUI needs
// because it cannot open paths with non-ASCII bytes.
package fileutil

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
}

// IsImage reports whether path has a supported page image extension.
func IsImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// SafeName maps an arbitrary identifier (a toonkor series path, a chapter
// title) to a single path segment safe on every filesystem: printable ASCII
// only, no separators. Empty results fall back to a hex rendering so two
// distinct identifiers never collapse to the same directory.
func SafeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\':
			b.WriteByte('_')
		case r > unicode.MaxASCII || !unicode.IsPrint(r):
			// dropped, same as the GUI's printable filter
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), " ._")
	if out == "" {
		return fmt.Sprintf("%x", name)
	}
	return out
}

// ListImages returns the image files directly inside dir, sorted by name so
// page order is stable across calls.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() || !IsImage(entry.Name()) {
			continue
		}
		images = append(images, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(images)
	return images, nil
}

// ExtractArchive unpacks a zip-family archive (.zip, .cbz) into destDir and
// returns the extracted file paths. Entries escaping destDir are rejected.
func ExtractArchive(archivePath, destDir string) ([]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer reader.Close()

	var extracted []string
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}

		target := filepath.Join(destDir, filepath.Clean(entry.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return nil, fmt.Errorf("archive entry %q escapes extraction dir", entry.Name)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
		}

		if err := extractEntry(entry, target); err != nil {
			return nil, err
		}
		extracted = append(extracted, target)
	}
	return extracted, nil
}

func extractEntry(entry *zip.File, target string) error {
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to extract %s: %w", entry.Name, err)
	}
	return nil
}

// SanitizeAndCopy makes every path consumable by the GUI. Paths that are
// already pure ASCII pass through untouched; the rest are copied next to the
// original under an ASCII-only name carrying the slice index as a
// disambiguator.
func SanitizeAndCopy(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for i, path := range paths {
		if isASCII(path) {
			out = append(out, path)
			continue
		}

		dir := safePath(filepath.Dir(path))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}

		base := filepath.Base(path)
		ext := filepath.Ext(base)
		stem := SafeName(strings.TrimSuffix(base, ext))
		target := filepath.Join(dir, stem+strconv.Itoa(i)+SafeName(ext))

		if err := copyFile(path, target); err != nil {
			return nil, err
		}
		out = append(out, target)
	}
	return out, nil
}

// safePath applies SafeName per segment so directory structure survives.
func safePath(path string) string {
	segments := strings.Split(filepath.ToSlash(path), "/")
	for i, segment := range segments {
		if segment == "" || segment == "." || segment == ".." {
			continue
		}
		segments[i] = SafeName(segment)
	}
	return filepath.FromSlash(strings.Join(segments, "/"))
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}

// PrepareFiles extracts any archives in paths and returns a flat list of
// GUI-ready image paths, sanitized where needed.
func PrepareFiles(paths []string) ([]string, error) {
	var images []string
	for _, path := range paths {
		if !isArchive(path) {
			images = append(images, path)
			continue
		}

		tempDir, err := os.MkdirTemp(filepath.Dir(path), "extract-")
		if err != nil {
			return nil, fmt.Errorf("failed to create extraction dir: %w", err)
		}
		extracted, err := ExtractArchive(path, tempDir)
		if err != nil {
			return nil, err
		}
		for _, file := range extracted {
			if IsImage(file) {
				images = append(images, file)
			}
		}
	}
	return SanitizeAndCopy(images)
}

func isArchive(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".cbz":
		return true
	}
	return false
}
