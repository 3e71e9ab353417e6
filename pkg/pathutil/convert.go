// Package pathutil provides path conversion and normalization for asset paths.
//
// Architecture Pattern:
// Records keep paths exactly as they were spelled in their metadata files,
// relative to the asset root and using forward slashes. Every index key is
// derived from that spelling with Normalize, so lookups are insensitive to
// separator style, redundant elements and letter case.
package pathutil

import (
	"path"
	"path/filepath"
	"strings"
)

// Normalize converts a path into the canonical key form used by every index.
// The result uses forward slashes, is cleaned, lower-cased and never starts
// with "./". The empty string stays empty.
//
// Examples:
//   - Normalize("Textures\\Bark.DDS") → "textures/bark.dds"
//   - Normalize("./models//tree.cgf") → "models/tree.cgf"
func Normalize(p string) string {
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	if p == "." {
		return ""
	}
	p = strings.TrimPrefix(p, "./")
	return strings.ToLower(p)
}

// Equal reports whether two paths refer to the same index key.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Dir returns the folder of a slash-separated asset path, "" for root level files.
func Dir(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// Join joins a folder and a relative file name with forward slashes.
// An empty folder yields the cleaned file name.
func Join(folder, name string) string {
	if name == "" {
		return ""
	}
	name = strings.ReplaceAll(name, "\\", "/")
	if folder == "" {
		return strings.TrimPrefix(path.Clean(name), "./")
	}
	return path.Join(strings.ReplaceAll(folder, "\\", "/"), name)
}

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or path is already relative.
//
// Examples:
//   - ToRelative("/home/user/project/Assets/tree.cryasset", "/home/user/project") → "Assets/tree.cryasset"
//   - ToRelative("/other/location/file.cgf", "/home/user/project") → "/other/location/file.cgf" (outside root)
//   - ToRelative("Assets/tree.cgf", "/home/user/project") → "Assets/tree.cgf" (already relative)
func ToRelative(absPath, rootDir string) string {
	// Handle empty inputs
	if absPath == "" || rootDir == "" {
		return absPath
	}

	// If path is already relative, return as-is
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		// Conversion failed (e.g., different drives on Windows) - return absolute
		return absPath
	}

	// Outside the root: the absolute path is clearer
	if strings.HasPrefix(relPath, "..") {
		return absPath
	}

	return relPath
}

// ToAssetPath converts a filesystem path under rootDir into the slash-separated
// root-relative form stored on records. ok is false when the path lies outside rootDir.
func ToAssetPath(absPath, rootDir string) (string, bool) {
	rel := ToRelative(absPath, rootDir)
	if filepath.IsAbs(rel) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// ToAbsolute resolves a root-relative asset path against rootDir.
func ToAbsolute(assetPath, rootDir string) string {
	if assetPath == "" || filepath.IsAbs(assetPath) || rootDir == "" {
		return assetPath
	}
	return filepath.Join(rootDir, filepath.FromSlash(assetPath))
}
