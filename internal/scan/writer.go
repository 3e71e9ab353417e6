package scan

import (
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/assetindex/internal/asset"
	"github.com/standardbeagle/assetindex/internal/debug"
	apperrors "github.com/standardbeagle/assetindex/internal/errors"
	"github.com/standardbeagle/assetindex/pkg/pathutil"
)

// MetadataWriter stores records back to their metadata files in the
// layout TOMLParser reads.
type MetadataWriter struct {
	Root string
}

// NewMetadataWriter creates a writer for records under root.
func NewMetadataWriter(root string) *MetadataWriter {
	return &MetadataWriter{Root: root}
}

// WriteMetadata encodes r to its primary path, replacing the file through a
// temporary sibling, and stamps r with the fingerprint of what was written.
func (w *MetadataWriter) WriteMetadata(r *asset.Record) error {
	data, err := Encode(r)
	if err != nil {
		return apperrors.NewParseError(r.PrimaryPath(), "", err)
	}

	abs := pathutil.ToAbsolute(r.PrimaryPath(), w.Root)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return apperrors.NewFileError("mkdir", r.PrimaryPath(), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(abs), ".assetindex-*")
	if err != nil {
		return apperrors.NewFileError("write", r.PrimaryPath(), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.NewFileError("write", r.PrimaryPath(), err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewFileError("write", r.PrimaryPath(), err)
	}
	if err := os.Rename(tmp.Name(), abs); err != nil {
		return apperrors.NewFileError("write", r.PrimaryPath(), err)
	}

	r.SetFingerprint(xxhash.Sum64(data))
	debug.LogScan("wrote metadata %s (%d bytes)\n", r.PrimaryPath(), len(data))
	return nil
}
