package registry

import (
	"fmt"
	"log"
	"path"
	"strings"

	"github.com/standardbeagle/assetindex/internal/asset"
	"github.com/standardbeagle/assetindex/internal/debug"
	apperrors "github.com/standardbeagle/assetindex/internal/errors"
	"github.com/standardbeagle/assetindex/internal/fileops"
	"github.com/standardbeagle/assetindex/pkg/pathutil"
)

// Rename gives rec a new name inside its folder. The metadata file and the
// data files whose names start with the old name are renamed with it:
// "oak.cgf.cryasset" with data "oak.cgf" renamed to "elm" becomes
// "elm.cgf.cryasset" with data "elm.cgf".
func (r *Registry) Rename(rec *asset.Record, newName string) error {
	if rec == nil {
		return apperrors.NewRegistryError("rename", ErrNotLive)
	}
	if newName == "" || strings.ContainsAny(newName, `/\`) {
		return apperrors.NewRegistryError("rename", fmt.Errorf("invalid name %q", newName)).WithPath(rec.PrimaryPath())
	}
	oldName := rec.Name()
	base := path.Base(strings.ReplaceAll(rec.PrimaryPath(), "\\", "/"))
	newPrimary := pathutil.Join(rec.Folder(), renameBase(base, oldName, newName))

	data := rec.DataFiles()
	for i, f := range data {
		dir, file := pathutil.Dir(f), path.Base(f)
		if renamed, ok := replacePrefix(file, oldName, newName); ok {
			data[i] = pathutil.Join(dir, renamed)
		}
	}
	return r.relocate("rename", rec, newPrimary, newName, data)
}

// Move relocates rec and its data files into folder, keeping file names.
func (r *Registry) Move(rec *asset.Record, folder string) error {
	if rec == nil {
		return apperrors.NewRegistryError("move", ErrNotLive)
	}
	base := path.Base(strings.ReplaceAll(rec.PrimaryPath(), "\\", "/"))
	return r.relocate("move", rec, pathutil.Join(folder, base), "", rec.DataFiles())
}

// renameBase swaps the name part of a metadata file name, falling back to
// everything before the first dot.
func renameBase(base, oldName, newName string) string {
	if renamed, ok := replacePrefix(base, oldName, newName); ok {
		return renamed
	}
	if i := strings.IndexByte(base, '.'); i > 0 {
		return newName + base[i:]
	}
	return newName
}

func replacePrefix(file, oldName, newName string) (string, bool) {
	if oldName == "" || len(file) < len(oldName) || !strings.EqualFold(file[:len(oldName)], oldName) {
		return file, false
	}
	return newName + file[len(oldName):], true
}

// relocate unindexes rec, moves its files through the mover, updates its
// paths, indexes it again and rewrites its metadata file. When the physical
// step fails rec is indexed again under its previous paths and a
// PartialIndexError reports how far the move got. A failed metadata write
// leaves rec at its new paths and is reported the same way.
func (r *Registry) relocate(op string, rec *asset.Record, newPrimary, newName string, newData []string) error {
	if !r.IsLive(rec) {
		return apperrors.NewRegistryError(op, ErrNotLive).WithPath(rec.PrimaryPath())
	}
	if !rec.IsWritable() {
		return apperrors.NewRegistryError(op, ErrReadOnly).WithPath(rec.PrimaryPath())
	}
	oldPrimary := rec.PrimaryPath()
	oldKey := rec.Key()
	newKey := pathutil.Normalize(newPrimary)
	if newKey == oldKey && (newName == "" || newName == rec.Name()) {
		return nil
	}
	if other, taken := r.byPath[newKey]; taken && other != rec {
		return apperrors.NewRegistryError(op, ErrPathTaken).WithPath(newPrimary)
	}

	newFolder := pathutil.Dir(newPrimary)
	moves := []fileops.Move{{From: oldPrimary, To: newPrimary}}
	oldData := rec.DataFilePaths()
	for i, f := range newData {
		to := pathutil.Join(newFolder, f)
		if other, taken := r.files.Owner(to); taken && other != rec {
			return apperrors.NewRegistryError(op, ErrPathTaken).WithPath(to)
		}
		if i < len(oldData) {
			moves = append(moves, fileops.Move{From: oldData[i], To: to})
		}
	}
	if typ := rec.Type(); typ != nil && typ.HasThumbnail() {
		moves = append(moves, fileops.Move{From: oldPrimary + asset.ThumbnailSuffix, To: newPrimary + asset.ThumbnailSuffix})
	}

	r.unindexFiles(rec)
	delete(r.byPath, oldKey)

	if r.mover != nil {
		if done, err := r.mover.MoveFiles(moves); err != nil {
			r.byPath[oldKey] = rec
			r.indexFiles(rec)
			return apperrors.NewPartialIndexError(op, oldPrimary, done, len(moves), err)
		}
	}

	rec.Relocate(newPrimary, newName, newData)
	r.byPath[rec.Key()] = rec
	r.indexFiles(rec)
	r.deps.Invalidate()

	var writeErr error
	if r.writer != nil {
		if err := r.writer.WriteMetadata(rec); err != nil {
			log.Printf("Warning: %s moved to %s but its metadata was not rewritten: %v", oldPrimary, newPrimary, err)
			writeErr = apperrors.NewPartialIndexError(op, newPrimary, len(moves), len(moves)+1, err)
		}
	}
	if r.tombstones != nil {
		r.tombstones[oldKey] = struct{}{}
	}
	if r.derived != nil {
		r.derived.Invalidate(oldPrimary)
	}

	if lc, ok := lifecycle(rec); ok {
		if op == "rename" {
			lc.OnRename(rec, oldPrimary)
		} else {
			lc.OnMove(rec, oldPrimary)
		}
	}
	debug.LogRegistry("%s %s -> %s\n", op, oldPrimary, newPrimary)
	r.sink.Updated([]*asset.Record{rec})
	return writeErr
}
