package registry

import (
	"errors"

	"github.com/standardbeagle/assetindex/internal/asset"
	"github.com/standardbeagle/assetindex/internal/debug"
	apperrors "github.com/standardbeagle/assetindex/internal/errors"
	"github.com/standardbeagle/assetindex/internal/scan"
)

// StartScan begins an asynchronous scan of roots. Until its batch has been
// merged, InsertBatch and MergeBatch are queued. A second scan is refused with
// a recoverable *errors.RegistryError wrapping scan.ErrScanInProgress. If the
// registry is closed before the batch arrives, the batch is dropped and the
// scanner is still acknowledged. Records deleted or moved away while the scan
// runs are not brought back by its batch.
func (r *Registry) StartScan(roots []string) error {
	switch {
	case r.closed:
		return ErrClosed
	case r.scanner == nil:
		return ErrNoScanner
	case r.dispatch == nil:
		return ErrNoDispatcher
	case r.scanning:
		return errScanInProgress()
	}

	r.scanning = true
	r.tombstones = make(map[string]struct{})
	err := r.scanner.Start(roots, func(res scan.Result) {
		r.post(func() { r.completeScan(res) }, r.scanner.Acknowledge)
	})
	if err != nil {
		r.scanning = false
		r.tombstones = nil
		if errors.Is(err, scan.ErrScanInProgress) {
			return errScanInProgress()
		}
		return err
	}
	debug.LogRegistry("scan started for %d roots\n", len(roots))
	return nil
}

// errScanInProgress is returned while another scan owns the scanner. Callers
// may retry once ScanCompleted fires.
func errScanInProgress() error {
	return apperrors.NewRegistryError("scan", scan.ErrScanInProgress).WithRecoverable(true)
}

// Scanning reports whether a scan batch is outstanding.
func (r *Registry) Scanning() bool {
	return r.scanning
}

// Deferred returns the number of batches queued behind the running scan.
func (r *Registry) Deferred() int {
	return len(r.deferred)
}

func (r *Registry) completeScan(res scan.Result) {
	batch := make([]*asset.Record, 0, len(res.Records))
	for _, rec := range res.Records {
		if _, gone := r.tombstones[rec.Key()]; gone {
			debug.LogRegistry("skipping %s, removed during scan\n", rec.PrimaryPath())
			continue
		}
		batch = append(batch, rec)
	}

	mr := r.merge(batch)
	r.scanning = false
	r.tombstones = nil
	r.scanner.Acknowledge()
	debug.LogRegistry("scan merged: %d updated, %d inserted, %d skipped files, %d deferred batches\n",
		len(mr.Updated), len(mr.Inserted), len(res.Skipped), len(r.deferred))

	r.flushDeferred()
	r.sink.ScanCompleted()
}
