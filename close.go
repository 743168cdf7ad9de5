package lexgo

import "errors"

// Close releases everything the index holds: mapped segment files, the open
// builder's memory charge and the directory's writer lock. It waits for
// in-flight operations to drain. Every call on a closed index, a second
// Close included, returns ErrClosed.
//
// Close does not commit. Documents sealed but not committed stay on disk as
// orphans for the next Create to sweep; documents still in the builder are
// gone.
func (idx *Index) Close() error {
	idx.op.Lock()
	defer idx.op.Unlock()
	if idx.closed.Load() {
		return ErrClosed
	}
	idx.closed.Store(true)

	snap := idx.snap.Swap(nil)

	var errs []error
	for _, seg := range snap.segments {
		if err := seg.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	snap.builder.Release()
	idx.bcache.Purge()

	if err := idx.flk.Unlock(); err != nil {
		errs = append(errs, err)
	}

	idx.logger.Info("index closed", "path", idx.dir)
	return translateError(errors.Join(errs...))
}
