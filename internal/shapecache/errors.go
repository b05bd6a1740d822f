package shapecache

import (
	"errors"
	"fmt"
)

// UnpublishedError reports a key the Bureau has no archive for, either
// because no series exists for the geography/vintage or because the
// upstream answered 404. It is authoritative: callers fall back to
// null geometry without retrying.
type UnpublishedError struct {
	Key Key
	URL string
}

func (e *UnpublishedError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("shapecache: no published archive for %s (%s)", e.Key, e.URL)
	}
	return fmt.Sprintf("shapecache: no published archive for %s", e.Key)
}

// IsUnpublished reports whether err carries an UnpublishedError.
func IsUnpublished(err error) bool {
	var ue *UnpublishedError
	return errors.As(err, &ue)
}

// CorruptArchiveError reports an archive that failed ZIP validation.
// A cached archive that turns corrupt is evicted and fetched once more
// before this surfaces.
type CorruptArchiveError struct {
	Path string
	Err  error
}

func (e *CorruptArchiveError) Error() string {
	return fmt.Sprintf("shapecache: corrupt archive %s: %v", e.Path, e.Err)
}

func (e *CorruptArchiveError) Unwrap() error { return e.Err }

// IsCorrupt reports whether err carries a CorruptArchiveError.
func IsCorrupt(err error) bool {
	var ce *CorruptArchiveError
	return errors.As(err, &ce)
}
