package repository

import "errors"

var (
	ErrRecordsUnavailable = errors.New("invitation records are no longer in the expected state")
	ErrVersionConflict    = errors.New("lottery history was modified concurrently")
	ErrPackageNotFound    = errors.New("lottery package not found")
	ErrRecordAssigned     = errors.New("invitation record is held by a lottery package")
)
