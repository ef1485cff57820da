package lottery

import "errors"

var (
	ErrInvalidSource    = errors.New("source needs a pool, an invitation type and a quantity of at least 1")
	ErrInvalidTarget    = errors.New("unsupported target type")
	ErrInvalidMethod    = errors.New("unsupported distribution method")
	ErrNoSources        = errors.New("rule has no sources")
	ErrTargetUnresolved = errors.New("rule target does not resolve to any team")
	ErrRunInProgress    = errors.New("a lottery run is already in progress")
	ErrNothingToConfirm = errors.New("no executed assignments to confirm")
)
