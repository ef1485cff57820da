package service

import "errors"

var (
	ErrScopeIncomplete  = errors.New("lottery scope needs both a date and a facility")
	ErrScopeBusy        = errors.New("another lottery operation is in progress for this scope")
	ErrRuleNotFound     = errors.New("rule not found in the run queue")
	ErrSourceNotFound   = errors.New("source not found in the draft")
	ErrPackageNotFound  = errors.New("lottery package not found")
	ErrRunNotCompleted  = errors.New("run the whole queue before confirming")
	ErrEmptyQueue       = errors.New("the run queue is empty")
	ErrRecordsChanged   = errors.New("some drawn invitations were taken meanwhile; run the lottery again")
	ErrCommitContention = errors.New("lottery history kept changing; try again")
	ErrInvalidRecord    = errors.New("invalid invitation record")
	ErrInvalidStatus    = errors.New("status must be available, reserved or expired")
	ErrRecordNotFound   = errors.New("invitation record not found")
	ErrRecordAssigned   = errors.New("invitation record is assigned by a lottery package; cancel the package first")
)
