package domain

import "errors"

var (
	ErrSelfVote               = errors.New("voter owns the submission")
	ErrDuplicateVote          = errors.New("vote already exists for this voter and submission")
	ErrInsufficientSuperVotes = errors.New("super vote balance exhausted")
	ErrSubmissionNotVotable   = errors.New("submission is not votable")
	ErrQueueExhausted         = errors.New("vote queue exhausted")
	ErrSnapshotConflict       = errors.New("snapshot already running for this key")

	ErrSubmissionNotFound = errors.New("submission not found")
	ErrChallengeNotFound  = errors.New("challenge not found")
	ErrInsufficientCoins  = errors.New("insufficient coin balance")
	ErrVoteRateLimited    = errors.New("vote rate limit exceeded")
)
