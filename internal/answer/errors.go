package answer

import "errors"

// Typed rejection reasons. The caller surfaces "already answered" and "too
// late" distinctly, so these are never collapsed or silently dropped.
var (
	// ErrStaleQuestion means the submission targets a question that is not
	// the clock-current one (already closed or not yet open).
	ErrStaleQuestion = errors.New("submission is for a question that is not current")

	// ErrDuplicateSubmission means the player already has an accepted
	// submission for this question. Later submissions are rejected, never
	// overwritten.
	ErrDuplicateSubmission = errors.New("player already answered this question")

	// ErrWindowClosed means the game is not in a question phase.
	ErrWindowClosed = errors.New("answer window is closed")
)
