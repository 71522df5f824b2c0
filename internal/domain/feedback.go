package domain

// FeedbackType is the signal submitted to the feedback endpoint.
type FeedbackType string

const (
	FeedbackHelpful    FeedbackType = "helpful"
	FeedbackNotHelpful FeedbackType = "not_helpful"
	FeedbackNeutral    FeedbackType = "neutral"
)

// Valid reports whether t is one of the known feedback types.
func (t FeedbackType) Valid() bool {
	switch t {
	case FeedbackHelpful, FeedbackNotHelpful, FeedbackNeutral:
		return true
	}
	return false
}

// Explicit reports whether t can only come from a user action.
func (t FeedbackType) Explicit() bool {
	return t == FeedbackHelpful || t == FeedbackNotHelpful
}

// FeedbackState is the lifecycle state of a tracked assistant message.
type FeedbackState string

const (
	// FeedbackAwaiting means no feedback has been recorded yet.
	FeedbackAwaiting FeedbackState = "none"
	// FeedbackGivenHelpful and friends are terminal.
	FeedbackGivenHelpful    FeedbackState = FeedbackState(FeedbackHelpful)
	FeedbackGivenNotHelpful FeedbackState = FeedbackState(FeedbackNotHelpful)
	FeedbackGivenNeutral    FeedbackState = FeedbackState(FeedbackNeutral)
)

// Terminal reports whether no further transition is allowed.
func (s FeedbackState) Terminal() bool {
	return s != FeedbackAwaiting && s != ""
}
