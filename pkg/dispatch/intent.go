package dispatch

import "sort"

// Intent is a classification label drawn from the routing rules.
type Intent string

// Built-in intents
const (
	IntentFeatureRequest Intent = "feature_request"
	IntentCodeQuestion   Intent = "code_question"
	IntentUIRequest      Intent = "ui_request"
	IntentBugFix         Intent = "bug_fix"
	IntentCodeReview     Intent = "code_review"
	IntentTesting        Intent = "testing"
	IntentGeneral        Intent = "general"
)

var intentDescriptions = map[Intent]string{
	IntentFeatureRequest: "User wants to build/add a new feature",
	IntentCodeQuestion:   "User has questions about existing code or general programming",
	IntentUIRequest:      "User wants UI/UX design or frontend work",
	IntentBugFix:         "User reports a bug or wants something fixed",
	IntentCodeReview:     "User wants code reviewed",
	IntentTesting:        "User wants tests written or testing help",
	IntentGeneral:        "Anything else",
}

// Description returns the built-in description of an intent, or "" when the
// intent was introduced by configuration.
func (i Intent) Description() string {
	return intentDescriptions[i]
}

// SortIntents sorts intents in place and returns them.
func SortIntents(intents []Intent) []Intent {
	sort.Slice(intents, func(a, b int) bool { return intents[a] < intents[b] })
	return intents
}
