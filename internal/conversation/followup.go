package conversation

import "strings"

// deicticTerms are pronouns/demonstratives that typically refer back to
// something established earlier in the conversation.
var deicticTerms = []string{"that", "those", "this", "it", "they", "them"}

// continuationPhrases signal the user is extending the prior exchange
// rather than asking a standalone question.
var continuationPhrases = []string{"what about", "tell me more", "and "}

const followupWordCountThreshold = 10

// isFollowup implements the follow-up heuristic: a pattern match on
// deictic/continuation language, OR a short query asked against a
// non-empty window. It is pure given the query text and whether the
// session already has history — callers never need to alter control flow
// based on conversation content beyond those two facts.
func isFollowup(query string, windowNonEmpty bool) bool {
	lower := strings.ToLower(strings.TrimSpace(query))
	if lower == "" {
		return false
	}

	words := strings.Fields(lower)
	for _, term := range deicticTerms {
		for _, w := range words {
			if strings.Trim(w, "?.,!") == term {
				return true
			}
		}
	}
	for _, phrase := range continuationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}

	return windowNonEmpty && len(words) < followupWordCountThreshold
}
