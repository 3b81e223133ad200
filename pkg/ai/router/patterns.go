package router

import "regexp"

// Intent is the classified purpose of a query
type Intent string

const (
	IntentGreeting       Intent = "greeting"
	IntentMeta           Intent = "meta"
	IntentThanks         Intent = "thanks"
	IntentTrivial        Intent = "trivial"
	IntentDocumentQuery  Intent = "document_query"
	IntentDataAnalysis   Intent = "data_analysis"
	IntentFileOperations Intent = "file_operations"
	IntentClarification  Intent = "clarification"
	IntentGeneral        Intent = "general"
)

type fastPattern struct {
	intent Intent
	re     *regexp.Regexp
}

// Checked in order against the lower-cased, trimmed query.
var fastPatterns = []fastPattern{
	{IntentGreeting, regexp.MustCompile(`^(hi|hello|hey|good morning|good afternoon)[.!?]?\s*$`)},
	{IntentGreeting, regexp.MustCompile(`^(what's up|how are you)[.!?]?\s*$`)},

	{IntentMeta, regexp.MustCompile(`^who (are|r) you\??$`)},
	{IntentMeta, regexp.MustCompile(`^who is zara\??$`)},
	{IntentMeta, regexp.MustCompile(`^what (are|r) you\??$`)},
	{IntentMeta, regexp.MustCompile(`^what can you do\??$`)},
	{IntentMeta, regexp.MustCompile(`^(help|version|explain how you work)[.!?]?\s*$`)},
	{IntentMeta, regexp.MustCompile(`^tell me about yourself\??$`)},

	{IntentThanks, regexp.MustCompile(`^(thanks?|thank you|thx|ty)[.!?]?\s*$`)},
	{IntentThanks, regexp.MustCompile(`^(bye|goodbye|see you)[.!?]?\s*$`)},
}

func matchFastPattern(clean string) (Intent, bool) {
	for _, p := range fastPatterns {
		if p.re.MatchString(clean) {
			return p.intent, true
		}
	}
	return "", false
}

var fastResponses = map[Intent]string{
	IntentGreeting: "Hello! I'm Zara, your AI Knowledge Navigator Assistant. I'm here to help you find anything you need to know from your documents! How can I assist you today?",
	IntentMeta: "I'm Zara, your AI Knowledge Navigator Assistant! I can help you:\n\n" +
		"• Search through your uploaded documents\n" +
		"• Answer questions based on your data\n" +
		"• Create visualizations and charts\n" +
		"• Analyze your files and provide insights\n\n" +
		"What would you like to explore in your documents today?",
	IntentThanks: "You're welcome! Feel free to ask me anything about your documents or data anytime. I'm here to help! 😊",
}

const defaultFastResponse = "I'm here to help! What would you like to know?"

// FastResponse returns the canned reply for a fast-path intent.
func FastResponse(intent Intent) string {
	if r, ok := fastResponses[intent]; ok {
		return r
	}
	return defaultFastResponse
}
