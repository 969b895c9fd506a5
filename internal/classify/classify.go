package classify

import (
	"regexp"
	"strings"
)

// Kind labels what a transcript is before any reasoning happens.
type Kind string

const (
	KindNoise      Kind = "noise"
	KindDevCommand Kind = "dev_command"
	KindLogCommand Kind = "log_command"
	KindNormal     Kind = "normal"
)

// Result carries the classification and, for commands, the extracted payload.
type Result struct {
	Kind    Kind
	Payload string
}

// Background-noise patterns: transcription artifacts from ads, video outros
// and pure fillers that should never reach the model. Kept as data so the
// rule set stays declarative and testable in isolation.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^thanks for watching`),
	regexp.MustCompile(`(?i)^please use earphones`),
	regexp.MustCompile(`(?i)^subscribe`),
	regexp.MustCompile(`(?i)^link in (the )?description`),
	regexp.MustCompile(`(?i)^like and subscribe`),
	regexp.MustCompile(`(?i)^hit the bell`),
	regexp.MustCompile(`(?i)^(um+|uh+|ah+|oh+|hmm+)$`),
	regexp.MustCompile(`^\.+$`),
	regexp.MustCompile(`^$`),
}

var devCommandPrefix = regexp.MustCompile(`(?i)^(copilot|co pilot|co-pilot)[,.\s]*`)

var logCommandPhrases = []string{
	"save log",
	"capture log",
	"send to claude",
	"improve this",
}

var logCommandStrip = []*regexp.Regexp{
	regexp.MustCompile(`(?i)save log[s]?`),
	regexp.MustCompile(`(?i)capture log[s]?`),
	regexp.MustCompile(`(?i)send to claude`),
	regexp.MustCompile(`(?i)improve this`),
	regexp.MustCompile(`(?i)aria[,.]?`),
}

// DefaultImprovementRequest is used when a log command carries no ask of its own.
const DefaultImprovementRequest = "Review recent voice interactions and suggest improvements"

// Classify orders checks cheapest-first: noise, then dev command, then log
// command, else normal processing continues.
func Classify(transcript string) Result {
	trimmed := strings.TrimSpace(transcript)

	if len(trimmed) < 3 {
		return Result{Kind: KindNoise}
	}
	for _, p := range noisePatterns {
		if p.MatchString(trimmed) {
			return Result{Kind: KindNoise}
		}
	}

	if devCommandPrefix.MatchString(trimmed) {
		cmd := strings.TrimSpace(devCommandPrefix.ReplaceAllString(trimmed, ""))
		return Result{Kind: KindDevCommand, Payload: cmd}
	}

	lower := strings.ToLower(trimmed)
	for _, phrase := range logCommandPhrases {
		if strings.Contains(lower, phrase) {
			req := trimmed
			for _, p := range logCommandStrip {
				req = p.ReplaceAllString(req, "")
			}
			req = strings.TrimSpace(req)
			if req == "" {
				req = DefaultImprovementRequest
			}
			return Result{Kind: KindLogCommand, Payload: req}
		}
	}

	return Result{Kind: KindNormal}
}

var endingPhrases = []string{
	"goodbye", "bye", "good bye", "see you", "see ya",
	"talk later", "talk to you later", "ttyl",
	"have a good", "take care", "goodnight", "good night",
	"that's all", "that is all", "i'm done", "all done",
	"thanks bye", "thank you bye", "stop listening",
}

// IsConversationEnding reports whether the caller is wrapping up.
func IsConversationEnding(transcript string) bool {
	lower := strings.ToLower(strings.TrimSpace(transcript))
	for _, phrase := range endingPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Name extraction: only explicit introductions, never wake-word fragments.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:my name is|i'm|im|i am|this is|call me)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`),
	regexp.MustCompile(`^([A-Z][a-z]+)\s+(?:here|speaking)(?:\s|$)`),
}

// Assistant-name variants, greetings, fillers and pronouns that the name
// patterns misfire on.
var excludedNames = map[string]struct{}{
	"aria": {}, "arya": {}, "area": {},
	"hey": {}, "hi": {}, "hello": {}, "yo": {},
	"ok": {}, "okay": {}, "sure": {}, "yes": {}, "no": {}, "yeah": {}, "yep": {}, "nope": {},
	"uh": {}, "um": {}, "ah": {}, "oh": {}, "eh": {}, "hmm": {}, "hm": {}, "uhh": {}, "umm": {},
	"i": {}, "you": {}, "we": {}, "they": {}, "it": {}, "the": {}, "a": {}, "an": {},
}

// ExtractName returns the first plausible introduced name, or "".
func ExtractName(transcript string) string {
	for _, p := range namePatterns {
		m := p.FindStringSubmatch(transcript)
		if len(m) < 2 {
			continue
		}
		name := strings.TrimSpace(m[1])
		first := strings.ToLower(strings.Fields(name)[0])
		if _, skip := excludedNames[first]; skip {
			continue
		}
		return name
	}
	return ""
}
