package agent

import (
	"regexp"
	"strings"
)

// VoiceSettings tune speech synthesis per persona.
type VoiceSettings struct {
	Speed float64 `json:"speed"`
	Pitch float64 `json:"pitch"`
}

// Persona is an immutable agent configuration: system prompt, trigger
// words, allowed capability subset and voice.
type Persona struct {
	ID            string
	Name          string
	Icon          string
	Personality   string
	TriggerWords  []string
	Capabilities  []string // nil means all capabilities
	Voice         string
	VoiceSettings VoiceSettings
	SystemPrompt  string
}

// AllCapabilities reports whether the persona is unrestricted.
func (p Persona) AllCapabilities() bool { return p.Capabilities == nil }

// Registry holds personas in declaration order. Selection scans in that
// order, so overlapping trigger sets resolve deterministically: first
// declared wins.
type Registry struct {
	ordered   []Persona
	byID      map[string]Persona
	defaultID string
}

func NewRegistry(defaultID string, personas []Persona) *Registry {
	r := &Registry{
		ordered:   make([]Persona, 0, len(personas)),
		byID:      make(map[string]Persona, len(personas)),
		defaultID: defaultID,
	}
	for _, p := range personas {
		if _, dup := r.byID[p.ID]; dup {
			continue
		}
		r.ordered = append(r.ordered, p)
		r.byID[p.ID] = p
	}
	if _, ok := r.byID[r.defaultID]; !ok && len(r.ordered) > 0 {
		r.defaultID = r.ordered[0].ID
	}
	return r
}

func (r *Registry) Get(id string) (Persona, bool) {
	p, ok := r.byID[id]
	return p, ok
}

func (r *Registry) Default() Persona {
	return r.byID[r.defaultID]
}

func (r *Registry) All() []Persona {
	out := make([]Persona, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Selection is the outcome of persona routing for one transcript.
type Selection struct {
	Persona           Persona
	CleanedTranscript string
	Triggered         bool
}

// Select routes a turn to a persona. An explicit id wins outright with the
// transcript untouched; otherwise the first persona whose trigger word
// prefixes the transcript wins and the trigger is stripped; the default
// persona handles everything else.
func (r *Registry) Select(explicitID, transcript string) Selection {
	if explicitID != "" {
		if p, ok := r.byID[explicitID]; ok {
			return Selection{Persona: p, CleanedTranscript: transcript}
		}
	}

	lower := strings.ToLower(strings.TrimSpace(transcript))
	for _, p := range r.ordered {
		for _, trigger := range p.TriggerWords {
			if !strings.HasPrefix(lower, trigger) {
				continue
			}
			cleaned := strings.TrimSpace(triggerStripPattern(trigger).ReplaceAllString(strings.TrimSpace(transcript), ""))
			if cleaned == "" {
				cleaned = transcript
			}
			return Selection{Persona: p, CleanedTranscript: cleaned, Triggered: true}
		}
	}

	return Selection{Persona: r.Default(), CleanedTranscript: transcript}
}

func triggerStripPattern(trigger string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(trigger) + `[,.]?\s*`)
}
