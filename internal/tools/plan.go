package tools

import (
	"strings"

	"github.com/remodely/aria/internal/brain"
)

// Plan is the pre-call decision about tool exposure for one transcript.
type Plan struct {
	Mode          brain.ToolMode
	ExposeTools   bool
	UseSmartModel bool
}

// forcedCombos are explicit action commands that must produce a tool call.
var forcedCombos = [][]string{
	{"send", "text"},
	{"send", "sms"},
	{"send", "message"},
	{"send", "email"},
	{"search the web"},
	{"look up"},
	{"google"},
	{"create estimate"},
	{"create quote"},
	{"create invoice"},
	{"book appointment"},
	{"schedule appointment"},
	{"create a client"},
	{"add a client"},
	{"new client"},
	{"create lead"},
	{"add lead"},
	{"new lead"},
}

// capabilityKeywords gate tool exposure; transcripts matching none of
// these skip the schema entirely to keep plain chat turns fast.
var capabilityKeywords = []string{
	"send", "email", "text", "sms",
	"search", "look up", "find",
	"remember", "recall", "notify", "remind",
	"lead", "contact", "call",
	"estimate", "quote", "invoice", "bill",
	"appointment", "schedule", "book", "calendar",
	"web", "website", "url",
	"show me", "pull up", "get me", "list", "recent",
	"clients", "customers",
}

// smartModelKeywords upgrade the model for reasoning-heavy turns.
var smartModelKeywords = []string{"analyze", "explain"}

// PlanFor decides tool mode and model tier from the transcript. The
// keyword matching is a heuristic: it errs toward exposing tools.
func PlanFor(transcript string) Plan {
	lower := strings.ToLower(transcript)

	forced := false
	for _, combo := range forcedCombos {
		all := true
		for _, kw := range combo {
			if !strings.Contains(lower, kw) {
				all = false
				break
			}
		}
		if all {
			forced = true
			break
		}
	}

	expose := forced
	if !expose {
		for _, kw := range capabilityKeywords {
			if strings.Contains(lower, kw) {
				expose = true
				break
			}
		}
	}

	smart := forced
	if !smart {
		for _, kw := range smartModelKeywords {
			if strings.Contains(lower, kw) {
				smart = true
				break
			}
		}
	}

	plan := Plan{ExposeTools: expose, UseSmartModel: smart, Mode: brain.ToolModeNone}
	if expose {
		plan.Mode = brain.ToolModeAuto
	}
	if forced {
		plan.Mode = brain.ToolModeRequired
	}
	return plan
}
