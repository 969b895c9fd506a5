// Package assemble builds the per-turn prompt context: persona system
// prompt, caller profile, CRM snapshot, recalled memories, knowledge
// hits and the trimmed conversation history.
package assemble

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/remodely/aria/internal/agent"
	"github.com/remodely/aria/internal/brain"
	"github.com/remodely/aria/internal/cache"
	"github.com/remodely/aria/internal/crm"
	"github.com/remodely/aria/internal/knowledge"
	"github.com/remodely/aria/internal/memory"
	"github.com/remodely/aria/internal/session"
)

const crmCacheKey = "global_crm_data"

// deepMemoryKeywords gate semantic recall: most turns skip it for speed.
var deepMemoryKeywords = []string{
	"remember", "earlier", "before", "last time", "you said", "what did",
}

// NeedsDeepMemory reports whether the transcript warrants semantic recall.
func NeedsDeepMemory(transcript string) bool {
	lower := strings.ToLower(transcript)
	for _, kw := range deepMemoryKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Input is everything one turn contributes to prompt assembly.
type Input struct {
	Persona           agent.Persona
	SessionMessages   []session.Message
	RequestHistory    []brain.Message
	Transcript        string
	RawTranscript     string
	UserID            string
	AuthenticatedName string
	Now               time.Time
}

// PromptContext is the assembled model input.
type PromptContext struct {
	System   string
	History  []brain.Message
	UserText string
}

// Assembler owns the read-through caches and collaborator handles.
type Assembler struct {
	profileCache   *cache.Cache[crm.UserProfile]
	crmCache       *cache.Cache[crm.Snapshot]
	repos          crm.Repositories
	mem            memory.Store
	search         knowledge.Searcher
	historyWindow  int
	knowledgeLimit int
}

func New(ttl time.Duration, repos crm.Repositories, mem memory.Store, search knowledge.Searcher, historyWindow, knowledgeLimit int) *Assembler {
	if historyWindow <= 0 {
		historyWindow = 10
	}
	if knowledgeLimit <= 0 {
		knowledgeLimit = 3
	}
	return &Assembler{
		profileCache:   cache.New[crm.UserProfile](ttl),
		crmCache:       cache.New[crm.Snapshot](ttl),
		repos:          repos,
		mem:            mem,
		search:         search,
		historyWindow:  historyWindow,
		knowledgeLimit: knowledgeLimit,
	}
}

// InvalidateCRM drops the cached snapshot after a write-path capability.
func (a *Assembler) InvalidateCRM() {
	a.crmCache.Invalidate(crmCacheKey)
}

// Profile returns the caller profile through the cache.
func (a *Assembler) Profile(ctx context.Context, userID string) crm.UserProfile {
	if p, ok := a.profileCache.Get("profile:" + userID); ok {
		return p
	}
	var profile crm.UserProfile
	if a.repos.Profiles != nil {
		p, err := a.repos.Profiles.Profile(ctx, userID)
		if err != nil {
			log.Printf("profile fetch failed: user=%s %v", userID, err)
		} else {
			profile = p
		}
	}
	if profile.UserID == "" {
		profile.UserID = userID
	}
	a.profileCache.Set("profile:"+userID, profile)
	return profile
}

// CRMSnapshot returns the shared CRM aggregate through the cache.
func (a *Assembler) CRMSnapshot(ctx context.Context) crm.Snapshot {
	if snap, ok := a.crmCache.Get(crmCacheKey); ok {
		return snap
	}
	snap := crm.FetchSnapshot(ctx, a.repos)
	a.crmCache.Set(crmCacheKey, snap)
	return snap
}

// Build assembles the prompt context for one turn.
func (a *Assembler) Build(ctx context.Context, in Input) PromptContext {
	profile := a.Profile(ctx, in.UserID)
	snap := a.CRMSnapshot(ctx)

	raw := in.RawTranscript
	if raw == "" {
		raw = in.Transcript
	}

	var recalled []memory.Entry
	if NeedsDeepMemory(raw) {
		entries, err := a.mem.Recall(ctx, in.UserID, in.Transcript, 5)
		if err != nil {
			log.Printf("memory recall failed: user=%s %v", in.UserID, err)
		} else {
			recalled = entries
		}
	}

	var goals []memory.Entry
	if entries, err := a.mem.WithPrefix(ctx, in.UserID, "conversation_goal_"); err == nil {
		goals = entries
	}

	name := a.resolveName(ctx, in, profile)
	history := a.mergedHistory(in)

	var b strings.Builder
	b.WriteString(strings.TrimSpace(in.Persona.SystemPrompt))
	fmt.Fprintf(&b, "\n\nCURRENT DATE/TIME: %s\n", in.Now.Format("Monday, January 2, 2006 at 3:04 PM MST"))
	fmt.Fprintf(&b, "CURRENT USER: %s\n", name)

	if task := detectTask(history, name); task != "" {
		fmt.Fprintf(&b, "ACTIVE TASK: %s\n", task)
	}

	writeProfileBlock(&b, name, profile)
	writeCRMBlock(&b, snap)

	if len(recalled) > 0 {
		b.WriteString("\nRELEVANT MEMORIES:\n")
		for _, e := range recalled {
			if e.Key == "user_name" || strings.HasPrefix(e.Key, "conversation_goal_") {
				continue
			}
			fmt.Fprintf(&b, "- %s: %s\n", e.Key, e.Value)
		}
	}

	for _, g := range goals {
		fmt.Fprintf(&b, "\nCONVERSATION GOAL: %s\nStay focused on helping achieve this goal. Gently redirect if the conversation drifts off-topic.\n", g.Value)
		break
	}

	a.writeKnowledgeBlock(ctx, &b, in.Transcript)

	if exchange := lastExchange(history, name); exchange != "" {
		b.WriteString("\n" + exchange + "\n")
	}

	b.WriteString("\nRemember: Keep responses brief (15-25 words max for voice). Use contractions. Be natural.")

	return PromptContext{
		System:   b.String(),
		History:  history,
		UserText: in.Transcript,
	}
}

// resolveName applies the display-name priority chain.
func (a *Assembler) resolveName(ctx context.Context, in Input, profile crm.UserProfile) string {
	if in.AuthenticatedName != "" {
		return in.AuthenticatedName
	}
	if profile.FirstName != "" {
		return profile.FirstName
	}
	if entry, ok, err := a.mem.Get(ctx, in.UserID, "user_name"); err == nil && ok && entry.Value != "" {
		return entry.Value
	}
	return "there"
}

// mergedHistory prefers whichever side carries more context, then trims
// to the window.
func (a *Assembler) mergedHistory(in Input) []brain.Message {
	stored := make([]brain.Message, 0, len(in.SessionMessages))
	for _, m := range in.SessionMessages {
		stored = append(stored, brain.Message{Role: m.Role, Content: m.Content})
	}

	merged := in.RequestHistory
	if len(stored) > len(merged) {
		merged = stored
	}
	if len(merged) > a.historyWindow {
		merged = merged[len(merged)-a.historyWindow:]
	}
	return merged
}

func writeProfileBlock(b *strings.Builder, name string, profile crm.UserProfile) {
	b.WriteString("\nUSER PROFILE:\n")
	fmt.Fprintf(b, "- Owner: %s (ALWAYS use this name)\n", name)
	if profile.Company != "" {
		fmt.Fprintf(b, "- Company: %s\n", profile.Company)
	}
	if profile.Email != "" {
		fmt.Fprintf(b, "- Email: %s\n", profile.Email)
	}
	if profile.Phone != "" {
		fmt.Fprintf(b, "- Phone: %s\n", profile.Phone)
	}
	if profile.VoiceStyle != "" || profile.ResponseLength != "" {
		style := profile.VoiceStyle
		if style == "" {
			style = "friendly"
		}
		length := profile.ResponseLength
		if length == "" {
			length = "concise"
		}
		fmt.Fprintf(b, "- Preferred style: %s, %s\n", style, length)
	}
}

func writeCRMBlock(b *strings.Builder, snap crm.Snapshot) {
	if len(snap.RecentLeads) > 0 {
		b.WriteString("\nRECENT LEADS IN CRM:\n")
		for _, lead := range snap.RecentLeads {
			line := "- " + lead.Name
			if lead.Status != "" {
				line += " (" + lead.Status + ")"
			}
			if lead.Phone != "" {
				line += ", " + lead.Phone
			}
			b.WriteString(line + "\n")
		}
	}
	if len(snap.RecentCalls) > 0 {
		b.WriteString("\nRECENT CALLS:\n")
		for _, call := range snap.RecentCalls {
			name := call.ContactName
			if name == "" {
				name = "Unknown"
			}
			direction := call.Direction
			if direction == "" {
				direction = "call"
			}
			mins := call.Duration / 60
			line := fmt.Sprintf("- %s (%s, %d min)", name, direction, mins)
			if call.Outcome != "" {
				line += " - " + call.Outcome
			}
			b.WriteString(line + "\n")
		}
	}
	if snap.TotalLeads > 0 {
		fmt.Fprintf(b, "\nCRM STATS: %d total leads, %d new, %d hot\n", snap.TotalLeads, snap.NewLeads, snap.HotLeads)
	}
}

func (a *Assembler) writeKnowledgeBlock(ctx context.Context, b *strings.Builder, query string) {
	if a.search == nil {
		return
	}
	docs, err := a.search.Search(ctx, query, a.knowledgeLimit)
	if err != nil {
		log.Printf("knowledge search skipped: %v", err)
		return
	}
	if len(docs) == 0 {
		return
	}
	b.WriteString("\nKNOWLEDGE BASE:\n")
	for i, d := range docs {
		content := d.Content
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		fmt.Fprintf(b, "%d. %s\n", i+1, content)
	}
}

// lastExchange surfaces what was just discussed so the model keeps the
// thread across turns.
func lastExchange(history []brain.Message, name string) string {
	if len(history) < 2 {
		return ""
	}
	var assistantLine, userLine string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "assistant" && assistantLine == "" {
			assistantLine = fmt.Sprintf("YOUR LAST RESPONSE: %q", history[i].Content)
		}
		if history[i].Role == "user" && assistantLine != "" {
			userLine = fmt.Sprintf("%s'S LAST MESSAGE: %q", strings.ToUpper(name), history[i].Content)
			break
		}
	}
	if assistantLine == "" {
		return ""
	}
	if userLine == "" {
		return assistantLine
	}
	return userLine + "\n" + assistantLine
}

// detectTask infers an in-flight task from the last assistant message.
func detectTask(history []brain.Message, name string) string {
	if len(history) < 2 {
		return ""
	}
	last := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "assistant" {
			last = history[i].Content
			break
		}
	}
	if last == "" {
		return ""
	}
	lower := strings.ToLower(last)
	switch {
	case strings.Contains(last, "?"):
		return fmt.Sprintf("WAITING FOR ANSWER - %s is responding to your question. Use their answer to continue the task.", name)
	case strings.Contains(lower, "client") || strings.Contains(lower, "lead"):
		return "TASK IN PROGRESS - Creating a client/lead. Continue collecting info or execute."
	case strings.Contains(lower, "estimate") || strings.Contains(lower, "quote"):
		return "TASK IN PROGRESS - Creating an estimate. Continue collecting info or execute."
	}
	return ""
}
