package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/remodely/aria/internal/brain"
	"github.com/remodely/aria/internal/session"
)

// Stage efficiency thresholds in milliseconds.
const (
	transcriptionExcellentMS = 1500
	transcriptionGoodMS      = 2000
	aiExcellentMS            = 700
	aiGoodMS                 = 1000
	voiceExcellentMS         = 700
	voiceGoodMS              = 1000
)

const longMessageChars = 100

// Metrics grades one conversation's stage timings.
type Metrics struct {
	TotalDurationMS         int64  `json:"total_duration_ms"`
	TranscriptionMS         int64  `json:"transcription_ms"`
	AIResponseMS            int64  `json:"ai_response_ms"`
	VoiceGenMS              int64  `json:"voice_gen_ms"`
	MessageCount            int    `json:"message_count"`
	TranscriptionEfficiency string `json:"transcription_efficiency"`
	AIEfficiency            string `json:"ai_efficiency"`
	VoiceEfficiency         string `json:"voice_efficiency"`
}

// SpeechPatterns summarizes how the user talks.
type SpeechPatterns struct {
	AvgMessageLength int            `json:"avg_message_length"`
	CommonWords      map[string]int `json:"common_words"`
	QuestionTypes    []string       `json:"question_types"`
}

// Suggestion is one prioritized improvement opportunity.
type Suggestion struct {
	Type       string `json:"type"`
	Area       string `json:"area"`
	Priority   string `json:"priority"`
	Suggestion string `json:"suggestion"`
	Current    string `json:"current,omitempty"`
	Target     string `json:"target,omitempty"`
}

// Analysis is the full per-conversation result.
type Analysis struct {
	Timestamp      time.Time      `json:"timestamp"`
	ConversationID string         `json:"conversation_id"`
	Metrics        Metrics        `json:"metrics"`
	SpeechPatterns SpeechPatterns `json:"speech_patterns"`
	Bottleneck     string         `json:"bottleneck"`
	Suggestions    []Suggestion   `json:"suggestions"`
	AIInsights     string         `json:"ai_insights,omitempty"`
}

// learnings is the rolling cumulative state persisted across runs.
type learnings struct {
	Version            string         `json:"version"`
	LastUpdated        time.Time      `json:"last_updated"`
	TotalConversations int            `json:"total_conversations_analyzed"`
	TranscriptionMS    []int64        `json:"transcription_ms_series"`
	CommonPhrases      map[string]int `json:"common_phrases"`
}

// TrainingStats backs the training-stats endpoint.
type TrainingStats struct {
	TotalAnalyzed      int            `json:"total_analyzed"`
	LastUpdated        time.Time      `json:"last_updated"`
	AvgTranscriptionMS int64          `json:"avg_transcription_ms"`
	TopUserPhrases     map[string]int `json:"top_user_phrases"`
	Version            string         `json:"version"`
}

// Trainer analyzes ended conversations and accumulates learnings on
// disk. The optional insight client adds a model-generated review.
type Trainer struct {
	mu       sync.Mutex
	dataDir  string
	insights brain.Client
	turnLog  *TurnLog
	now      func() time.Time
}

func NewTrainer(dataDir string, insights brain.Client, turnLog *TurnLog) (*Trainer, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create training dir: %w", err)
	}
	return &Trainer{dataDir: dataDir, insights: insights, turnLog: turnLog, now: time.Now}, nil
}

func (t *Trainer) learningsPath() string {
	return filepath.Join(t.dataDir, "learnings.json")
}

// AnalyzeConversation grades one finished session, persists the
// analysis and folds it into the cumulative learnings. Best-effort:
// callers run it from the session analysis hook.
func (t *Trainer) AnalyzeConversation(ctx context.Context, final session.Session, agg session.Aggregate) Analysis {
	analysis := Analysis{
		Timestamp:      t.now(),
		ConversationID: final.ID,
		Metrics:        gradeMetrics(final, agg),
		SpeechPatterns: analyzeSpeech(final),
		Bottleneck:     bottleneck(agg),
	}
	analysis.Suggestions = suggestions(analysis)

	if t.insights != nil && len(final.Messages) > 2 {
		if text, err := t.generateInsights(ctx, final, agg); err != nil {
			log.Printf("trainer insights skipped: %v", err)
		} else {
			analysis.AIInsights = text
		}
	}

	if err := t.saveAnalysis(analysis); err != nil {
		log.Printf("trainer save failed: %v", err)
	}
	if err := t.updateLearnings(analysis); err != nil {
		log.Printf("trainer learnings update failed: %v", err)
	}
	return analysis
}

func gradeMetrics(final session.Session, agg session.Aggregate) Metrics {
	return Metrics{
		TotalDurationMS:         agg.MeanTotalMS,
		TranscriptionMS:         agg.MeanTranscriptionMS,
		AIResponseMS:            agg.MeanAIMS,
		VoiceGenMS:              agg.MeanVoiceMS,
		MessageCount:            len(final.Messages),
		TranscriptionEfficiency: grade(agg.MeanTranscriptionMS, transcriptionExcellentMS, transcriptionGoodMS),
		AIEfficiency:            grade(agg.MeanAIMS, aiExcellentMS, aiGoodMS),
		VoiceEfficiency:         grade(agg.MeanVoiceMS, voiceExcellentMS, voiceGoodMS),
	}
}

func grade(ms, excellent, good int64) string {
	switch {
	case ms < excellent:
		return "excellent"
	case ms < good:
		return "good"
	default:
		return "needs-improvement"
	}
}

func analyzeSpeech(final session.Session) SpeechPatterns {
	patterns := SpeechPatterns{CommonWords: map[string]int{}}

	var userMessages []string
	for _, m := range final.Messages {
		if m.Role == "user" {
			userMessages = append(userMessages, m.Content)
		}
	}
	if len(userMessages) == 0 {
		return patterns
	}

	total := 0
	questionWords := []string{"what", "when", "where", "why", "how", "who"}
	for _, content := range userMessages {
		total += len(content)
		lower := strings.ToLower(content)
		for _, w := range strings.Fields(lower) {
			if len(w) > 3 {
				patterns.CommonWords[w]++
			}
		}
		for _, q := range questionWords {
			if strings.Contains(lower, q) {
				patterns.QuestionTypes = append(patterns.QuestionTypes, q)
			}
		}
	}
	patterns.AvgMessageLength = total / len(userMessages)
	return patterns
}

func bottleneck(agg session.Aggregate) string {
	switch {
	case agg.MeanTranscriptionMS >= agg.MeanAIMS && agg.MeanTranscriptionMS >= agg.MeanVoiceMS:
		return "transcription"
	case agg.MeanAIMS >= agg.MeanVoiceMS:
		return "ai"
	default:
		return "voice"
	}
}

func suggestions(a Analysis) []Suggestion {
	var out []Suggestion
	if a.Metrics.TranscriptionEfficiency == "needs-improvement" {
		out = append(out, Suggestion{
			Type:       "performance",
			Area:       "transcription",
			Priority:   "high",
			Suggestion: "Transcription is slow. Consider using smaller audio files or optimizing audio format.",
			Current:    fmt.Sprintf("%dms", a.Metrics.TranscriptionMS),
			Target:     "< 1500ms",
		})
	}
	if a.Metrics.AIEfficiency == "needs-improvement" {
		out = append(out, Suggestion{
			Type:       "performance",
			Area:       "ai-response",
			Priority:   "high",
			Suggestion: "AI response time is high. Consider reducing max tokens or caching prompts.",
			Current:    fmt.Sprintf("%dms", a.Metrics.AIResponseMS),
			Target:     "< 700ms",
		})
	}
	if a.SpeechPatterns.AvgMessageLength > longMessageChars {
		out = append(out, Suggestion{
			Type:       "ux",
			Area:       "user-speech",
			Priority:   "medium",
			Suggestion: "User tends to give long messages. Consider better interruption handling.",
		})
	}
	if a.Bottleneck != "" {
		out = append(out, Suggestion{
			Type:       "optimization",
			Area:       a.Bottleneck,
			Priority:   "high",
			Suggestion: fmt.Sprintf("%s is the main bottleneck. Focus optimization efforts here.", a.Bottleneck),
		})
	}
	return out
}

func (t *Trainer) generateInsights(ctx context.Context, final session.Session, agg session.Aggregate) (string, error) {
	var b strings.Builder
	b.WriteString("Analyze this voice assistant conversation and provide insights:\n\n")
	for _, m := range final.Messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&b, "\nMetrics:\n- Transcription: %dms\n- AI Response: %dms\n- Voice Gen: %dms\n",
		agg.MeanTranscriptionMS, agg.MeanAIMS, agg.MeanVoiceMS)
	b.WriteString("\nProvide JSON with userIntent, conversationQuality (1-10), suggestedImprovements. Keep it brief and actionable.")

	resp, err := t.insights.Chat(ctx, brain.ChatRequest{
		Messages:    []brain.Message{{Role: "user", Content: b.String()}},
		MaxTokens:   300,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (t *Trainer) saveAnalysis(a Analysis) error {
	line, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	path := filepath.Join(t.dataDir, "analysis-"+t.now().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open analysis log: %w", err)
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}

func (t *Trainer) updateLearnings(a Analysis) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.loadLearningsLocked()
	state.TotalConversations++
	state.LastUpdated = t.now()
	state.TranscriptionMS = append(state.TranscriptionMS, a.Metrics.TranscriptionMS)
	if len(state.TranscriptionMS) > 100 {
		state.TranscriptionMS = state.TranscriptionMS[len(state.TranscriptionMS)-100:]
	}
	for word, count := range a.SpeechPatterns.CommonWords {
		state.CommonPhrases[word] += count
	}
	trimPhrases(state.CommonPhrases, 50)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode learnings: %w", err)
	}
	return os.WriteFile(t.learningsPath(), data, 0o644)
}

func (t *Trainer) loadLearningsLocked() learnings {
	state := learnings{Version: "1.0", CommonPhrases: map[string]int{}}
	data, err := os.ReadFile(t.learningsPath())
	if err != nil {
		return state
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return learnings{Version: "1.0", CommonPhrases: map[string]int{}}
	}
	if state.CommonPhrases == nil {
		state.CommonPhrases = map[string]int{}
	}
	return state
}

func trimPhrases(phrases map[string]int, keep int) {
	if len(phrases) <= keep {
		return
	}
	type wc struct {
		word  string
		count int
	}
	all := make([]wc, 0, len(phrases))
	for w, c := range phrases {
		all = append(all, wc{w, c})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].count > all[j].count })
	for _, entry := range all[keep:] {
		delete(phrases, entry.word)
	}
}

// Stats reports the cumulative training state.
func (t *Trainer) Stats() TrainingStats {
	t.mu.Lock()
	state := t.loadLearningsLocked()
	t.mu.Unlock()

	var avg int64
	if n := int64(len(state.TranscriptionMS)); n > 0 {
		var sum int64
		for _, v := range state.TranscriptionMS {
			sum += v
		}
		avg = sum / n
	}
	top := map[string]int{}
	for w, c := range state.CommonPhrases {
		top[w] = c
	}
	trimPhrases(top, 10)

	return TrainingStats{
		TotalAnalyzed:      state.TotalConversations,
		LastUpdated:        state.LastUpdated,
		AvgTranscriptionMS: avg,
		TopUserPhrases:     top,
		Version:            state.Version,
	}
}

// SuggestImprovements surveys today's turn log and emits prioritized
// day-level suggestions.
func (t *Trainer) SuggestImprovements() ([]Suggestion, error) {
	if t.turnLog == nil {
		return nil, nil
	}
	summary, err := t.turnLog.Summarize()
	if err != nil {
		return nil, err
	}
	if summary.TotalTurns == 0 {
		return nil, nil
	}

	var out []Suggestion
	if summary.AvgTotalMS > slowTurnMS {
		out = append(out, Suggestion{
			Type:       "performance",
			Area:       "total",
			Priority:   "high",
			Suggestion: "Average turn time exceeds five seconds. Profile the pipeline stages.",
			Current:    fmt.Sprintf("%dms", summary.AvgTotalMS),
			Target:     fmt.Sprintf("< %dms", slowTurnMS),
		})
	}
	if summary.ErrorCount > 0 {
		out = append(out, Suggestion{
			Type:       "reliability",
			Area:       "errors",
			Priority:   "high",
			Suggestion: fmt.Sprintf("%d turns failed today. Review the error log.", summary.ErrorCount),
		})
	}
	if summary.TotalTurns > 0 && summary.SlowCount*4 >= summary.TotalTurns {
		out = append(out, Suggestion{
			Type:       "performance",
			Area:       "slow-share",
			Priority:   "medium",
			Suggestion: "A quarter or more of turns are slow. Check provider latency.",
			Current:    fmt.Sprintf("%d of %d", summary.SlowCount, summary.TotalTurns),
		})
	}
	return out, nil
}
