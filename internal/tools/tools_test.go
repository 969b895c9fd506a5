package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/remodely/aria/internal/brain"
	"github.com/remodely/aria/internal/crm"
	"github.com/remodely/aria/internal/knowledge"
	"github.com/remodely/aria/internal/memory"
)

func newTestExecutor() (*Executor, *crm.InMemoryRepositories, *memory.InMemoryStore) {
	repos := crm.NewInMemoryRepositories()
	mem := memory.NewInMemoryStore()
	search := knowledge.NewStaticSearcher()
	return NewExecutor(repos.Bundle(), mem, search, nil), repos, mem
}

func TestPlanFor(t *testing.T) {
	tests := []struct {
		transcript string
		mode       brain.ToolMode
		expose     bool
		smart      bool
	}{
		{"send a text to Dana saying I'm running late", brain.ToolModeRequired, true, true},
		{"book appointment with Marco tomorrow", brain.ToolModeRequired, true, true},
		{"show me my recent leads", brain.ToolModeAuto, true, false},
		{"how's the weather today", brain.ToolModeNone, false, false},
		{"explain why the quote went up", brain.ToolModeAuto, true, true},
	}
	for _, tt := range tests {
		plan := PlanFor(tt.transcript)
		if plan.Mode != tt.mode || plan.ExposeTools != tt.expose || plan.UseSmartModel != tt.smart {
			t.Errorf("PlanFor(%q) = %+v, want mode=%s expose=%v smart=%v",
				tt.transcript, plan, tt.mode, tt.expose, tt.smart)
		}
	}
}

func TestDefinitionsFiltering(t *testing.T) {
	all := Definitions(nil)
	if len(all) != len(orderedCapabilities) {
		t.Fatalf("Definitions(nil) = %d defs, want %d", len(all), len(orderedCapabilities))
	}

	subset := Definitions([]string{"send_sms", "search_contacts"})
	if len(subset) != 2 {
		t.Fatalf("Definitions(subset) = %d defs, want 2", len(subset))
	}
	for _, def := range subset {
		if def.Name != "send_sms" && def.Name != "search_contacts" {
			t.Fatalf("Definitions(subset) leaked %q", def.Name)
		}
	}
}

func TestExecuteCreateLead(t *testing.T) {
	ex, repos, _ := newTestExecutor()

	result := ex.Execute(context.Background(), Scope{UserID: "u1"}, brain.ToolCall{
		ID:        "c1",
		Name:      "create_lead",
		Arguments: `{"name":"Dana Fields","phone":"555-0102","notes":"wants a quote"}`,
	})
	if result.IsError {
		t.Fatalf("Execute(create_lead) failed: %s", result.Content)
	}

	var payload struct {
		Success bool `json:"success"`
		Data    struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(result.Content), &payload); err != nil {
		t.Fatalf("result not JSON: %v", err)
	}
	if !payload.Success || payload.Data.Name != "Dana Fields" {
		t.Fatalf("result payload = %+v", payload)
	}

	leads, err := repos.LeadStore.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("lead not persisted, got %d", len(leads))
	}
}

func TestExecuteRememberScopesToUser(t *testing.T) {
	ex, _, mem := newTestExecutor()

	result := ex.Execute(context.Background(), Scope{UserID: "u7", SessionID: "s1"}, brain.ToolCall{
		ID:        "c1",
		Name:      "remember_info",
		Arguments: `{"key":"preferred_supplier","value":"Acme Stone","importance":8}`,
	})
	if result.IsError {
		t.Fatalf("Execute(remember_info) failed: %s", result.Content)
	}

	entry, ok, err := mem.Get(context.Background(), "u7", "preferred_supplier")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, want stored entry", ok, err)
	}
	if entry.SessionID != "s1" || entry.Importance != 8 {
		t.Fatalf("entry = %+v", entry)
	}
}

func TestExecuteUnknownCapability(t *testing.T) {
	ex, _, _ := newTestExecutor()

	result := ex.Execute(context.Background(), Scope{}, brain.ToolCall{ID: "c1", Name: "launch_rocket"})
	if !result.IsError {
		t.Fatal("unknown capability did not fail")
	}
	if !strings.Contains(result.Content, "unknown capability") {
		t.Fatalf("failure payload = %s", result.Content)
	}
}

func TestExecuteInvalidArguments(t *testing.T) {
	ex, _, _ := newTestExecutor()

	result := ex.Execute(context.Background(), Scope{}, brain.ToolCall{
		ID:        "c1",
		Name:      "send_sms",
		Arguments: `{"to": not-json`,
	})
	if !result.IsError {
		t.Fatal("malformed arguments did not fail")
	}
}

func TestExecuteBookAppointmentRejectsBadDate(t *testing.T) {
	ex, _, _ := newTestExecutor()

	result := ex.Execute(context.Background(), Scope{}, brain.ToolCall{
		ID:        "c1",
		Name:      "book_appointment",
		Arguments: `{"title":"site visit","datetime":"tomorrow at 2pm"}`,
	})
	if !result.IsError {
		t.Fatal("non-RFC3339 datetime did not fail")
	}
}

func TestActionForMappings(t *testing.T) {
	okResult := func(data string) brain.ToolResult {
		return brain.ToolResult{Content: `{"success":true,"data":` + data + `}`}
	}

	tests := []struct {
		name     string
		call     brain.ToolCall
		result   brain.ToolResult
		wantType string
	}{
		{
			name:     "sms",
			call:     brain.ToolCall{Name: "send_sms", Arguments: `{"to":"555","message":"hi"}`},
			result:   okResult(`{"to":"555","sent":true}`),
			wantType: "confirm_sms",
		},
		{
			name:     "email",
			call:     brain.ToolCall{Name: "send_email", Arguments: `{"to":"a@b.c","subject":"s","body":"b"}`},
			result:   okResult(`{"sent":true}`),
			wantType: "confirm_email",
		},
		{
			name:     "leads list",
			call:     brain.ToolCall{Name: "get_recent_leads", Arguments: `{}`},
			result:   okResult(`{"leads":[],"count":0}`),
			wantType: "show_list",
		},
		{
			name:     "history",
			call:     brain.ToolCall{Name: "get_contact_history", Arguments: `{"contactIdentifier":"Dana"}`},
			result:   okResult(`{"history":[],"count":0}`),
			wantType: "show_history",
		},
		{
			name:     "memory",
			call:     brain.ToolCall{Name: "remember_info", Arguments: `{"key":"k","value":"v"}`},
			result:   okResult(`{"saved":true}`),
			wantType: "confirm_memory",
		},
		{
			name:     "failure",
			call:     brain.ToolCall{Name: "send_sms", Arguments: `{}`},
			result:   brain.FailureResult(brain.ToolCall{Name: "send_sms"}, "missing number"),
			wantType: "error",
		},
	}
	for _, tt := range tests {
		action := ActionFor(tt.call, tt.result)
		if action == nil {
			t.Errorf("%s: ActionFor() = nil, want %s", tt.name, tt.wantType)
			continue
		}
		if action.Type != tt.wantType {
			t.Errorf("%s: ActionFor().Type = %q, want %q", tt.name, action.Type, tt.wantType)
		}
	}
}

func TestActionForNoMapping(t *testing.T) {
	result := brain.ToolResult{Content: `{"success":true,"data":{}}`}
	if action := ActionFor(brain.ToolCall{Name: "recall_info"}, result); action != nil {
		t.Fatalf("ActionFor(recall_info) = %+v, want nil", action)
	}
}

func TestExecuteBookAppointmentPersists(t *testing.T) {
	ex, repos, _ := newTestExecutor()
	when := time.Now().Add(2 * time.Hour).Format(time.RFC3339)

	result := ex.Execute(context.Background(), Scope{}, brain.ToolCall{
		ID:        "c1",
		Name:      "book_appointment",
		Arguments: `{"title":"site visit","contactName":"Dana","datetime":"` + when + `"}`,
	})
	if result.IsError {
		t.Fatalf("Execute(book_appointment) failed: %s", result.Content)
	}

	appts, err := repos.AppointmentStore.Upcoming(context.Background(), 10)
	if err != nil {
		t.Fatalf("Upcoming() error = %v", err)
	}
	if len(appts) != 1 || appts[0].Title != "site visit" {
		t.Fatalf("appointments = %+v", appts)
	}
}
