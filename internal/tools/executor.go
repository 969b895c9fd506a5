package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/remodely/aria/internal/brain"
	"github.com/remodely/aria/internal/crm"
	"github.com/remodely/aria/internal/knowledge"
	"github.com/remodely/aria/internal/memory"
)

// Messenger sends outbound text and email on the user's behalf.
type Messenger interface {
	SendSMS(ctx context.Context, to, message string) error
	SendEmail(ctx context.Context, to, subject, body string) error
}

// LogMessenger records outbound messages instead of sending them. Used
// when no delivery provider is configured.
type LogMessenger struct{}

func (LogMessenger) SendSMS(_ context.Context, to, message string) error {
	log.Printf("sms (not delivered): to=%s len=%d", to, len(message))
	return nil
}

func (LogMessenger) SendEmail(_ context.Context, to, subject, _ string) error {
	log.Printf("email (not delivered): to=%s subject=%q", to, subject)
	return nil
}

// Scope carries the caller identity into capability execution.
type Scope struct {
	UserID    string
	SessionID string
}

// Executor runs capabilities against the business-data collaborators.
type Executor struct {
	repos     crm.Repositories
	mem       memory.Store
	search    knowledge.Searcher
	messenger Messenger
	runners   map[Capability]runFunc
}

type runFunc func(ctx context.Context, ex *Executor, scope Scope, args map[string]any) (any, error)

func NewExecutor(repos crm.Repositories, mem memory.Store, search knowledge.Searcher, messenger Messenger) *Executor {
	if messenger == nil {
		messenger = LogMessenger{}
	}
	ex := &Executor{repos: repos, mem: mem, search: search, messenger: messenger}
	ex.runners = map[Capability]runFunc{
		CapSendSMS:           runSendSMS,
		CapSendEmail:         runSendEmail,
		CapCreateLead:        runCreateLead,
		CapUpdateLead:        runUpdateLead,
		CapAddLeadNote:       runAddLeadNote,
		CapRecentLeads:       runRecentLeads,
		CapSearchContacts:    runSearchContacts,
		CapContactDetails:    runContactDetails,
		CapContactHistory:    runContactHistory,
		CapCallsSummary:      runCallsSummary,
		CapBookAppointment:   runBookAppointment,
		CapUpcomingAppts:     runUpcomingAppointments,
		CapCancelAppointment: runCancelAppointment,
		CapRememberInfo:      runRememberInfo,
		CapRecallInfo:        runRecallInfo,
		CapWebSearch:         runWebSearch,
	}
	return ex
}

// Execute runs one model-requested tool call and encodes the outcome.
// Errors become structured failure payloads, never Go errors: the model
// sees every result and the turn keeps going.
func (ex *Executor) Execute(ctx context.Context, scope Scope, call brain.ToolCall) brain.ToolResult {
	run, ok := ex.runners[Capability(call.Name)]
	if !ok {
		return brain.FailureResult(call, "unknown capability: "+call.Name)
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return brain.FailureResult(call, fmt.Sprintf("invalid tool arguments: %v", err))
		}
	}

	payload, err := run(ctx, ex, scope, args)
	if err != nil {
		log.Printf("capability %s failed: %v", call.Name, err)
		return brain.FailureResult(call, err.Error())
	}

	b, err := json.Marshal(map[string]any{"success": true, "data": payload})
	if err != nil {
		return brain.FailureResult(call, fmt.Sprintf("encode result: %v", err))
	}
	return brain.ToolResult{CallID: call.ID, Name: call.Name, Content: string(b)}
}

func stringArg(args map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := args[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func intArg(args map[string]any, key string, fallback int) int {
	if v, ok := args[key].(float64); ok && v > 0 {
		return int(v)
	}
	return fallback
}

func runSendSMS(ctx context.Context, ex *Executor, _ Scope, args map[string]any) (any, error) {
	to := stringArg(args, "to", "phoneNumber")
	message := stringArg(args, "message", "body")
	if to == "" || message == "" {
		return nil, fmt.Errorf("send_sms requires to and message")
	}
	if err := ex.messenger.SendSMS(ctx, to, message); err != nil {
		return nil, fmt.Errorf("send sms: %w", err)
	}
	return map[string]any{"to": to, "sent": true}, nil
}

func runSendEmail(ctx context.Context, ex *Executor, _ Scope, args map[string]any) (any, error) {
	to := stringArg(args, "to", "email")
	subject := stringArg(args, "subject")
	body := stringArg(args, "body", "message")
	if to == "" || subject == "" {
		return nil, fmt.Errorf("send_email requires to, subject and body")
	}
	if err := ex.messenger.SendEmail(ctx, to, subject, body); err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}
	return map[string]any{"to": to, "subject": subject, "sent": true}, nil
}

func runCreateLead(ctx context.Context, ex *Executor, _ Scope, args map[string]any) (any, error) {
	name := stringArg(args, "name")
	if name == "" {
		return nil, fmt.Errorf("create_lead requires a name")
	}
	lead := crm.Lead{
		Name:   name,
		Phone:  stringArg(args, "phone"),
		Email:  stringArg(args, "email"),
		Source: stringArg(args, "source"),
	}
	if note := stringArg(args, "notes"); note != "" {
		lead.Notes = []string{note}
	}
	created, err := ex.repos.Leads.Create(ctx, lead)
	if err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}
	return created, nil
}

func runUpdateLead(ctx context.Context, ex *Executor, _ Scope, args map[string]any) (any, error) {
	id := stringArg(args, "leadId", "id")
	if id == "" {
		return nil, fmt.Errorf("update_lead requires leadId")
	}
	fields := map[string]string{}
	for _, k := range []string{"status", "phone", "email", "name"} {
		if v := stringArg(args, k); v != "" {
			fields[k] = v
		}
	}
	updated, err := ex.repos.Leads.Update(ctx, id, fields)
	if err != nil {
		return nil, fmt.Errorf("update lead: %w", err)
	}
	return updated, nil
}

func runAddLeadNote(ctx context.Context, ex *Executor, _ Scope, args map[string]any) (any, error) {
	id := stringArg(args, "leadId", "id")
	note := stringArg(args, "note")
	if id == "" || note == "" {
		return nil, fmt.Errorf("add_note_to_lead requires leadId and note")
	}
	updated, err := ex.repos.Leads.AddNote(ctx, id, note)
	if err != nil {
		return nil, fmt.Errorf("add note: %w", err)
	}
	return updated, nil
}

func runRecentLeads(ctx context.Context, ex *Executor, _ Scope, args map[string]any) (any, error) {
	leads, err := ex.repos.Leads.Recent(ctx, intArg(args, "limit", 5))
	if err != nil {
		return nil, fmt.Errorf("recent leads: %w", err)
	}
	return map[string]any{"leads": leads, "count": len(leads)}, nil
}

func runSearchContacts(ctx context.Context, ex *Executor, _ Scope, args map[string]any) (any, error) {
	query := stringArg(args, "query", "searchTerm")
	if query == "" {
		return nil, fmt.Errorf("search_contacts requires a query")
	}
	contacts, err := ex.repos.Contacts.Search(ctx, query, intArg(args, "limit", 5))
	if err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	return map[string]any{"contacts": contacts, "count": len(contacts)}, nil
}

func runContactDetails(ctx context.Context, ex *Executor, _ Scope, args map[string]any) (any, error) {
	id := stringArg(args, "identifier", "query")
	if id == "" {
		return nil, fmt.Errorf("get_contact_details requires an identifier")
	}
	contact, err := ex.repos.Contacts.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return map[string]any{"contact": contact}, nil
}

func runContactHistory(ctx context.Context, ex *Executor, _ Scope, args map[string]any) (any, error) {
	name := stringArg(args, "contactIdentifier", "contactName")
	if name == "" {
		return nil, fmt.Errorf("get_contact_history requires contactIdentifier")
	}
	calls, err := ex.repos.Calls.ForContact(ctx, name, intArg(args, "limit", 5))
	if err != nil {
		return nil, fmt.Errorf("contact history: %w", err)
	}
	return map[string]any{"history": calls, "count": len(calls)}, nil
}

func runCallsSummary(ctx context.Context, ex *Executor, _ Scope, args map[string]any) (any, error) {
	calls, err := ex.repos.Calls.Recent(ctx, intArg(args, "limit", 5))
	if err != nil {
		return nil, fmt.Errorf("recent calls: %w", err)
	}
	return map[string]any{"calls": calls, "count": len(calls)}, nil
}

func runBookAppointment(ctx context.Context, ex *Executor, _ Scope, args map[string]any) (any, error) {
	title := stringArg(args, "title")
	when := stringArg(args, "datetime", "date")
	if title == "" || when == "" {
		return nil, fmt.Errorf("book_appointment requires title and datetime")
	}
	startsAt, err := time.Parse(time.RFC3339, when)
	if err != nil {
		return nil, fmt.Errorf("datetime must be RFC 3339: %w", err)
	}
	appt, err := ex.repos.Appointments.Create(ctx, crm.Appointment{
		Title:       title,
		ContactName: stringArg(args, "contactName", "contact"),
		StartsAt:    startsAt,
	})
	if err != nil {
		return nil, fmt.Errorf("book appointment: %w", err)
	}
	return map[string]any{"appointment": appt}, nil
}

func runUpcomingAppointments(ctx context.Context, ex *Executor, _ Scope, args map[string]any) (any, error) {
	appts, err := ex.repos.Appointments.Upcoming(ctx, intArg(args, "limit", 5))
	if err != nil {
		return nil, fmt.Errorf("upcoming appointments: %w", err)
	}
	return map[string]any{"appointments": appts, "count": len(appts)}, nil
}

func runCancelAppointment(ctx context.Context, ex *Executor, _ Scope, args map[string]any) (any, error) {
	id := stringArg(args, "appointmentId", "id")
	if id == "" {
		return nil, fmt.Errorf("cancel_appointment requires appointmentId")
	}
	appt, err := ex.repos.Appointments.Cancel(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}
	return map[string]any{"appointment": appt, "cancelled": true}, nil
}

func runRememberInfo(ctx context.Context, ex *Executor, scope Scope, args map[string]any) (any, error) {
	key := stringArg(args, "key")
	value := stringArg(args, "value")
	if key == "" || value == "" {
		return nil, fmt.Errorf("remember_info requires key and value")
	}
	entry := memory.Entry{
		UserID:     scope.UserID,
		Key:        key,
		Value:      value,
		Category:   stringArg(args, "category"),
		Importance: intArg(args, "importance", 5),
		SessionID:  scope.SessionID,
		Source:     "capability",
	}
	if err := ex.mem.Remember(ctx, entry); err != nil {
		return nil, fmt.Errorf("remember: %w", err)
	}
	return map[string]any{"key": key, "value": value, "saved": true}, nil
}

func runRecallInfo(ctx context.Context, ex *Executor, scope Scope, args map[string]any) (any, error) {
	query := stringArg(args, "query")
	if query == "" {
		return nil, fmt.Errorf("recall_info requires a query")
	}
	entries, err := ex.mem.Recall(ctx, scope.UserID, query, 5)
	if err != nil {
		return nil, fmt.Errorf("recall: %w", err)
	}
	return map[string]any{"memories": entries, "count": len(entries)}, nil
}

func runWebSearch(ctx context.Context, ex *Executor, _ Scope, args map[string]any) (any, error) {
	query := stringArg(args, "query")
	if query == "" {
		return nil, fmt.Errorf("web_search requires a query")
	}
	if ex.search == nil {
		return nil, fmt.Errorf("no search backend configured")
	}
	docs, err := ex.search.Search(ctx, query, intArg(args, "limit", 3))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return map[string]any{"results": docs, "count": len(docs)}, nil
}
