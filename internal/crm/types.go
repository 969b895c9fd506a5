package crm

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

// Lead is a prospective customer record.
type Lead struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Status    string    `json:"status,omitempty"`
	Source    string    `json:"source,omitempty"`
	Notes     []string  `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Contact is an established customer record.
type Contact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Company   string    `json:"company,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CallRecord summarizes one logged call.
type CallRecord struct {
	ID          string    `json:"id"`
	ContactName string    `json:"contact_name"`
	Direction   string    `json:"direction,omitempty"`
	Duration    int       `json:"duration_seconds,omitempty"`
	Outcome     string    `json:"outcome,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Appointment is a scheduled meeting.
type Appointment struct {
	ID          string    `json:"id"`
	ContactName string    `json:"contact_name"`
	Title       string    `json:"title"`
	StartsAt    time.Time `json:"starts_at"`
	Cancelled   bool      `json:"cancelled,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserProfile is the slow-changing caller profile backing the profile cache.
type UserProfile struct {
	UserID         string `json:"user_id"`
	FirstName      string `json:"first_name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Company        string `json:"company,omitempty"`
	VoiceStyle     string `json:"voice_style,omitempty"`
	ResponseLength string `json:"response_length,omitempty"`
	VoiceID        string `json:"voice_id,omitempty"`
}

// Snapshot is the cached aggregate handed to the context assembler.
type Snapshot struct {
	RecentLeads []Lead       `json:"recent_leads"`
	RecentCalls []CallRecord `json:"recent_calls"`
	TotalLeads  int          `json:"total_leads"`
	NewLeads    int          `json:"new_leads"`
	HotLeads    int          `json:"hot_leads"`
}

// LeadRepository provides lead reads/writes for the tool layer.
type LeadRepository interface {
	Create(ctx context.Context, lead Lead) (Lead, error)
	Update(ctx context.Context, id string, fields map[string]string) (Lead, error)
	AddNote(ctx context.Context, id, note string) (Lead, error)
	Recent(ctx context.Context, limit int) ([]Lead, error)
	CountByStatus(ctx context.Context) (total, fresh, hot int, err error)
}

// ContactRepository provides contact lookups for the tool layer.
type ContactRepository interface {
	Search(ctx context.Context, query string, limit int) ([]Contact, error)
	Get(ctx context.Context, identifier string) (Contact, error)
}

// CallRepository provides call summaries.
type CallRepository interface {
	Recent(ctx context.Context, limit int) ([]CallRecord, error)
	ForContact(ctx context.Context, contactName string, limit int) ([]CallRecord, error)
}

// AppointmentRepository provides scheduling reads/writes.
type AppointmentRepository interface {
	Create(ctx context.Context, appt Appointment) (Appointment, error)
	Upcoming(ctx context.Context, limit int) ([]Appointment, error)
	Cancel(ctx context.Context, id string) (Appointment, error)
}

// ProfileSource loads caller profiles; the cache layer sits in front of it.
type ProfileSource interface {
	Profile(ctx context.Context, userID string) (UserProfile, error)
}

// Repositories bundles the business-data collaborators the core touches
// only through the tool layer and the snapshot fetch.
type Repositories struct {
	Leads        LeadRepository
	Contacts     ContactRepository
	Calls        CallRepository
	Appointments AppointmentRepository
	Profiles     ProfileSource
}

// FetchSnapshot assembles the informational CRM aggregate. Repository
// failures yield an empty snapshot rather than failing the turn.
func FetchSnapshot(ctx context.Context, repos Repositories) Snapshot {
	var snap Snapshot
	if repos.Leads != nil {
		if leads, err := repos.Leads.Recent(ctx, 5); err == nil {
			snap.RecentLeads = leads
		}
		if total, fresh, hot, err := repos.Leads.CountByStatus(ctx); err == nil {
			snap.TotalLeads = total
			snap.NewLeads = fresh
			snap.HotLeads = hot
		}
	}
	if repos.Calls != nil {
		if calls, err := repos.Calls.Recent(ctx, 3); err == nil {
			snap.RecentCalls = calls
		}
	}
	return snap
}
