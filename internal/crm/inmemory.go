package crm

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepositories is a self-contained CRM backend for local runs and
// tests. The production deployment points the tool layer at the real
// record services instead.
type InMemoryRepositories struct {
	LeadStore        *LeadStore
	ContactStore     *ContactStore
	CallStore        *CallStore
	AppointmentStore *AppointmentStore
	ProfileStore     *ProfileStore
}

func NewInMemoryRepositories() *InMemoryRepositories {
	return &InMemoryRepositories{
		LeadStore:        &LeadStore{},
		ContactStore:     &ContactStore{},
		CallStore:        &CallStore{},
		AppointmentStore: &AppointmentStore{},
		ProfileStore:     &ProfileStore{profiles: make(map[string]UserProfile)},
	}
}

// Bundle exposes the stores through the repository interfaces.
func (s *InMemoryRepositories) Bundle() Repositories {
	return Repositories{
		Leads:        s.LeadStore,
		Contacts:     s.ContactStore,
		Calls:        s.CallStore,
		Appointments: s.AppointmentStore,
		Profiles:     s.ProfileStore,
	}
}

type LeadStore struct {
	mu    sync.RWMutex
	leads []Lead
}

func (s *LeadStore) Create(_ context.Context, lead Lead) (Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}
	if lead.Status == "" {
		lead.Status = "new"
	}
	s.leads = append(s.leads, lead)
	return lead, nil
}

func (s *LeadStore) Update(_ context.Context, id string, fields map[string]string) (Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.leads {
		if s.leads[i].ID != id {
			continue
		}
		if v, ok := fields["name"]; ok {
			s.leads[i].Name = v
		}
		if v, ok := fields["email"]; ok {
			s.leads[i].Email = v
		}
		if v, ok := fields["phone"]; ok {
			s.leads[i].Phone = v
		}
		if v, ok := fields["status"]; ok {
			s.leads[i].Status = v
		}
		return s.leads[i], nil
	}
	return Lead{}, ErrNotFound
}

func (s *LeadStore) AddNote(_ context.Context, id, note string) (Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.leads {
		if s.leads[i].ID == id {
			s.leads[i].Notes = append(s.leads[i].Notes, note)
			return s.leads[i], nil
		}
	}
	return Lead{}, ErrNotFound
}

func (s *LeadStore) Recent(_ context.Context, limit int) ([]Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Lead, len(s.leads))
	copy(out, s.leads)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *LeadStore) CountByStatus(_ context.Context) (total, fresh, hot int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total = len(s.leads)
	for _, l := range s.leads {
		switch l.Status {
		case "new":
			fresh++
		case "hot":
			hot++
		}
	}
	return total, fresh, hot, nil
}

type ContactStore struct {
	mu       sync.RWMutex
	contacts []Contact
}

func (s *ContactStore) Add(contact Contact) Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = time.Now().UTC()
	}
	s.contacts = append(s.contacts, contact)
	return contact
}

func (s *ContactStore) Search(_ context.Context, query string, limit int) ([]Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(strings.TrimSpace(query))
	var out []Contact
	for _, c := range s.contacts {
		if q == "" || strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Email), q) ||
			strings.Contains(c.Phone, q) {
			out = append(out, c)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *ContactStore) Get(ctx context.Context, identifier string) (Contact, error) {
	matches, err := s.Search(ctx, identifier, 1)
	if err != nil {
		return Contact{}, err
	}
	if len(matches) == 0 {
		return Contact{}, ErrNotFound
	}
	return matches[0], nil
}

type CallStore struct {
	mu    sync.RWMutex
	calls []CallRecord
}

func (s *CallStore) Add(call CallRecord) CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now().UTC()
	}
	s.calls = append(s.calls, call)
	return call
}

func (s *CallStore) Recent(_ context.Context, limit int) ([]CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CallRecord, len(s.calls))
	copy(out, s.calls)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *CallStore) ForContact(_ context.Context, contactName string, limit int) ([]CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(contactName)
	var out []CallRecord
	for _, c := range s.calls {
		if strings.Contains(strings.ToLower(c.ContactName), q) {
			out = append(out, c)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type AppointmentStore struct {
	mu           sync.RWMutex
	appointments []Appointment
}

func (s *AppointmentStore) Create(_ context.Context, appt Appointment) (Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = time.Now().UTC()
	}
	s.appointments = append(s.appointments, appt)
	return appt, nil
}

func (s *AppointmentStore) Upcoming(_ context.Context, limit int) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	var out []Appointment
	for _, a := range s.appointments {
		if !a.Cancelled && a.StartsAt.After(now) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *AppointmentStore) Cancel(_ context.Context, id string) (Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.appointments {
		if s.appointments[i].ID == id {
			s.appointments[i].Cancelled = true
			return s.appointments[i], nil
		}
	}
	return Appointment{}, ErrNotFound
}

type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]UserProfile
}

func (s *ProfileStore) Set(profile UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
}

func (s *ProfileStore) Profile(_ context.Context, userID string) (UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[userID]; ok {
		return p, nil
	}
	return UserProfile{UserID: userID}, nil
}
