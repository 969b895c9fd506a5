// Package tools defines the typed capability set the model can invoke,
// the executor that runs them against the business-data collaborators,
// and the mapping from executed capabilities to mobile UI actions.
package tools

import "github.com/remodely/aria/internal/brain"

// Capability identifies one callable action.
type Capability string

const (
	CapSendSMS           Capability = "send_sms"
	CapSendEmail         Capability = "send_email"
	CapCreateLead        Capability = "create_lead"
	CapUpdateLead        Capability = "update_lead"
	CapAddLeadNote       Capability = "add_note_to_lead"
	CapRecentLeads       Capability = "get_recent_leads"
	CapSearchContacts    Capability = "search_contacts"
	CapContactDetails    Capability = "get_contact_details"
	CapContactHistory    Capability = "get_contact_history"
	CapCallsSummary      Capability = "get_calls_summary"
	CapBookAppointment   Capability = "book_appointment"
	CapUpcomingAppts     Capability = "get_upcoming_appointments"
	CapCancelAppointment Capability = "cancel_appointment"
	CapRememberInfo      Capability = "remember_info"
	CapRecallInfo        Capability = "recall_info"
	CapWebSearch         Capability = "web_search"
)

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func intProp(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

// definitions is the single source of truth for the exposed tool schema.
var definitions = map[Capability]brain.ToolDef{
	CapSendSMS: {
		Name:        string(CapSendSMS),
		Description: "Send a text message to a contact. Always confirm the message content with the user before sending.",
		Parameters: objectSchema(map[string]any{
			"to":          stringProp("The phone number to send the SMS to (with country code)"),
			"message":     stringProp("The text message content to send"),
			"contactName": stringProp("Optional name of the contact for confirmation"),
		}, "to", "message"),
	},
	CapSendEmail: {
		Name:        string(CapSendEmail),
		Description: "Send an email to a contact. Always confirm the email content with the user before sending.",
		Parameters: objectSchema(map[string]any{
			"to":      stringProp("The email address to send to"),
			"subject": stringProp("The email subject line"),
			"body":    stringProp("The email body content"),
		}, "to", "subject", "body"),
	},
	CapCreateLead: {
		Name:        string(CapCreateLead),
		Description: "Create a new lead in the CRM. Collect name, phone, and optionally email and notes.",
		Parameters: objectSchema(map[string]any{
			"name":   stringProp("The full name of the lead"),
			"phone":  stringProp("The phone number of the lead"),
			"email":  stringProp("The email address of the lead (optional)"),
			"notes":  stringProp("Any notes about the lead or their inquiry"),
			"source": stringProp("How the lead was acquired (e.g., referral, website, phone call)"),
		}, "name"),
	},
	CapUpdateLead: {
		Name:        string(CapUpdateLead),
		Description: "Update fields on an existing lead, such as status or contact details.",
		Parameters: objectSchema(map[string]any{
			"leadId": stringProp("The id of the lead to update"),
			"status": stringProp("New status (new, contacted, hot, closed)"),
			"phone":  stringProp("Updated phone number"),
			"email":  stringProp("Updated email address"),
		}, "leadId"),
	},
	CapAddLeadNote: {
		Name:        string(CapAddLeadNote),
		Description: "Append a note to an existing lead.",
		Parameters: objectSchema(map[string]any{
			"leadId": stringProp("The id of the lead"),
			"note":   stringProp("The note text to append"),
		}, "leadId", "note"),
	},
	CapRecentLeads: {
		Name:        string(CapRecentLeads),
		Description: "Get a list of recent leads from the CRM.",
		Parameters: objectSchema(map[string]any{
			"limit": intProp("How many leads to return (default 5)"),
		}),
	},
	CapSearchContacts: {
		Name:        string(CapSearchContacts),
		Description: "Search for contacts in the CRM by name, phone, or email.",
		Parameters: objectSchema(map[string]any{
			"query": stringProp("The search term - can be a name, phone number, or email"),
		}, "query"),
	},
	CapContactDetails: {
		Name:        string(CapContactDetails),
		Description: "Look up one contact's details by name, phone, or email.",
		Parameters: objectSchema(map[string]any{
			"identifier": stringProp("Name, phone number, or email of the contact"),
		}, "identifier"),
	},
	CapContactHistory: {
		Name:        string(CapContactHistory),
		Description: "Get the recent call history for a contact.",
		Parameters: objectSchema(map[string]any{
			"contactIdentifier": stringProp("Name of the contact"),
			"limit":             intProp("How many calls to return (default 5)"),
		}, "contactIdentifier"),
	},
	CapCallsSummary: {
		Name:        string(CapCallsSummary),
		Description: "Summarize the most recent logged calls across all contacts.",
		Parameters: objectSchema(map[string]any{
			"limit": intProp("How many calls to include (default 5)"),
		}),
	},
	CapBookAppointment: {
		Name:        string(CapBookAppointment),
		Description: "Schedule an appointment or meeting.",
		Parameters: objectSchema(map[string]any{
			"title":       stringProp("The title or purpose of the appointment"),
			"contactName": stringProp("Who the appointment is with"),
			"datetime":    stringProp("The date and time in RFC 3339 format"),
			"notes":       stringProp("Any additional notes for the appointment"),
		}, "title", "datetime"),
	},
	CapUpcomingAppts: {
		Name:        string(CapUpcomingAppts),
		Description: "List upcoming appointments.",
		Parameters: objectSchema(map[string]any{
			"limit": intProp("How many appointments to return (default 5)"),
		}),
	},
	CapCancelAppointment: {
		Name:        string(CapCancelAppointment),
		Description: "Cancel an appointment by id.",
		Parameters: objectSchema(map[string]any{
			"appointmentId": stringProp("The id of the appointment to cancel"),
		}, "appointmentId"),
	},
	CapRememberInfo: {
		Name:        string(CapRememberInfo),
		Description: "Store a fact about the user or their business for future conversations.",
		Parameters: objectSchema(map[string]any{
			"key":        stringProp("Short snake_case key for the fact (e.g., preferred_supplier)"),
			"value":      stringProp("The fact to remember"),
			"category":   stringProp("Category such as preference, business, personal"),
			"importance": intProp("Importance from 0 to 10"),
		}, "key", "value"),
	},
	CapRecallInfo: {
		Name:        string(CapRecallInfo),
		Description: "Recall stored facts relevant to a topic.",
		Parameters: objectSchema(map[string]any{
			"query": stringProp("What to recall"),
		}, "query"),
	},
	CapWebSearch: {
		Name:        string(CapWebSearch),
		Description: "Search the knowledge base and web sources for current information.",
		Parameters: objectSchema(map[string]any{
			"query": stringProp("The search query - be specific for best results"),
			"limit": intProp("Number of results to return (default 3)"),
		}, "query"),
	},
}

// Definitions returns the tool schema for a persona's capability set.
// A nil allowed list exposes everything, in stable order.
func Definitions(allowed []string) []brain.ToolDef {
	var out []brain.ToolDef
	for _, c := range orderedCapabilities {
		if allowed != nil && !contains(allowed, string(c)) {
			continue
		}
		out = append(out, definitions[c])
	}
	return out
}

// orderedCapabilities fixes the schema order handed to the model.
var orderedCapabilities = []Capability{
	CapSendSMS, CapSendEmail,
	CapCreateLead, CapUpdateLead, CapAddLeadNote, CapRecentLeads,
	CapSearchContacts, CapContactDetails, CapContactHistory, CapCallsSummary,
	CapBookAppointment, CapUpcomingAppts, CapCancelAppointment,
	CapRememberInfo, CapRecallInfo,
	CapWebSearch,
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
