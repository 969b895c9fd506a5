package tools

import (
	"encoding/json"

	"github.com/remodely/aria/internal/brain"
)

// UIAction tells the mobile client what to render alongside the spoken
// reply: confirmations, lists, drafts.
type UIAction struct {
	Type     string         `json:"type"`
	ListType string         `json:"listType,omitempty"`
	Data     map[string]any `json:"data"`
}

type uiBuilder func(args map[string]any, data map[string]any, ok bool) *UIAction

// uiBuilders maps executed capabilities to UI actions. Not every
// capability renders one.
var uiBuilders = map[Capability]uiBuilder{
	CapSendSMS: func(args, _ map[string]any, ok bool) *UIAction {
		return &UIAction{Type: "confirm_sms", Data: map[string]any{
			"to":          firstString(args, "to", "phoneNumber"),
			"message":     firstString(args, "message", "body"),
			"contactName": firstString(args, "contactName"),
			"status":      sentStatus(ok, "sent", "failed"),
		}}
	},
	CapSendEmail: func(args, _ map[string]any, ok bool) *UIAction {
		return &UIAction{Type: "confirm_email", Data: map[string]any{
			"to":      firstString(args, "to", "email"),
			"subject": firstString(args, "subject"),
			"body":    firstString(args, "body", "message"),
			"status":  sentStatus(ok, "sent", "failed"),
		}}
	},
	CapRecentLeads: func(args, data map[string]any, _ bool) *UIAction {
		return &UIAction{Type: "show_list", ListType: "leads", Data: map[string]any{
			"items": data["leads"],
			"count": data["count"],
		}}
	},
	CapSearchContacts: func(args, data map[string]any, _ bool) *UIAction {
		return &UIAction{Type: "show_list", ListType: "contacts", Data: map[string]any{
			"items": data["contacts"],
			"query": firstString(args, "query", "searchTerm"),
			"count": data["count"],
		}}
	},
	CapContactDetails: func(args, data map[string]any, _ bool) *UIAction {
		items := []any{}
		if c, ok := data["contact"]; ok && c != nil {
			items = append(items, c)
		}
		return &UIAction{Type: "show_list", ListType: "contacts", Data: map[string]any{
			"items": items,
			"query": firstString(args, "identifier"),
			"count": len(items),
		}}
	},
	CapContactHistory: func(args, data map[string]any, _ bool) *UIAction {
		return &UIAction{Type: "show_history", Data: map[string]any{
			"contact": firstString(args, "contactIdentifier", "contactName"),
			"history": data["history"],
			"count":   data["count"],
		}}
	},
	CapUpcomingAppts: func(_, data map[string]any, _ bool) *UIAction {
		return &UIAction{Type: "show_list", ListType: "appointments", Data: map[string]any{
			"items": data["appointments"],
			"count": data["count"],
		}}
	},
	CapBookAppointment: func(args, data map[string]any, ok bool) *UIAction {
		appt := data["appointment"]
		if appt == nil {
			appt = args
		}
		return &UIAction{Type: "confirm_appointment", Data: map[string]any{
			"appointment": appt,
			"status":      sentStatus(ok, "scheduled", "failed"),
		}}
	},
	CapRememberInfo: func(args, _ map[string]any, ok bool) *UIAction {
		return &UIAction{Type: "confirm_memory", Data: map[string]any{
			"key":    firstString(args, "key"),
			"value":  firstString(args, "value"),
			"status": sentStatus(ok, "saved", "failed"),
		}}
	},
}

// ActionFor derives the UI action for one executed tool call. Failed
// executions of any capability collapse to an error action.
func ActionFor(call brain.ToolCall, result brain.ToolResult) *UIAction {
	args := map[string]any{}
	_ = json.Unmarshal([]byte(call.Arguments), &args)

	if result.IsError {
		message := ""
		var payload map[string]any
		if json.Unmarshal([]byte(result.Content), &payload) == nil {
			message, _ = payload["error"].(string)
		}
		return &UIAction{Type: "error", Data: map[string]any{
			"action":  call.Name,
			"message": message,
		}}
	}

	build, ok := uiBuilders[Capability(call.Name)]
	if !ok {
		return nil
	}

	data := map[string]any{}
	var payload map[string]any
	if json.Unmarshal([]byte(result.Content), &payload) == nil {
		if d, ok := payload["data"].(map[string]any); ok {
			data = d
		}
	}
	return build(args, data, true)
}

func firstString(args map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := args[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func sentStatus(ok bool, success, failure string) string {
	if ok {
		return success
	}
	return failure
}
