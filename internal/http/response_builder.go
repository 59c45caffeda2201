package http

import (
	"encoding/json"
	"html/template"
	"net/http"
	"time"
)

// HX-Trigger event names the page script listens for.
const (
	eventNotification = "show-notification"
	eventFormReset    = "form:reset"
	eventListRefresh  = "list:refresh"
)

// NotificationType selects how the page styles a notification.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

// Notification is the payload of the show-notification event. The page
// keeps a single notification, so the last one set on a response wins.
type Notification struct {
	Type     NotificationType `json:"type"`
	Message  string           `json:"message"`
	Duration int64            `json:"duration"`
}

// HTMXResponseBuilder assembles a response with HX-* headers and an
// optional HTML body.
type HTMXResponseBuilder struct {
	status   int
	header   http.Header
	triggers map[string]any
	body     []byte
}

// NewHTMXResponse starts a 200 response.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		status:   http.StatusOK,
		header:   make(http.Header),
		triggers: make(map[string]any),
	}
}

// Status sets the HTTP status code.
func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.status = code
	return b
}

// Trigger adds an HX-Trigger event. Setting the same name twice keeps the
// later payload.
func (b *HTMXResponseBuilder) Trigger(name string, payload any) *HTMXResponseBuilder {
	b.triggers[name] = payload
	return b
}

// TriggerExpenseChanged fires expense:<kind> with the record id.
func (b *HTMXResponseBuilder) TriggerExpenseChanged(kind string, id int64) *HTMXResponseBuilder {
	return b.Trigger("expense:"+kind, map[string]int64{"id": id})
}

// TriggerFormReset tells the page the form was returned to its pristine state.
func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger(eventFormReset, struct{}{})
}

// TriggerListRefresh reports the page now shown.
func (b *HTMXResponseBuilder) TriggerListRefresh(page, totalPages int) *HTMXResponseBuilder {
	return b.Trigger(eventListRefresh, map[string]int{"page": page, "total_pages": totalPages})
}

// Notify shows n on the page.
func (b *HTMXResponseBuilder) Notify(n Notification) *HTMXResponseBuilder {
	return b.Trigger(eventNotification, n)
}

// TriggerSuccessNotification shows message for three seconds.
func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.Notify(Notification{Type: NotificationSuccess, Message: message, Duration: (3 * time.Second).Milliseconds()})
}

// TriggerErrorNotification shows message for five seconds.
func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.Notify(Notification{Type: NotificationError, Message: message, Duration: (5 * time.Second).Milliseconds()})
}

// Redirect makes htmx navigate the whole window to url.
func (b *HTMXResponseBuilder) Redirect(url string) *HTMXResponseBuilder {
	b.header.Set("HX-Redirect", url)
	return b
}

// BodyString sets a plain text body.
func (b *HTMXResponseBuilder) BodyString(content string) *HTMXResponseBuilder {
	b.header.Set("Content-Type", "text/plain; charset=utf-8")
	b.body = []byte(content)
	return b
}

// BodyHTML sets an already rendered HTML body.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.header.Set("Content-Type", "text/html; charset=utf-8")
	b.body = []byte(html)
	return b
}

// Write sends the response.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	h := w.Header()
	for name, values := range b.header {
		h[name] = values
	}
	if len(b.triggers) > 0 {
		if raw, err := json.Marshal(b.triggers); err == nil {
			h.Set("HX-Trigger", string(raw))
		}
	}
	w.WriteHeader(b.status)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

func errorFragment(status int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(status).
		BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

// BadRequestError answers 400 with an escaped error fragment.
func BadRequestError(message string) *HTMXResponseBuilder {
	return errorFragment(http.StatusBadRequest, message)
}

// InternalServerError answers 500 with an escaped error fragment.
func InternalServerError(message string) *HTMXResponseBuilder {
	return errorFragment(http.StatusInternalServerError, message)
}

// MethodNotAllowedError answers 405 listing the allowed methods.
func MethodNotAllowedError(allowed string) *HTMXResponseBuilder {
	b := NewHTMXResponse().Status(http.StatusMethodNotAllowed)
	b.header.Set("Allow", allowed)
	return b
}
