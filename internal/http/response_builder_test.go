package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeTriggers(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	raw := w.Header().Get("HX-Trigger")
	if raw == "" {
		t.Fatal("HX-Trigger header not set")
	}
	var triggers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v (%s)", err, raw)
	}
	return triggers
}

func TestHTMXResponseBuilder_PlainBody(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusTooManyRequests).
		BodyString("slow down").
		Write(w)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Body.String() != "slow down" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "slow down")
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Errorf("HX-Trigger set without triggers: %q", w.Header().Get("HX-Trigger"))
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerExpenseChanged("created", 42).
		TriggerFormReset().
		TriggerListRefresh(2, 3).
		TriggerSuccessNotification("Expense added").
		BodyHTML("<div></div>").
		Write(w)

	triggers := decodeTriggers(t, w)
	for _, name := range []string{"expense:created", "form:reset", "list:refresh", "show-notification"} {
		if _, ok := triggers[name]; !ok {
			t.Errorf("HX-Trigger missing %q", name)
		}
	}
	if got := string(triggers["expense:created"]); got != `{"id":42}` {
		t.Errorf("expense:created = %s", got)
	}
	if got := string(triggers["list:refresh"]); got != `{"page":2,"total_pages":3}` {
		t.Errorf("list:refresh = %s", got)
	}

	var n Notification
	if err := json.Unmarshal(triggers["show-notification"], &n); err != nil {
		t.Fatal(err)
	}
	if n != (Notification{Type: NotificationSuccess, Message: "Expense added", Duration: 3000}) {
		t.Errorf("notification = %+v", n)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHTMXResponseBuilder_LaterNotificationWins(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerSuccessNotification("Expense added").
		TriggerErrorNotification("Failed to load expenses").
		Write(w)

	var n Notification
	if err := json.Unmarshal(decodeTriggers(t, w)["show-notification"], &n); err != nil {
		t.Fatal(err)
	}
	if n.Type != NotificationError || n.Duration != 5000 {
		t.Errorf("notification = %+v, want the error one", n)
	}
}

func TestHTMXResponseBuilder_Redirect(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().Redirect("/login").Write(w)

	if got := w.Header().Get("HX-Redirect"); got != "/login" {
		t.Errorf("HX-Redirect = %q, want %q", got, "/login")
	}
	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestErrorFragments(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{
			name:       "bad request",
			builder:    BadRequestError("Invalid expense id"),
			wantStatus: http.StatusBadRequest,
			wantBody:   `<div class="error">Invalid expense id</div>`,
		},
		{
			name:       "internal server error",
			builder:    InternalServerError("Failed to render page"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `<div class="error">Failed to render page</div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestErrorFragment_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()

	BadRequestError("<script>alert('xss')</script>").Write(w)

	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("Error response did not escape HTML")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("Error response did not properly escape HTML entities")
	}
}

func TestMethodNotAllowedError(t *testing.T) {
	w := httptest.NewRecorder()

	MethodNotAllowedError("GET, POST").Write(w)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
	if w.Header().Get("Allow") != "GET, POST" {
		t.Errorf("Allow header = %q, want %q", w.Header().Get("Allow"), "GET, POST")
	}
}
