package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"expenseui/internal/core"
)

const maxFormBytes = 64 << 10

var (
	errInvalidRecordID = errors.New("invalid expense id")
	errBodyTooLarge    = errors.New("request body too large")
)

// draftFields are the form names ReadDraftInput understands.
var draftFields = []string{"description", "category", "base_amount", "tax_rate", "is_recurring"}

// ParseRecordID extracts the {id} path segment as a positive integer.
func ParseRecordID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("id")), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidRecordID
	}
	return id, nil
}

// ReadDraftInput reads the expense form from a urlencoded or JSON body.
// Values are trimmed and stripped of control characters; numbers in a JSON
// body keep their exact text.
func ReadDraftInput(r *http.Request) (core.DraftInput, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFormBytes+1))
	if err != nil {
		return core.DraftInput{}, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxFormBytes {
		return core.DraftInput{}, errBodyTooLarge
	}

	var values url.Values
	if isJSONBody(r, body) {
		values, err = jsonValues(body)
	} else {
		values, err = url.ParseQuery(string(body))
	}
	if err != nil {
		return core.DraftInput{}, err
	}

	get := func(key string) string { return sanitizeInput(values.Get(key)) }
	return core.DraftInput{
		Description: get("description"),
		Category:    get("category"),
		BaseAmount:  get("base_amount"),
		TaxRate:     get("tax_rate"),
		IsRecurring: parseCheckbox(get("is_recurring")),
	}, nil
}

func isJSONBody(r *http.Request, body []byte) bool {
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && mt == "application/json" {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// jsonValues flattens the known draft fields of a JSON object.
func jsonValues(body []byte) (url.Values, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode json body: %w", err)
	}

	values := url.Values{}
	for _, key := range draftFields {
		switch v := obj[key].(type) {
		case string:
			values.Set(key, v)
		case json.Number:
			values.Set(key, v.String())
		case bool:
			values.Set(key, strconv.FormatBool(v))
		}
	}
	return values, nil
}

func parseCheckbox(v string) bool {
	switch strings.ToLower(v) {
	case "", "false", "off", "0":
		return false
	default:
		return true
	}
}

// ParseConfirmed reports whether the delete confirmation was accepted. The
// page adds confirm=yes once the user accepts the prompt.
func ParseConfirmed(r *http.Request, form url.Values) bool {
	v := form.Get("confirm")
	if v == "" {
		v = r.URL.Query().Get("confirm")
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "true", "1":
		return true
	default:
		return false
	}
}

// RequireMethod returns a 405 response unless r uses one of methods.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequireGET allows GET and HEAD.
func RequireGET(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodGet, http.MethodHead)
}

// RequirePOST allows POST only.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// RequireDeleteOrPOST allows DELETE, and POST for clients without DELETE.
func RequireDeleteOrPOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodDelete, http.MethodPost)
}

// ParseFormOrFail parses the request form, answering 400 when it cannot.
func ParseFormOrFail(w http.ResponseWriter, r *http.Request) *HTMXResponseBuilder {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}
