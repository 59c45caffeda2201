package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"expenseui/internal/controller"
	"expenseui/internal/core"
	"expenseui/internal/log"
	"expenseui/internal/render"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}

// handleReady checks that the expenses backend answers the session endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	checks["templates"] = "ok"

	if _, err := s.opts.Backend(nil).AuthStatus(ctx); err != nil && core.KindOf(err) != core.KindAuth {
		checks["backend"] = fmt.Sprintf("failed: %s", core.UserMessage(err))
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["backend"] = "ok"
	}

	checks["sessions"] = map[string]interface{}{
		"active": s.sessions.Size(),
		"status": "ok",
	}
	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}

	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(response)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	writes := atomic.LoadInt64(&s.appMetrics.writes)
	redirects := atomic.LoadInt64(&s.appMetrics.authRedirects)
	failures := atomic.LoadInt64(&s.appMetrics.failures)
	uptime := time.Since(s.appMetrics.uptime)

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_requests_failed_total HTTP requests answered with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_requests_failed_total counter\n")
	fmt.Fprintf(w, "http_requests_failed_total %d\n\n", traceMetrics.FailedRequests)

	fmt.Fprintf(w, "# HELP expense_writes_total Successful creates, updates and deletes\n")
	fmt.Fprintf(w, "# TYPE expense_writes_total counter\n")
	fmt.Fprintf(w, "expense_writes_total %d\n\n", writes)

	fmt.Fprintf(w, "# HELP expense_failures_total Operations that surfaced an error notification\n")
	fmt.Fprintf(w, "# TYPE expense_failures_total counter\n")
	fmt.Fprintf(w, "expense_failures_total %d\n\n", failures)

	fmt.Fprintf(w, "# HELP auth_redirects_total Sessions sent to the login page\n")
	fmt.Fprintf(w, "# TYPE auth_redirects_total counter\n")
	fmt.Fprintf(w, "auth_redirects_total %d\n\n", redirects)

	fmt.Fprintf(w, "# HELP sessions_active Live UI sessions\n")
	fmt.Fprintf(w, "# TYPE sessions_active gauge\n")
	fmt.Fprintf(w, "sessions_active %d\n\n", s.sessions.Size())

	fmt.Fprintf(w, "# HELP sessions_created_total UI sessions started\n")
	fmt.Fprintf(w, "# TYPE sessions_created_total counter\n")
	fmt.Fprintf(w, "sessions_created_total %d\n\n", s.sessions.Created())

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", uptime.Seconds())
}

// handleIndex renders the full page. The first visit confirms the backend
// session and loads page one; later visits refresh the current page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	id, ctrl := s.sessions.Get(w, r)
	err := ctrl.Bootstrap(r.Context())
	s.respond(w, r, id, ctrl, err, NewHTMXResponse(), fullPage)
}

// handleExpenses re-renders the list on GET and submits the form on POST.
func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.handleIntent(w, r, controller.RefreshIntent(), NewHTMXResponse(), listSwap)
	case http.MethodPost:
		s.handleSubmit(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	in, err := ReadDraftInput(r)
	if err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	id, ctrl, err := s.session(r, w)
	if err != nil && core.KindOf(err) != core.KindFetch {
		s.respond(w, r, id, ctrl, err, NewHTMXResponse(), formSwap)
		return
	}

	saved, err := ctrl.Submit(r.Context(), in)

	// A rejected write leaves the submitted values in the form; an accepted
	// one resets it even when the follow-up refresh fails.
	success := NewHTMXResponse()
	if saved.Accepted {
		op, msg := log.OpCreate, "Expense added"
		if saved.Kind == controller.ChangeUpdated {
			op, msg = log.OpUpdate, "Expense updated"
		}
		atomic.AddInt64(&s.appMetrics.writes, 1)
		s.structured.LogExpenseChanged(r.Context(), op, saved.Record.ID, in.Description, in.Category)
		success.TriggerFormReset().TriggerSuccessNotification(msg).TriggerExpenseChanged(string(saved.Kind), saved.Record.ID)
		if err != nil {
			s.recordFailure()
			success.TriggerErrorNotification(core.UserMessage(err))
			err = nil
		}
	}
	s.respond(w, r, id, ctrl, err, success, formSwap)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	s.handleIntent(w, r, controller.RefreshIntent(), NewHTMXResponse(), listSwap)
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	filter := core.NewFilter(sanitizeInput(r.Form.Get("category")))
	s.handleIntent(w, r, controller.FilterIntent(filter), NewHTMXResponse(), listSwap)
}

func (s *Server) handleNextPage(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	s.handleIntent(w, r, controller.NextPageIntent(), NewHTMXResponse(), listSwap)
}

func (s *Server) handlePrevPage(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	s.handleIntent(w, r, controller.PrevPageIntent(), NewHTMXResponse(), listSwap)
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	s.handleIntent(w, r, controller.CancelEditIntent(), NewHTMXResponse().TriggerFormReset(), formSwap)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	recordID, err := ParseRecordID(r)
	if err != nil {
		BadRequestError("Invalid expense id").Write(w)
		return
	}
	s.handleIntent(w, r, controller.EditIntent(recordID), NewHTMXResponse(), formSwap)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}
	recordID, err := ParseRecordID(r)
	if err != nil {
		BadRequestError("Invalid expense id").Write(w)
		return
	}
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	confirmed := ParseConfirmed(r, r.Form)

	success := NewHTMXResponse().
		TriggerSuccessNotification("Expense deleted").
		TriggerExpenseChanged(string(controller.ChangeDeleted), recordID)
	s.handleIntent(w, r, controller.DeleteIntent(recordID, confirmed), success, listSwap)
}

// handleIntent applies one controller intent and answers with the re-rendered
// fragments. success is used only when the intent completes without error.
// A list intent that also changed the form, such as deleting the edited
// record, sends the form along out of band.
func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request, in controller.Intent, success *HTMXResponseBuilder, sw swap) {
	id, ctrl, err := s.session(r, w)
	if err == nil || core.KindOf(err) == core.KindFetch {
		before := ctrl.Form()
		err = ctrl.Dispatch(r.Context(), in)
		if sw.target == render.ListTemplate && ctrl.Form() != before {
			sw = sw.with(render.FormTemplate)
		}
	}
	if err == nil && in.Kind == controller.IntentDelete {
		atomic.AddInt64(&s.appMetrics.writes, 1)
		s.structured.LogExpenseChanged(r.Context(), log.OpDelete, in.RecordID, "", "")
	}
	s.respond(w, r, id, ctrl, err, success, sw)
}

// session resolves the caller's controller and confirms its backend session
// on first use.
func (s *Server) session(r *http.Request, w http.ResponseWriter) (string, *controller.Controller, error) {
	id, ctrl := s.sessions.Get(w, r)
	if ctrl.Ready() {
		return id, ctrl, nil
	}
	return id, ctrl, ctrl.Bootstrap(r.Context())
}

// respond renders the current controller state. Auth failures end the
// session and redirect; a declined confirmation renders silently; any other
// error becomes an error notification over the last good view.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, sessionID string, ctrl *controller.Controller, err error, success *HTMXResponseBuilder, sw swap) {
	b := success
	switch core.KindOf(err) {
	case core.KindAuth:
		s.redirectToLogin(w, r, sessionID, err)
		return
	case core.KindCancelled:
		b = NewHTMXResponse()
	default:
		if err != nil {
			s.recordFailure()
			s.logger.WarnContext(r.Context(), "Operation failed",
				log.FieldSessionID, sessionID,
				log.FieldPath, r.URL.Path,
				log.FieldErrorKind, core.KindOf(err).String(),
				log.FieldError, err.Error())
			b = NewHTMXResponse().TriggerErrorNotification(core.UserMessage(err))
		}
	}

	snap := ctrl.Snapshot()
	if !isHTMX(r) {
		sw = fullPage
	}
	html, rerr := s.renderer.RenderSwap(sw.target, sw.oob, render.NewPageData(snap, s.opts.Categories))
	if rerr != nil {
		s.structured.LogError(r.Context(), "Template execution failed", rerr, log.OpRender,
			log.NewFields().WithPage(snap.State.CurrentPage, snap.State.TotalPages, snap.Filter.Category))
		InternalServerError("Failed to render expenses").Write(w)
		return
	}
	b.TriggerListRefresh(snap.State.CurrentPage, snap.State.TotalPages).BodyHTML(html).Write(w)
}

// redirectToLogin drops the session so the next visit starts a fresh
// controller, then sends the browser to the login page.
func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request, sessionID string, err error) {
	s.sessions.Evict(sessionID)
	atomic.AddInt64(&s.appMetrics.authRedirects, 1)
	s.logger.InfoContext(r.Context(), "Redirecting to login",
		log.FieldSessionID, sessionID,
		log.FieldOperation, log.OpBootstrap,
		log.FieldError, err.Error())

	if isHTMX(r) {
		NewHTMXResponse().Redirect(s.opts.LoginURL).Write(w)
		return
	}
	http.Redirect(w, r, s.opts.LoginURL, http.StatusFound)
}

// swap names the fragment an htmx request targets and the fragments sent
// next to it out of band. Plain requests always get the full page.
type swap struct {
	target string
	oob    []string
}

var (
	fullPage = swap{target: render.PageTemplate}
	listSwap = swap{target: render.ListTemplate}
	formSwap = swap{target: render.FormTemplate, oob: []string{render.ListTemplate}}
)

func (sw swap) with(name string) swap {
	return swap{target: sw.target, oob: append(append([]string(nil), sw.oob...), name)}
}
