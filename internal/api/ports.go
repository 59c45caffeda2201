// Package api declares the ports the controller uses to reach the expenses
// backend. Adapters live in the rest (HTTP) and memory (in-process) packages.
package api

import (
	"context"

	"expenseui/internal/core"
)

// SessionStatus is the answer of the session status endpoint.
type SessionStatus struct {
	LoggedIn bool
	Username string
}

// Ports for outbound adapters.
type (
	// SessionChecker reports whether the current session is authenticated.
	SessionChecker interface {
		AuthStatus(ctx context.Context) (SessionStatus, error)
	}

	// ExpensePager returns one server-paginated, server-filtered page.
	ExpensePager interface {
		ListExpenses(ctx context.Context, page int, filter core.Filter) (core.Page, error)
	}

	ExpenseWriter interface {
		CreateExpense(ctx context.Context, d core.Draft) (core.ExpenseRecord, error)
		UpdateExpense(ctx context.Context, id int64, d core.Draft) (core.ExpenseRecord, error)
	}

	ExpenseDeleter interface {
		DeleteExpense(ctx context.Context, id int64) error
	}

	// Backend bundles every port a controller needs.
	Backend interface {
		SessionChecker
		ExpensePager
		ExpenseWriter
		ExpenseDeleter
	}
)
