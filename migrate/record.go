package migrate

import (
	"context"

	"github.com/autom8ter/docrepo"
)

// Status is the state of a ledger record
type Status string

const (
	// Performing is the state of a migration that started and has not finished. A record left in this
	// state means the process died mid-run.
	Performing Status = "PERFORMING"
	// Success is the state of a migration whose body committed
	Success Status = "SUCCESS"
	// Fail is the state of a migration whose body failed and was rolled back
	Fail Status = "FAIL"
)

// Record is a ledger entry. Dates are unix epoch milliseconds.
type Record struct {
	ID        string `json:"id"`
	StartDate int64  `json:"startDate"`
	EndDate   *int64 `json:"endDate"`
	Status    Status `json:"status"`
}

// Func is the body of a migration. tx is bound to the migration's atomic scope: every repository
// built from it shares the scope.
type Func func(ctx context.Context, tx *docrepo.Manager) error

// Migration is a named migration. IDs must be stable across deployments.
type Migration struct {
	ID string
	Up Func
}
