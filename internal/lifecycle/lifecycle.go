// Package lifecycle implements the job status pipeline guard. Everything
// in here is pure: callers fetch a fresh Context from persisted state,
// ask for a decision, and persist the target status only when allowed.
package lifecycle

import (
	"fmt"

	"github.com/rugflowhq/rugflow/constants"
)

// Context is a snapshot of job prerequisites evaluated at decision time.
// It is recomputed from the current job, rug, estimate and payment rows
// before every transition attempt; the guard never reads storage itself.
type Context struct {
	HasAnalyzedRugs      bool
	HasApprovedEstimates bool
	HasPortalLink        bool
	HasPaidPayment       bool
	AllServicesComplete  bool
	HasDeliveryAddress   bool
	// HasDeliveryWindow is carried for callers rendering schedule state;
	// no transition validator consults it.
	HasDeliveryWindow bool
}

// Decision is the guard verdict. Error is a user-facing message and is
// empty exactly when Allowed is true.
type Decision struct {
	Allowed bool
	Error   string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(format string, args ...any) Decision {
	return Decision{Error: fmt.Sprintf(format, args...)}
}

// targetValidators holds per-target prerequisites. A validator returns an
// empty string when the prerequisite is met, otherwise the message shown
// to the user. Targets without an entry allow the forward step once the
// ordering rules pass.
var targetValidators = map[constants.JobStatus]func(Context) string{
	constants.JobStatusInspected: func(c Context) string {
		if !c.HasAnalyzedRugs {
			return "At least one rug must be analyzed before the job can be marked inspected."
		}
		return ""
	},
	constants.JobStatusEstimateSent: func(c Context) string {
		if !c.HasApprovedEstimates {
			return "The estimate must be approved internally before it can be sent to the client."
		}
		if !c.HasPortalLink {
			return "A client portal link must be generated before the estimate can be sent."
		}
		return ""
	},
	constants.JobStatusPaid: func(c Context) string {
		if !c.HasPaidPayment {
			return "A payment must be recorded before the job can be marked paid."
		}
		return ""
	},
	constants.JobStatusReady: func(c Context) string {
		if !c.AllServicesComplete {
			return "All services must be completed before the job is ready for delivery."
		}
		return ""
	},
	constants.JobStatusDeliveryScheduled: func(c Context) string {
		if !c.HasDeliveryAddress {
			return "A delivery address is required before delivery can be scheduled."
		}
		return ""
	},
}

// ValidateTransition decides whether a job may move from current to
// target. Rules, in order: same-status requests are no-ops; closed is
// terminal for every real move, admin override included; backward moves
// and skips need an admin override, which also bypasses the target
// validator; a plain single forward step runs the target validator.
func ValidateTransition(current, target constants.JobStatus, ctx Context, adminOverride bool) Decision {
	currentIdx := constants.StatusIndex(current)
	targetIdx := constants.StatusIndex(target)
	if currentIdx < 0 {
		return deny("Unknown job status %q.", string(current))
	}
	if targetIdx < 0 {
		return deny("Unknown job status %q.", string(target))
	}

	if target == current {
		return allow()
	}
	if current == constants.JobStatusClosed {
		return deny("Job is closed. No further status changes are allowed.")
	}
	if adminOverride {
		// Override trusts the human: ordering and validators are all
		// bypassed. Only the closed check above outranks it.
		return allow()
	}
	if targetIdx < currentIdx {
		return deny("Cannot move a job backward from %s to %s. This requires an admin override.",
			constants.StatusLabel(current), constants.StatusLabel(target))
	}
	if targetIdx > currentIdx+1 {
		return deny("Cannot skip from %s to %s. Job statuses advance one step at a time.",
			constants.StatusLabel(current), constants.StatusLabel(target))
	}
	if check, ok := targetValidators[target]; ok {
		if msg := check(ctx); msg != "" {
			return Decision{Error: msg}
		}
	}
	return allow()
}
