// Package permission decides whether a role may perform an action on a
// job at its current status. Like the lifecycle guard it is pure: the
// caller supplies the three inputs and renders the decision, and the
// matrix is encoded as per-role branches rather than a data table.
package permission

import (
	"fmt"

	"github.com/rugflowhq/rugflow/constants"
)

// Decision is the matrix verdict. Error is a user-facing reason and is
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

// lockedStatuses marks jobs whose scope and pricing are frozen for
// staff. A job locks at payment and stays locked to the end.
var lockedStatuses = map[constants.JobStatus]struct{}{
	constants.JobStatusPaid:              {},
	constants.JobStatusInService:         {},
	constants.JobStatusReady:             {},
	constants.JobStatusDeliveryScheduled: {},
	constants.JobStatusDelivered:         {},
	constants.JobStatusClosed:            {},
}

// scopeActions are the staff actions frozen by the payment lock.
var scopeActions = map[constants.JobAction]struct{}{
	constants.ActionEditRug:         {},
	constants.ActionDeleteRug:       {},
	constants.ActionAddRug:          {},
	constants.ActionUploadPhotos:    {},
	constants.ActionAnalyzeRug:      {},
	constants.ActionApproveEstimate: {},
	constants.ActionEditPricing:     {},
	constants.ActionDeleteJob:       {},
}

// estimateActions are the rug/estimate mutations additionally frozen
// once the estimate has gone out, before the payment lock engages.
var estimateActions = map[constants.JobAction]struct{}{
	constants.ActionAddRug:          {},
	constants.ActionEditRug:         {},
	constants.ActionDeleteRug:       {},
	constants.ActionAnalyzeRug:      {},
	constants.ActionApproveEstimate: {},
}

func isView(action constants.JobAction) bool {
	return action == constants.ActionViewJob || action == constants.ActionViewReport
}

// CanPerformAction decides whether role may perform action on a job at
// the given status. It consults only its three inputs.
func CanPerformAction(action constants.JobAction, role constants.UserRole, status constants.JobStatus) Decision {
	statusIdx := constants.StatusIndex(status)
	if statusIdx < 0 {
		return deny("Unknown job status %q.", string(status))
	}

	// Terminal rule: a closed job accepts no action beyond viewing.
	if status == constants.JobStatusClosed && !isView(action) {
		if role == constants.RoleAdmin {
			return deny("Job is closed. Reopening closed jobs is not supported.")
		}
		return deny("Job is closed. No further changes are allowed.")
	}

	switch role {
	case constants.RoleAdmin:
		return allow()
	case constants.RoleClient:
		return clientDecision(action, status, statusIdx)
	case constants.RoleStaff:
		return staffDecision(action, status, statusIdx)
	default:
		return deny("Unknown role %q.", string(role))
	}
}

func clientDecision(action constants.JobAction, status constants.JobStatus, statusIdx int) Decision {
	switch action {
	case constants.ActionViewJob, constants.ActionViewReport:
		if statusIdx < constants.StatusIndex(constants.JobStatusEstimateSent) {
			return deny("Your estimate is still being prepared. You will receive a link when it is ready.")
		}
		return allow()

	case constants.ActionDeclineServices, constants.ActionClientApprove:
		if status != constants.JobStatusEstimateSent {
			return deny("Estimate decisions are only available while the estimate is awaiting your review.")
		}
		return allow()

	case constants.ActionProcessPayment:
		switch {
		case status == constants.JobStatusEstimateSent:
			return deny("Please approve the estimate before making a payment.")
		case statusIdx >= constants.StatusIndex(constants.JobStatusPaid):
			return deny("This job has already been paid.")
		case status != constants.JobStatusApprovedUnpaid:
			return deny("Payment is not available at this stage.")
		}
		return allow()

	default:
		return deny("This action is not available to clients.")
	}
}

func staffDecision(action constants.JobAction, status constants.JobStatus, statusIdx int) Decision {
	switch action {
	case constants.ActionViewJob, constants.ActionViewReport:
		return allow()
	case constants.ActionDeclineServices, constants.ActionClientApprove:
		return deny("Only the client can accept or decline estimate services.")
	case constants.ActionOverrideStatus:
		return deny("Only an administrator can override the job status.")
	}

	// Lock and estimate-sent restrictions are independent checks; an
	// action subject to both must clear both.
	if _, scoped := scopeActions[action]; scoped {
		if _, locked := lockedStatuses[status]; locked {
			return deny("The job is locked after payment. Scope and pricing changes are no longer available.")
		}
	}
	if _, restricted := estimateActions[action]; restricted {
		if statusIdx >= constants.StatusIndex(constants.JobStatusEstimateSent) {
			return deny("Rugs and estimates cannot be modified after the estimate has been sent.")
		}
	}

	switch action {
	case constants.ActionSendToClient:
		if status != constants.JobStatusInspected {
			return deny("The estimate can only be sent once the job has been inspected.")
		}
	case constants.ActionGeneratePortalLink:
		if statusIdx < constants.StatusIndex(constants.JobStatusInspected) {
			return deny("A portal link becomes available after inspection.")
		}
	case constants.ActionMarkServiceComplete:
		if statusIdx < constants.StatusIndex(constants.JobStatusPaid) {
			return deny("Services can be completed only after payment has been received.")
		}
	case constants.ActionScheduleDelivery:
		if status != constants.JobStatusReady {
			return deny("Delivery can be scheduled once all services are complete and the job is ready.")
		}
	case constants.ActionDeleteJob:
		if statusIdx > constants.StatusIndex(constants.JobStatusPickedUp) {
			return deny("Jobs can only be deleted before inspection begins.")
		}
	}

	return allow()
}
