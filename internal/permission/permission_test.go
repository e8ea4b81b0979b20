package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rugflowhq/rugflow/constants"
)

func TestCanPerformAction_ClosedBlocksEverythingButViews(t *testing.T) {
	for _, role := range []constants.UserRole{constants.RoleStaff, constants.RoleClient, constants.RoleAdmin} {
		for _, action := range constants.JobActionValues() {
			d := CanPerformAction(action, role, constants.JobStatusClosed)
			switch action {
			case constants.ActionViewJob, constants.ActionViewReport:
				assert.True(t, d.Allowed, "%s view at closed", role)
			default:
				require.False(t, d.Allowed, "%s/%s must be blocked at closed", role, action)
			}
		}
	}

	d := CanPerformAction(constants.ActionOverrideStatus, constants.RoleAdmin, constants.JobStatusClosed)
	require.False(t, d.Allowed)
	assert.Contains(t, d.Error, "not supported")
}

func TestCanPerformAction_ClientAllowList(t *testing.T) {
	allowed := map[constants.JobAction]struct{}{
		constants.ActionViewJob:         {},
		constants.ActionViewReport:      {},
		constants.ActionDeclineServices: {},
		constants.ActionClientApprove:   {},
		constants.ActionProcessPayment:  {},
	}
	for _, action := range constants.JobActionValues() {
		if _, ok := allowed[action]; ok {
			continue
		}
		d := CanPerformAction(action, constants.RoleClient, constants.JobStatusEstimateSent)
		assert.False(t, d.Allowed, "client must not perform %s", action)
	}
}

func TestCanPerformAction_ClientViewsRequireEstimateSent(t *testing.T) {
	d := CanPerformAction(constants.ActionViewJob, constants.RoleClient, constants.JobStatusInspected)
	require.False(t, d.Allowed)

	d = CanPerformAction(constants.ActionViewJob, constants.RoleClient, constants.JobStatusEstimateSent)
	assert.True(t, d.Allowed)

	d = CanPerformAction(constants.ActionViewReport, constants.RoleClient, constants.JobStatusDelivered)
	assert.True(t, d.Allowed)

	d = CanPerformAction(constants.ActionViewReport, constants.RoleClient, constants.JobStatusClosed)
	assert.True(t, d.Allowed, "views survive closure")
}

func TestCanPerformAction_ClientEstimateDecisionsExactStatus(t *testing.T) {
	for _, action := range []constants.JobAction{constants.ActionClientApprove, constants.ActionDeclineServices} {
		d := CanPerformAction(action, constants.RoleClient, constants.JobStatusEstimateSent)
		assert.True(t, d.Allowed, "%s at estimate_sent", action)

		d = CanPerformAction(action, constants.RoleClient, constants.JobStatusApprovedUnpaid)
		assert.False(t, d.Allowed, "%s after approval", action)

		d = CanPerformAction(action, constants.RoleClient, constants.JobStatusInspected)
		assert.False(t, d.Allowed, "%s before sending", action)
	}
}

func TestCanPerformAction_ClientPaymentMessages(t *testing.T) {
	d := CanPerformAction(constants.ActionProcessPayment, constants.RoleClient, constants.JobStatusEstimateSent)
	require.False(t, d.Allowed)
	assert.Contains(t, d.Error, "approve the estimate")

	d = CanPerformAction(constants.ActionProcessPayment, constants.RoleClient, constants.JobStatusApprovedUnpaid)
	require.True(t, d.Allowed)

	d = CanPerformAction(constants.ActionProcessPayment, constants.RoleClient, constants.JobStatusPaid)
	require.False(t, d.Allowed)
	assert.Contains(t, d.Error, "already been paid")

	d = CanPerformAction(constants.ActionProcessPayment, constants.RoleClient, constants.JobStatusInService)
	require.False(t, d.Allowed)
	assert.Contains(t, d.Error, "already been paid")
}

func TestCanPerformAction_StaffNeverClientOrOverrideActions(t *testing.T) {
	for _, status := range constants.JobStatusValues() {
		if status == constants.JobStatusClosed {
			continue
		}
		assert.False(t, CanPerformAction(constants.ActionClientApprove, constants.RoleStaff, status).Allowed)
		assert.False(t, CanPerformAction(constants.ActionDeclineServices, constants.RoleStaff, status).Allowed)
		assert.False(t, CanPerformAction(constants.ActionOverrideStatus, constants.RoleStaff, status).Allowed)
	}
}

func TestCanPerformAction_StaffLockedAfterPayment(t *testing.T) {
	lockedStatuses := []constants.JobStatus{
		constants.JobStatusPaid,
		constants.JobStatusInService,
		constants.JobStatusReady,
		constants.JobStatusDeliveryScheduled,
		constants.JobStatusDelivered,
	}
	scoped := []constants.JobAction{
		constants.ActionEditRug,
		constants.ActionDeleteRug,
		constants.ActionAddRug,
		constants.ActionUploadPhotos,
		constants.ActionAnalyzeRug,
		constants.ActionApproveEstimate,
		constants.ActionEditPricing,
		constants.ActionDeleteJob,
	}
	for _, status := range lockedStatuses {
		for _, action := range scoped {
			d := CanPerformAction(action, constants.RoleStaff, status)
			assert.False(t, d.Allowed, "staff %s at locked %s", action, status)
		}
	}

	// Before the lock engages, photo uploads and pricing edits remain open.
	assert.True(t, CanPerformAction(constants.ActionUploadPhotos, constants.RoleStaff, constants.JobStatusApprovedUnpaid).Allowed)
	assert.True(t, CanPerformAction(constants.ActionEditPricing, constants.RoleStaff, constants.JobStatusEstimateSent).Allowed)
}

func TestCanPerformAction_StaffRugEditsFrozenOnceEstimateSent(t *testing.T) {
	frozen := []constants.JobAction{
		constants.ActionAddRug,
		constants.ActionEditRug,
		constants.ActionDeleteRug,
		constants.ActionAnalyzeRug,
		constants.ActionApproveEstimate,
	}
	for _, action := range frozen {
		assert.True(t, CanPerformAction(action, constants.RoleStaff, constants.JobStatusInspected).Allowed,
			"%s before sending", action)
		assert.False(t, CanPerformAction(action, constants.RoleStaff, constants.JobStatusEstimateSent).Allowed,
			"%s at estimate_sent", action)
		assert.False(t, CanPerformAction(action, constants.RoleStaff, constants.JobStatusApprovedUnpaid).Allowed,
			"%s after client approval", action)
	}
}

func TestCanPerformAction_StaffStatusGates(t *testing.T) {
	assert.True(t, CanPerformAction(constants.ActionSendToClient, constants.RoleStaff, constants.JobStatusInspected).Allowed)
	assert.False(t, CanPerformAction(constants.ActionSendToClient, constants.RoleStaff, constants.JobStatusPickedUp).Allowed)
	assert.False(t, CanPerformAction(constants.ActionSendToClient, constants.RoleStaff, constants.JobStatusEstimateSent).Allowed)

	assert.False(t, CanPerformAction(constants.ActionGeneratePortalLink, constants.RoleStaff, constants.JobStatusPickedUp).Allowed)
	assert.True(t, CanPerformAction(constants.ActionGeneratePortalLink, constants.RoleStaff, constants.JobStatusInspected).Allowed)
	assert.True(t, CanPerformAction(constants.ActionGeneratePortalLink, constants.RoleStaff, constants.JobStatusEstimateSent).Allowed)

	assert.False(t, CanPerformAction(constants.ActionMarkServiceComplete, constants.RoleStaff, constants.JobStatusApprovedUnpaid).Allowed)
	assert.True(t, CanPerformAction(constants.ActionMarkServiceComplete, constants.RoleStaff, constants.JobStatusPaid).Allowed)
	assert.True(t, CanPerformAction(constants.ActionMarkServiceComplete, constants.RoleStaff, constants.JobStatusInService).Allowed)

	assert.True(t, CanPerformAction(constants.ActionScheduleDelivery, constants.RoleStaff, constants.JobStatusReady).Allowed)
	assert.False(t, CanPerformAction(constants.ActionScheduleDelivery, constants.RoleStaff, constants.JobStatusInService).Allowed)
	assert.False(t, CanPerformAction(constants.ActionScheduleDelivery, constants.RoleStaff, constants.JobStatusDeliveryScheduled).Allowed)
}

func TestCanPerformAction_StaffDeleteJobOnlyBeforeInspection(t *testing.T) {
	for _, status := range constants.JobStatusValues() {
		d := CanPerformAction(constants.ActionDeleteJob, constants.RoleStaff, status)
		switch status {
		case constants.JobStatusIntakeScheduled, constants.JobStatusPickedUp:
			assert.True(t, d.Allowed, "delete_job at %s", status)
		default:
			assert.False(t, d.Allowed, "delete_job at %s", status)
		}
	}
}

func TestCanPerformAction_AdminBypassesGates(t *testing.T) {
	for _, status := range constants.JobStatusValues() {
		if status == constants.JobStatusClosed {
			continue
		}
		assert.True(t, CanPerformAction(constants.ActionOverrideStatus, constants.RoleAdmin, status).Allowed)
		assert.True(t, CanPerformAction(constants.ActionEditPricing, constants.RoleAdmin, status).Allowed,
			"admin pricing edit at %s (even locked)", status)
		assert.True(t, CanPerformAction(constants.ActionDeleteJob, constants.RoleAdmin, status).Allowed)
	}
}

func TestCanPerformAction_UnknownInputsDenied(t *testing.T) {
	d := CanPerformAction(constants.ActionViewJob, constants.UserRole("vendor"), constants.JobStatusPaid)
	require.False(t, d.Allowed)

	d = CanPerformAction(constants.ActionViewJob, constants.RoleStaff, constants.JobStatus("archived"))
	require.False(t, d.Allowed)
	assert.Contains(t, d.Error, "archived")
}
