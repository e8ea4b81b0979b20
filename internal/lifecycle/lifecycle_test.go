package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rugflowhq/rugflow/constants"
)

// fullContext returns a context with every prerequisite satisfied.
func fullContext() Context {
	return Context{
		HasAnalyzedRugs:      true,
		HasApprovedEstimates: true,
		HasPortalLink:        true,
		HasPaidPayment:       true,
		AllServicesComplete:  true,
		HasDeliveryAddress:   true,
		HasDeliveryWindow:    true,
	}
}

func TestValidateTransition_SameStatusIsNoOp(t *testing.T) {
	for _, status := range constants.JobStatusValues() {
		d := ValidateTransition(status, status, Context{}, false)
		assert.True(t, d.Allowed, "no-op should be allowed at %s", status)
		assert.Empty(t, d.Error)
	}
}

func TestValidateTransition_ClosedIsTerminal(t *testing.T) {
	for _, target := range constants.JobStatusValues() {
		if target == constants.JobStatusClosed {
			continue
		}
		for _, override := range []bool{false, true} {
			d := ValidateTransition(constants.JobStatusClosed, target, fullContext(), override)
			require.False(t, d.Allowed, "closed->%s must deny (override=%v)", target, override)
			assert.Equal(t, "Job is closed. No further status changes are allowed.", d.Error)
		}
	}
}

func TestValidateTransition_SkipsDenied(t *testing.T) {
	statuses := constants.JobStatusValues()
	for i, current := range statuses {
		if current == constants.JobStatusClosed {
			continue
		}
		for j := i + 2; j < len(statuses); j++ {
			target := statuses[j]
			d := ValidateTransition(current, target, fullContext(), false)
			assert.False(t, d.Allowed, "%s->%s skips and must deny", current, target)
			assert.Contains(t, d.Error, "skip")

			d = ValidateTransition(current, target, fullContext(), true)
			assert.True(t, d.Allowed, "%s->%s must be allowed under override", current, target)
		}
	}
}

func TestValidateTransition_BackwardNeedsOverride(t *testing.T) {
	d := ValidateTransition(constants.JobStatusDelivered, constants.JobStatusInService, Context{}, false)
	require.False(t, d.Allowed)
	assert.Contains(t, d.Error, "admin override")

	// Override allows the rollback unconditionally, validators included.
	d = ValidateTransition(constants.JobStatusDelivered, constants.JobStatusInService, Context{}, true)
	assert.True(t, d.Allowed)
}

func TestValidateTransition_InspectedRequiresAnalyzedRugs(t *testing.T) {
	d := ValidateTransition(constants.JobStatusPickedUp, constants.JobStatusInspected, Context{}, false)
	require.False(t, d.Allowed)
	assert.Contains(t, d.Error, "analyzed")

	d = ValidateTransition(constants.JobStatusPickedUp, constants.JobStatusInspected, Context{HasAnalyzedRugs: true}, false)
	assert.True(t, d.Allowed)
}

func TestValidateTransition_EstimateSentRequiresApprovalAndPortal(t *testing.T) {
	ctx := Context{HasAnalyzedRugs: true}
	d := ValidateTransition(constants.JobStatusInspected, constants.JobStatusEstimateSent, ctx, false)
	require.False(t, d.Allowed)
	assert.Contains(t, d.Error, "approved")

	ctx.HasApprovedEstimates = true
	d = ValidateTransition(constants.JobStatusInspected, constants.JobStatusEstimateSent, ctx, false)
	require.False(t, d.Allowed)
	assert.Contains(t, d.Error, "portal link")

	ctx.HasPortalLink = true
	d = ValidateTransition(constants.JobStatusInspected, constants.JobStatusEstimateSent, ctx, false)
	assert.True(t, d.Allowed)
}

func TestValidateTransition_PaidRequiresPayment(t *testing.T) {
	d := ValidateTransition(constants.JobStatusApprovedUnpaid, constants.JobStatusPaid, Context{}, false)
	require.False(t, d.Allowed)
	assert.Contains(t, d.Error, "payment")

	d = ValidateTransition(constants.JobStatusApprovedUnpaid, constants.JobStatusPaid, Context{HasPaidPayment: true}, false)
	assert.True(t, d.Allowed)
}

func TestValidateTransition_ReadyRequiresAllServicesComplete(t *testing.T) {
	d := ValidateTransition(constants.JobStatusInService, constants.JobStatusReady, Context{}, false)
	require.False(t, d.Allowed)
	assert.Contains(t, d.Error, "services")

	d = ValidateTransition(constants.JobStatusInService, constants.JobStatusReady, Context{AllServicesComplete: true}, false)
	assert.True(t, d.Allowed)
}

func TestValidateTransition_DeliveryScheduledRequiresAddress(t *testing.T) {
	d := ValidateTransition(constants.JobStatusReady, constants.JobStatusDeliveryScheduled, Context{}, false)
	require.False(t, d.Allowed)
	assert.Contains(t, d.Error, "delivery address")

	d = ValidateTransition(constants.JobStatusReady, constants.JobStatusDeliveryScheduled, Context{HasDeliveryAddress: true}, false)
	assert.True(t, d.Allowed)

	// The delivery window is informational only and never gates the move.
	d = ValidateTransition(constants.JobStatusReady, constants.JobStatusDeliveryScheduled,
		Context{HasDeliveryAddress: true, HasDeliveryWindow: false}, false)
	assert.True(t, d.Allowed)
}

func TestValidateTransition_UnvalidatedForwardStepsAllow(t *testing.T) {
	// These targets carry no validator; an empty context must pass.
	steps := []struct {
		from, to constants.JobStatus
	}{
		{constants.JobStatusIntakeScheduled, constants.JobStatusPickedUp},
		{constants.JobStatusEstimateSent, constants.JobStatusApprovedUnpaid},
		{constants.JobStatusPaid, constants.JobStatusInService},
		{constants.JobStatusDeliveryScheduled, constants.JobStatusDelivered},
		{constants.JobStatusDelivered, constants.JobStatusClosed},
	}
	for _, step := range steps {
		d := ValidateTransition(step.from, step.to, Context{}, false)
		assert.True(t, d.Allowed, "%s->%s should not require prerequisites", step.from, step.to)
	}
}

func TestValidateTransition_OverrideBypassesValidators(t *testing.T) {
	d := ValidateTransition(constants.JobStatusPickedUp, constants.JobStatusInspected, Context{}, true)
	assert.True(t, d.Allowed)

	d = ValidateTransition(constants.JobStatusApprovedUnpaid, constants.JobStatusPaid, Context{}, true)
	assert.True(t, d.Allowed)
}

func TestValidateTransition_UnknownStatusDenied(t *testing.T) {
	d := ValidateTransition(constants.JobStatus("archived"), constants.JobStatusClosed, Context{}, false)
	require.False(t, d.Allowed)
	assert.Contains(t, d.Error, "archived")

	d = ValidateTransition(constants.JobStatusPaid, constants.JobStatus(""), Context{}, true)
	assert.False(t, d.Allowed)
}
