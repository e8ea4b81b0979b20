package constants

// JobAction is a user-initiated operation on a job, checked against the
// caller's role and the job's current status before it runs.
type JobAction string

const (
	ActionViewJob             JobAction = "view_job"
	ActionViewReport          JobAction = "view_report"
	ActionEditJob             JobAction = "edit_job"
	ActionAddRug              JobAction = "add_rug"
	ActionEditRug             JobAction = "edit_rug"
	ActionDeleteRug           JobAction = "delete_rug"
	ActionUploadPhotos        JobAction = "upload_photos"
	ActionAnalyzeRug          JobAction = "analyze_rug"
	ActionApproveEstimate     JobAction = "approve_estimate"
	ActionEditPricing         JobAction = "edit_pricing"
	ActionSendToClient        JobAction = "send_to_client"
	ActionGeneratePortalLink  JobAction = "generate_portal_link"
	ActionDeclineServices     JobAction = "decline_services"
	ActionClientApprove       JobAction = "client_approve"
	ActionProcessPayment      JobAction = "process_payment"
	ActionMarkServiceComplete JobAction = "mark_service_complete"
	ActionScheduleDelivery    JobAction = "schedule_delivery"
	ActionDeleteJob           JobAction = "delete_job"
	ActionOverrideStatus      JobAction = "override_status"
)

// JobActionValues returns every action the permission matrix knows about.
func JobActionValues() []JobAction {
	return []JobAction{
		ActionViewJob,
		ActionViewReport,
		ActionEditJob,
		ActionAddRug,
		ActionEditRug,
		ActionDeleteRug,
		ActionUploadPhotos,
		ActionAnalyzeRug,
		ActionApproveEstimate,
		ActionEditPricing,
		ActionSendToClient,
		ActionGeneratePortalLink,
		ActionDeclineServices,
		ActionClientApprove,
		ActionProcessPayment,
		ActionMarkServiceComplete,
		ActionScheduleDelivery,
		ActionDeleteJob,
		ActionOverrideStatus,
	}
}
