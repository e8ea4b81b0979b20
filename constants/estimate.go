package constants

// EstimateStatus is the canonical status for rows in estimates.
// "finalized" is the internal staff approval; "approved"/"declined" are
// the client's decision after the estimate went out.
type EstimateStatus string

// Stable values (store these exact strings in DB).
const (
	EstimateDraft     EstimateStatus = "draft"
	EstimateFinalized EstimateStatus = "finalized"
	EstimateSent      EstimateStatus = "sent"
	EstimateApproved  EstimateStatus = "approved"
	EstimateDeclined  EstimateStatus = "declined"
)

// EstimateStatusStrings returns the stable wire strings.
func EstimateStatusStrings() []string {
	return []string{
		string(EstimateDraft),
		string(EstimateFinalized),
		string(EstimateSent),
		string(EstimateApproved),
		string(EstimateDeclined),
	}
}

// ServiceItemStatus tracks fulfillment of a single estimate line.
type ServiceItemStatus string

const (
	ServiceItemPending    ServiceItemStatus = "pending"
	ServiceItemInProgress ServiceItemStatus = "in_progress"
	ServiceItemCompleted  ServiceItemStatus = "completed"
)

// ServiceItemStatusStrings returns the stable wire strings.
func ServiceItemStatusStrings() []string {
	return []string{
		string(ServiceItemPending),
		string(ServiceItemInProgress),
		string(ServiceItemCompleted),
	}
}
