package constants

import (
	"fmt"
	"strings"
)

// JobStatus is the canonical lifecycle status for rows in jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusIntakeScheduled   JobStatus = "intake_scheduled"
	JobStatusPickedUp          JobStatus = "picked_up"
	JobStatusInspected         JobStatus = "inspected"
	JobStatusEstimateSent      JobStatus = "estimate_sent"
	JobStatusApprovedUnpaid    JobStatus = "approved_unpaid"
	JobStatusPaid              JobStatus = "paid"
	JobStatusInService         JobStatus = "in_service"
	JobStatusReady             JobStatus = "ready"
	JobStatusDeliveryScheduled JobStatus = "delivery_scheduled"
	JobStatusDelivered         JobStatus = "delivered"
	JobStatusClosed            JobStatus = "closed"
)

// statusOrder is the linear pipeline order. Transition rules compare
// positions in this slice, so the order here is load-bearing.
var statusOrder = []JobStatus{
	JobStatusIntakeScheduled,
	JobStatusPickedUp,
	JobStatusInspected,
	JobStatusEstimateSent,
	JobStatusApprovedUnpaid,
	JobStatusPaid,
	JobStatusInService,
	JobStatusReady,
	JobStatusDeliveryScheduled,
	JobStatusDelivered,
	JobStatusClosed,
}

var statusLabels = map[JobStatus]string{
	JobStatusIntakeScheduled:   "Intake Scheduled",
	JobStatusPickedUp:          "Picked Up",
	JobStatusInspected:         "Inspected",
	JobStatusEstimateSent:      "Estimate Sent",
	JobStatusApprovedUnpaid:    "Approved (Unpaid)",
	JobStatusPaid:              "Paid",
	JobStatusInService:         "In Service",
	JobStatusReady:             "Ready for Delivery",
	JobStatusDeliveryScheduled: "Delivery Scheduled",
	JobStatusDelivered:         "Delivered",
	JobStatusClosed:            "Closed",
}

// JobStatusValues returns every status in pipeline order.
func JobStatusValues() []JobStatus {
	out := make([]JobStatus, len(statusOrder))
	copy(out, statusOrder)
	return out
}

// JobStatusStrings returns the stable wire strings in pipeline order.
func JobStatusStrings() []string {
	out := make([]string, len(statusOrder))
	for i, s := range statusOrder {
		out[i] = string(s)
	}
	return out
}

// StatusIndex returns the position of s in the pipeline, or -1 when s is
// not a known status.
func StatusIndex(s JobStatus) int {
	for i, v := range statusOrder {
		if v == s {
			return i
		}
	}
	return -1
}

// ParseJobStatus validates a wire string against the known statuses.
func ParseJobStatus(input string) (JobStatus, error) {
	s := JobStatus(strings.ToLower(strings.TrimSpace(input)))
	if StatusIndex(s) < 0 {
		return "", fmt.Errorf("unknown job status %q", input)
	}
	return s, nil
}

// StatusLabel returns the human-readable label for a status. Unknown
// statuses fall back to the raw string.
func StatusLabel(s JobStatus) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}
