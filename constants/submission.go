package constants

// SubmissionStatus is the local lifecycle of an offline rug submission
// queued on a field device.
type SubmissionStatus string

// Stable values (store these exact strings in the local DB).
const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionUploading SubmissionStatus = "uploading"
	SubmissionUploaded  SubmissionStatus = "uploaded"
	SubmissionFailed    SubmissionStatus = "failed"
)

// MaxSubmissionRetries caps sync attempts per submission. Items at the
// cap are skipped by later cycles but kept locally for inspection.
const MaxSubmissionRetries = 5
