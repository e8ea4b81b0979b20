package constants

// AnalysisStatus is the canonical status for rows in analysis_jobs.
type AnalysisStatus string

// Stable values (store these exact strings in DB).
const (
	AnalysisStatusQueued   AnalysisStatus = "QUEUED"    // waiting for a worker
	AnalysisStatusRunning  AnalysisStatus = "RUNNING"   // in progress
	AnalysisStatusVisionOK AnalysisStatus = "VISION_OK" // stage 1 completed (model responded)
	AnalysisStatusOK       AnalysisStatus = "OK"        // stage 2 completed (fields applied to rug)
	AnalysisStatusFailed   AnalysisStatus = "FAILED"    // terminal failure
)

const (
	// MaxVisionMBDefault caps the size of a single photo sent to the vision model.
	MaxVisionMBDefault = 16
	// MaxAnalysisPhotos caps how many photos of one rug go into a single request.
	MaxAnalysisPhotos = 6
)
