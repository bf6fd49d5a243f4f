package models

import "time"

// Job statuses as stored in the jobs collection.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Job is the record for one uploaded slip document. A polling client reads
// the counters and status message while the run is in progress.
type Job struct {
	ID                string    `firestore:"-" json:"id"`
	FileHash          string    `firestore:"fileHash,omitempty" json:"fileHash"`
	OriginalFilename  string    `firestore:"originalFilename,omitempty" json:"originalFilename"`
	Status            string    `firestore:"status,omitempty" json:"status"`
	TotalSections     int       `firestore:"totalSections" json:"totalSections"`
	ProcessedSections int       `firestore:"processedSections" json:"processedSections"`
	ExtractedCount    int       `firestore:"extractedCount" json:"extractedCount"`
	ErrorCount        int       `firestore:"errorCount" json:"errorCount"`
	StatusMessage     string    `firestore:"statusMessage,omitempty" json:"statusMessage,omitempty"`
	ErrorDetails      string    `firestore:"errorDetails,omitempty" json:"errorDetails,omitempty"`
	CreatedAt         time.Time `firestore:"createdAt,omitempty" json:"createdAt"`
	StartedAt         time.Time `firestore:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt       time.Time `firestore:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// Result is one rendered file belonging to a job.
type Result struct {
	ID          string    `firestore:"-" json:"id"`
	JobID       string    `firestore:"jobId" json:"jobId"`
	FullName    string    `firestore:"fullName" json:"fullName"`
	Code        string    `firestore:"code" json:"code"`
	Filename    string    `firestore:"filename" json:"filename"`
	ObjectPath  string    `firestore:"objectPath" json:"objectPath"`
	Format      string    `firestore:"format" json:"format"`
	SizeBytes   int64     `firestore:"sizeBytes" json:"sizeBytes"`
	Position    int       `firestore:"position" json:"position"`
	ExtractedAt time.Time `firestore:"extractedAt" json:"extractedAt"`
}

// Stats aggregates every job and result in the store.
type Stats struct {
	TotalJobs      int `json:"totalJobs"`
	PendingJobs    int `json:"pendingJobs"`
	ProcessingJobs int `json:"processingJobs"`
	CompletedJobs  int `json:"completedJobs"`
	FailedJobs     int `json:"failedJobs"`
	TotalExtracted int `json:"totalExtracted"`
	TotalErrors    int `json:"totalErrors"`
	TotalResults   int `json:"totalResults"`
}

// Count adds one job to the totals.
func (s *Stats) Count(job Job) {
	s.TotalJobs++
	switch job.Status {
	case StatusPending:
		s.PendingJobs++
	case StatusProcessing:
		s.ProcessingJobs++
	case StatusCompleted:
		s.CompletedJobs++
	case StatusFailed:
		s.FailedJobs++
	}
	s.TotalExtracted += job.ExtractedCount
	s.TotalErrors += job.ErrorCount
}
