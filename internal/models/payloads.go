package models

// JSON payloads exchanged with the archiver function and the downstream
// workflow.

// ArchiveRequest is the input for the results-archiver function. An empty
// ResultIDs selects every result of the job.
type ArchiveRequest struct {
	JobID     string   `json:"jobId"`
	ResultIDs []string `json:"resultIds,omitempty"`
}

// ArchiveResponse is the output of the results-archiver function.
type ArchiveResponse struct {
	Status        string `json:"status"`
	ArchiveGCSUri string `json:"archiveGcsUri"`
	FileCount     int    `json:"fileCount"`
}

// WorkflowArgument is passed to the workflow started after a job completes.
type WorkflowArgument struct {
	JobID       string `json:"jobId"`
	ResultCount int    `json:"resultCount"`
}
