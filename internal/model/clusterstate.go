package model

// BatchLifecycleState tracks an active batch through its lifecycle
// (spec §3 Lifecycles).
type BatchLifecycleState string

const (
	BatchFormed     BatchLifecycleState = "formed"
	BatchSubmitted  BatchLifecycleState = "submitted"
	BatchRunning    BatchLifecycleState = "running"
	BatchFinalized  BatchLifecycleState = "finalized"
)

// ActiveBatch is an in-flight batch tracked in ClusterState.ActiveBatches.
type ActiveBatch struct {
	HPCJobID        string              `json:"hpc_job_id,omitempty"`
	NodeNames       []string            `json:"node_names,omitempty"`
	SubmissionGroup string              `json:"submission_group"`
	JobIDs          []int               `json:"job_ids"`
	State           BatchLifecycleState `json:"state"`
}

// ClusterState is the single shared document protected by the cluster lock
// (spec §3).
type ClusterState struct {
	ConfigID         string              `json:"config_id"`
	SubmittedJobs    []int               `json:"submitted_jobs"`
	CompletedResults []JobResult         `json:"completed_results"`
	ActiveBatches    map[int]ActiveBatch `json:"active_batches"`
	IsComplete       bool                `json:"is_complete"`
	Canceled         bool                `json:"canceled"`
	Version          int                 `json:"version"`
	NextBatchID      int                 `json:"next_batch_id"`
}

// NewClusterState returns a fresh, empty ClusterState for the given
// configuration hash.
func NewClusterState(configID string) *ClusterState {
	return &ClusterState{
		ConfigID:      configID,
		SubmittedJobs: []int{},
		ActiveBatches: map[int]ActiveBatch{},
		NextBatchID:   1,
	}
}

// AllocateBatchID returns the next monotonically increasing batch id and
// advances the counter (spec §4.1 step 4).
func (s *ClusterState) AllocateBatchID() int {
	id := s.NextBatchID
	s.NextBatchID++
	return id
}

// IsSubmitted reports whether jobID has already been placed in a submitted
// batch (I1/I2/P3).
func (s *ClusterState) IsSubmitted(jobID int) bool {
	for _, id := range s.SubmittedJobs {
		if id == jobID {
			return true
		}
	}
	return false
}

// MarkSubmitted appends jobID to SubmittedJobs if not already present,
// preserving P3 (monotonically growing set).
func (s *ClusterState) MarkSubmitted(jobID int) {
	if !s.IsSubmitted(jobID) {
		s.SubmittedJobs = append(s.SubmittedJobs, jobID)
	}
}

// ResultByJobID indexes CompletedResults by job id.
func (s *ClusterState) ResultByJobID() map[int]JobResult {
	m := make(map[int]JobResult, len(s.CompletedResults))
	for _, r := range s.CompletedResults {
		m[r.JobID] = r
	}
	return m
}

// HasResult reports whether jobID already has a terminal result recorded
// (I1, P2 — no duplicates).
func (s *ClusterState) HasResult(jobID int) bool {
	for _, r := range s.CompletedResults {
		if r.JobID == jobID {
			return true
		}
	}
	return false
}

// AppendResult appends a JobResult if jobID does not already have one,
// enforcing P2's "no duplicates" half.
func (s *ClusterState) AppendResult(r JobResult) bool {
	if s.HasResult(r.JobID) {
		return false
	}
	s.CompletedResults = append(s.CompletedResults, r)
	return true
}
