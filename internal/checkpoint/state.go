// Package checkpoint implements C6: the persistent job-state document, its
// atomic on-disk representation, and resume/merge semantics.
package checkpoint

import "time"

// ChunkStatus is the lifecycle state of one chunk.
type ChunkStatus string

const (
	ChunkPending    ChunkStatus = "pending"
	ChunkInProgress ChunkStatus = "in-progress"
	ChunkCompleted  ChunkStatus = "completed"
	ChunkFailed     ChunkStatus = "failed"
)

// Mode selects how organizations are resolved for a job.
type Mode string

const (
	ModeSingleOrg Mode = "single-org"
	ModeMultiOrg  Mode = "multi-org"
	ModeUserOnly  Mode = "user-only"
)

// JobStatus is the lifecycle state of the whole job.
type JobStatus string

const (
	JobInProgress JobStatus = "in-progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Chunk is one contiguous, non-overlapping, 1-indexed inclusive row range
// and its accumulated result.
type Chunk struct {
	ChunkID              int         `json:"chunkId"`
	StartRow             int         `json:"startRow"`
	EndRow               int         `json:"endRow"`
	Status               ChunkStatus `json:"status"`
	Successes            int         `json:"successes"`
	Failures             int         `json:"failures"`
	MembershipsCreated   int         `json:"membershipsCreated"`
	UsersCreated         int         `json:"usersCreated"`
	DuplicateUsers       int         `json:"duplicateUsers"`
	DuplicateMemberships int         `json:"duplicateMemberships"`
	RolesAssigned        int         `json:"rolesAssigned"`
	StartedAt            *time.Time  `json:"startedAt,omitempty"`
	CompletedAt          *time.Time  `json:"completedAt,omitempty"`
	DurationMs           int64       `json:"durationMs,omitempty"`
}

// Summary is the cumulative result across all chunks.
type Summary struct {
	Total                int        `json:"total"`
	Successes            int        `json:"successes"`
	Failures             int        `json:"failures"`
	MembershipsCreated   int        `json:"membershipsCreated"`
	UsersCreated         int        `json:"usersCreated"`
	DuplicateUsers       int        `json:"duplicateUsers"`
	DuplicateMemberships int        `json:"duplicateMemberships"`
	RolesAssigned        int        `json:"rolesAssigned"`
	StartedAt            time.Time  `json:"startedAt"`
	EndedAt              *time.Time `json:"endedAt,omitempty"`
	Warnings             []string   `json:"warnings,omitempty"`
}

// CacheEntrySnapshot is the serialized form of one org cache entry, keyed by
// its cache key ("id:<id>" or "ext:<externalId>") in the parent map.
type CacheEntrySnapshot struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId,omitempty"`
	Name       string    `json:"name,omitempty"`
	CachedAt   time.Time `json:"cachedAt"`
}

// CacheSnapshot is what serializeCache/restoreCache round-trips.
type CacheSnapshot struct {
	Entries map[string]CacheEntrySnapshot `json:"entries"`
	Hits    int64                         `json:"hits"`
	Misses  int64                         `json:"misses"`
}

// State is the Job / Checkpoint State document from the data model.
type State struct {
	JobID     string    `json:"jobId"`
	CSVPath   string    `json:"csvPath"`
	CSVHash   string    `json:"csvHash"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	ChunkSize   int  `json:"chunkSize"`
	Concurrency int  `json:"concurrency"`
	TotalRows   int  `json:"totalRows"`

	Mode  Mode   `json:"mode"`
	OrgID string `json:"orgId,omitempty"`

	Chunks  []Chunk   `json:"chunks"`
	Summary Summary   `json:"summary"`

	OrgCache CacheSnapshot `json:"orgCache"`

	Status JobStatus `json:"status"`
}
