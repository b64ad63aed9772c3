package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/cache"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/chunkprocessor"
)

// Manager is C6: the single writer of a job's checkpoint.json.
type Manager struct {
	mu    sync.Mutex
	dir   string // <checkpointDir>/<jobId>
	state *State
}

// CreateOptions parameterizes a fresh job.
type CreateOptions struct {
	JobID       string
	CSVPath     string
	TotalRows   int
	ChunkSize   int
	Concurrency int
	Mode        Mode
	OrgID       string
}

// HashFile returns the hex-encoded SHA-256 of path, used as the job's
// csvHash to detect drift on resume.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Create builds a fresh job state under checkpointDir/<jobId> and persists
// it atomically.
func Create(checkpointDir string, opts CreateOptions) (*Manager, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}

	csvHash, err := HashFile(opts.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: hash csv: %w", err)
	}

	now := time.Now().UTC()
	chunks := buildChunks(opts.TotalRows, opts.ChunkSize)

	state := &State{
		JobID:       opts.JobID,
		CSVPath:     opts.CSVPath,
		CSVHash:     csvHash,
		CreatedAt:   now,
		UpdatedAt:   now,
		ChunkSize:   opts.ChunkSize,
		Concurrency: opts.Concurrency,
		TotalRows:   opts.TotalRows,
		Mode:        opts.Mode,
		OrgID:       opts.OrgID,
		Chunks:      chunks,
		Summary: Summary{
			Total:     opts.TotalRows,
			StartedAt: now,
		},
		OrgCache: CacheSnapshot{Entries: map[string]CacheEntrySnapshot{}},
		Status:   JobInProgress,
	}

	m := &Manager{dir: filepath.Join(checkpointDir, opts.JobID), state: state}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create job dir: %w", err)
	}
	if err := m.save(); err != nil {
		return nil, err
	}
	return m, nil
}

func buildChunks(totalRows, chunkSize int) []Chunk {
	var chunks []Chunk
	id := 0
	for start := 1; start <= totalRows; start += chunkSize {
		end := start + chunkSize - 1
		if end > totalRows {
			end = totalRows
		}
		chunks = append(chunks, Chunk{ChunkID: id, StartRow: start, EndRow: end, Status: ChunkPending})
		id++
	}
	return chunks
}

// Resume loads an existing checkpoint.json for jobID. It returns an error if
// none exists, per the CLI's exit-code-2 fast-fail contract.
func Resume(checkpointDir, jobID string) (*Manager, error) {
	dir := filepath.Join(checkpointDir, jobID)
	path := filepath.Join(dir, "checkpoint.json")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: no checkpoint for job %q: %w", jobID, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("checkpoint: corrupt checkpoint.json: %w", err)
	}

	m := &Manager{dir: dir, state: &state}
	m.resetInProgressChunks()
	m.recomputeSummary()
	return m, nil
}

// resetInProgressChunks reverts any chunk left in-progress by an ungraceful
// kill (SIGKILL, power loss) back to pending so it is retried on resume.
func (m *Manager) resetInProgressChunks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state.Chunks {
		if m.state.Chunks[i].Status == ChunkInProgress {
			m.state.Chunks[i].Status = ChunkPending
			m.state.Chunks[i].StartedAt = nil
		}
	}
}

// ResumeWarning reports a csvHash mismatch between a resumed checkpoint and
// the CSV file currently on disk. It never aborts the resume, per §3.
func (m *Manager) ResumeWarning(csvPath string) (string, bool) {
	hash, err := HashFile(csvPath)
	if err != nil || hash == m.state.CSVHash {
		return "", false
	}
	return fmt.Sprintf("csv at %s no longer matches the hash recorded at job creation (expected %s, got %s)", csvPath, m.state.CSVHash, hash), true
}

// JobID returns the job identifier.
func (m *Manager) JobID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.JobID
}

// State returns a snapshot copy of the current state for read-only callers
// (coordinator, status and resume commands, reportstore upserts).
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.state
}

// ErrorsPath returns the path to this job's error log.
func (m *Manager) ErrorsPath() string {
	return filepath.Join(m.dir, "errors.jsonl")
}

// ClaimNextChunk atomically finds the lowest-numbered chunk whose status is
// pending or failed (failed chunks are retried on resume), marks it
// in-progress, and persists before returning it — so two worker goroutines
// calling concurrently never claim the same chunk.
func (m *Manager) ClaimNextChunk() (Chunk, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.state.Chunks {
		if c.Status == ChunkPending || c.Status == ChunkFailed {
			now := time.Now().UTC()
			m.state.Chunks[i].Status = ChunkInProgress
			m.state.Chunks[i].StartedAt = &now
			_ = m.saveLocked()
			return m.state.Chunks[i], true
		}
	}
	return Chunk{}, false
}

// MarkChunkCompleted folds a chunk's result into state, marks it completed,
// and persists atomically.
func (m *Manager) MarkChunkCompleted(chunkID int, result chunkprocessor.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indexOf(chunkID)
	if !ok {
		return fmt.Errorf("checkpoint: unknown chunk %d", chunkID)
	}
	now := time.Now().UTC()
	c := &m.state.Chunks[idx]
	c.Status = ChunkCompleted
	c.Successes = result.Successes
	c.Failures = result.Failures
	c.MembershipsCreated = result.MembershipsCreated
	c.UsersCreated = result.UsersCreated
	c.DuplicateUsers = result.DuplicateUsers
	c.DuplicateMemberships = result.DuplicateMemberships
	c.RolesAssigned = result.RolesAssigned
	c.CompletedAt = &now
	c.DurationMs = result.DurationMs

	m.recomputeSummaryLocked()
	if m.allChunksTerminal() {
		m.state.Status = JobCompleted
		m.state.Summary.EndedAt = &now
	}
	return m.saveLocked()
}

// MarkChunkFailed marks a chunk failed (eligible for retry on resume).
func (m *Manager) MarkChunkFailed(chunkID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indexOf(chunkID)
	if !ok {
		return fmt.Errorf("checkpoint: unknown chunk %d", chunkID)
	}
	m.state.Chunks[idx].Status = ChunkFailed
	return m.saveLocked()
}

func (m *Manager) indexOf(chunkID int) (int, bool) {
	for i, c := range m.state.Chunks {
		if c.ChunkID == chunkID {
			return i, true
		}
	}
	return 0, false
}

func (m *Manager) allChunksTerminal() bool {
	for _, c := range m.state.Chunks {
		if c.Status != ChunkCompleted {
			return false
		}
	}
	return true
}

// recomputeSummary is recomputeSummaryLocked with its own lock, used right
// after Resume before any mutation.
func (m *Manager) recomputeSummary() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recomputeSummaryLocked()
}

// recomputeSummaryLocked derives summary fields from chunk results only, to
// guarantee idempotence across repeated resumes (§4.6).
func (m *Manager) recomputeSummaryLocked() {
	s := Summary{Total: m.state.TotalRows, StartedAt: m.state.Summary.StartedAt, Warnings: m.state.Summary.Warnings}
	for _, c := range m.state.Chunks {
		s.Successes += c.Successes
		s.Failures += c.Failures
		s.MembershipsCreated += c.MembershipsCreated
		s.UsersCreated += c.UsersCreated
		s.DuplicateUsers += c.DuplicateUsers
		s.DuplicateMemberships += c.DuplicateMemberships
		s.RolesAssigned += c.RolesAssigned
	}
	s.EndedAt = m.state.Summary.EndedAt
	m.state.Summary = s
}

// AddWarning appends a non-fatal warning to the summary (e.g. a csvHash
// mismatch on resume) and persists.
func (m *Manager) AddWarning(msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Summary.Warnings = append(m.state.Summary.Warnings, msg)
	return m.saveLocked()
}

// SerializeCache snapshots an OrgCache into the checkpoint's orgCache field
// and persists.
func (m *Manager) SerializeCache(c *cache.OrgCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := c.Snapshot()
	stats := c.Stats()

	entries := make(map[string]CacheEntrySnapshot, len(snapshot))
	for key, entry := range snapshot {
		entries[key] = CacheEntrySnapshot{
			ID:         entry.ID,
			ExternalID: entry.ExternalID,
			Name:       entry.Name,
			CachedAt:   entry.CachedAt,
		}
	}
	m.state.OrgCache = CacheSnapshot{Entries: entries, Hits: stats.Hits, Misses: stats.Misses}
	return m.saveLocked()
}

// RestoreCache merges the checkpoint's serialized org cache entries into a
// freshly constructed OrgCache (add-only, per §4.6).
func (m *Manager) RestoreCache(c *cache.OrgCache) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make(map[string]cache.OrgEntry, len(m.state.OrgCache.Entries))
	for key, snap := range m.state.OrgCache.Entries {
		entries[key] = cache.OrgEntry{ID: snap.ID, ExternalID: snap.ExternalID, Name: snap.Name, CachedAt: snap.CachedAt}
	}
	c.MergeFrom(entries)
}

// MergeEntries add-only merges entries into c and persists the serialized
// result.
func (m *Manager) MergeEntries(c *cache.OrgCache, entries map[string]cache.OrgEntry) error {
	c.MergeFrom(entries)
	return m.SerializeCache(c)
}

func (m *Manager) save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

// saveLocked writes checkpoint.json atomically: write to a temp file in the
// same directory, then rename over the target.
func (m *Manager) saveLocked() error {
	m.state.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal state: %w", err)
	}

	path := filepath.Join(m.dir, "checkpoint.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("checkpoint: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("checkpoint: atomic rename: %w", err)
	}
	return nil
}
