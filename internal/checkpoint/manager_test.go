package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/cache"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/chunkprocessor"
)

func writeTempCSV(t *testing.T, rows int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "in.csv")
	content := "email,org_id\n"
	for i := 0; i < rows; i++ {
		content += "a@example.com,org_1\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCreateBuildsContiguousChunks(t *testing.T) {
	csvPath := writeTempCSV(t, 25)
	checkpointDir := t.TempDir()

	m, err := Create(checkpointDir, CreateOptions{
		JobID: "job-1", CSVPath: csvPath, TotalRows: 25, ChunkSize: 10, Mode: ModeSingleOrg, OrgID: "org_1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	state := m.State()
	if len(state.Chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(state.Chunks))
	}
	if state.Chunks[0].StartRow != 1 || state.Chunks[0].EndRow != 10 {
		t.Errorf("chunk 0 = %+v", state.Chunks[0])
	}
	if state.Chunks[2].StartRow != 21 || state.Chunks[2].EndRow != 25 {
		t.Errorf("last chunk should stop at total rows, got %+v", state.Chunks[2])
	}

	if _, err := os.Stat(filepath.Join(checkpointDir, "job-1", "checkpoint.json")); err != nil {
		t.Errorf("expected checkpoint.json to be written: %v", err)
	}
}

func TestClaimNextChunkNeverDoubleAssigns(t *testing.T) {
	csvPath := writeTempCSV(t, 30)
	m, err := Create(t.TempDir(), CreateOptions{JobID: "job-1", CSVPath: csvPath, TotalRows: 30, ChunkSize: 10})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	seen := map[int]bool{}
	for {
		chunk, ok := m.ClaimNextChunk()
		if !ok {
			break
		}
		if seen[chunk.ChunkID] {
			t.Fatalf("chunk %d claimed twice", chunk.ChunkID)
		}
		seen[chunk.ChunkID] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct chunks claimed, got %d", len(seen))
	}
}

func TestResumeRevertsInProgressChunks(t *testing.T) {
	csvPath := writeTempCSV(t, 10)
	checkpointDir := t.TempDir()

	m, err := Create(checkpointDir, CreateOptions{JobID: "job-1", CSVPath: csvPath, TotalRows: 10, ChunkSize: 10})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := m.ClaimNextChunk(); !ok {
		t.Fatal("expected a chunk to claim")
	}

	resumed, err := Resume(checkpointDir, "job-1")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	state := resumed.State()
	if state.Chunks[0].Status != ChunkPending {
		t.Errorf("expected in-progress chunk reset to pending on resume, got %s", state.Chunks[0].Status)
	}
	if state.Chunks[0].StartedAt != nil {
		t.Errorf("expected StartedAt cleared on reset")
	}
}

func TestMarkChunkCompletedRecomputesSummary(t *testing.T) {
	csvPath := writeTempCSV(t, 10)
	m, err := Create(t.TempDir(), CreateOptions{JobID: "job-1", CSVPath: csvPath, TotalRows: 10, ChunkSize: 10})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	chunk, _ := m.ClaimNextChunk()

	if err := m.MarkChunkCompleted(chunk.ChunkID, chunkprocessor.Result{Successes: 8, Failures: 2}); err != nil {
		t.Fatalf("MarkChunkCompleted: %v", err)
	}

	state := m.State()
	if state.Summary.Successes != 8 || state.Summary.Failures != 2 {
		t.Errorf("summary = %+v", state.Summary)
	}
	if state.Status != JobCompleted {
		t.Errorf("expected job status completed once all chunks terminal, got %s", state.Status)
	}
}

func TestSerializeAndRestoreCacheRoundTrips(t *testing.T) {
	csvPath := writeTempCSV(t, 5)
	checkpointDir := t.TempDir()
	m, err := Create(checkpointDir, CreateOptions{JobID: "job-1", CSVPath: csvPath, TotalRows: 5, ChunkSize: 5})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	orgs := cache.NewOrgCache(nil, 10, 0, true)
	orgs.Resolve(context.Background(), cache.ResolveParams{OrgID: "org_1"})

	if err := m.SerializeCache(orgs); err != nil {
		t.Fatalf("SerializeCache: %v", err)
	}

	restored := cache.NewOrgCache(nil, 10, 0, true)
	m.RestoreCache(restored)

	if restored.Stats().Evictions != 0 {
		t.Errorf("unexpected evictions after restore: %+v", restored.Stats())
	}
}
