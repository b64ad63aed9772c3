// Package chunkprocessor implements C5: streaming the CSV from the start,
// discarding rows outside a chunk's range, and running the in-range rows
// through the row processor with a bounded local concurrency.
package chunkprocessor

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/csvrow"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/metrics"
	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/rowprocessor"
)

// Result is the chunk-level aggregate the coordinator folds into the
// checkpoint.
type Result struct {
	Successes            int
	Failures             int
	MembershipsCreated   int
	UsersCreated         int
	DuplicateUsers       int
	DuplicateMemberships int
	RolesAssigned        int
	DurationMs           int64
}

// WarnFunc is called once per unknown CSV column encountered.
type WarnFunc func(column string)

// Process streams csvPath from the beginning, processes rows in
// [startRow, endRow] (1-indexed, inclusive, header excluded) with up to
// concurrency row processors in flight, and returns the aggregate result.
// A CSV-parse error is fatal for the chunk, per §4.5.
func Process(ctx context.Context, csvPath string, startRow, endRow, concurrency int, pctx *rowprocessor.Context, warn WarnFunc) (Result, error) {
	start := time.Now()

	f, err := os.Open(csvPath)
	if err != nil {
		return Result{}, fmt.Errorf("chunkprocessor: open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.ReuseRecord = false

	headerRaw, err := reader.Read()
	if err != nil {
		return Result{}, fmt.Errorf("chunkprocessor: read header: %w", err)
	}
	header := make([]string, len(headerRaw))
	for i, h := range headerRaw {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "﻿")))
	}
	if warn != nil {
		for _, col := range csvrow.UnknownColumns(header) {
			warn(col)
		}
	}

	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		agg Result
		firstErr error
	)

	recordNumber := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			wg.Wait()
			return Result{}, fmt.Errorf("chunkprocessor: parse row %d: %w", recordNumber+1, err)
		}
		recordNumber++

		if recordNumber < startRow {
			continue
		}
		if recordNumber > endRow {
			break
		}

		row, err := csvrow.Parse(header, record, recordNumber)
		if err != nil {
			wg.Wait()
			return Result{}, fmt.Errorf("chunkprocessor: %w", err)
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return Result{}, ctx.Err()
		}

		wg.Add(1)
		go func(row csvrow.Row) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := rowprocessor.Process(ctx, row, pctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			fold(&agg, result)
		}(row)
	}

	wg.Wait()
	if firstErr != nil {
		return Result{}, firstErr
	}

	elapsed := time.Since(start)
	metrics.ChunkDurationSeconds.Observe(elapsed.Seconds())
	metrics.OrgCacheHitRatio.Set(pctx.OrgCache.Stats().HitRate)
	metrics.RoleCacheHitRatio.Set(pctx.RoleCache.Stats().HitRate)
	agg.DurationMs = elapsed.Milliseconds()
	return agg, nil
}

func fold(agg *Result, r rowprocessor.Result) {
	if r.Success {
		agg.Successes++
		metrics.RecordRowSuccess()
	} else {
		agg.Failures++
		metrics.RecordRowFailure()
	}
	if r.UserCreated {
		agg.UsersCreated++
	}
	if r.MembershipCreated {
		agg.MembershipsCreated++
	}
	if r.DuplicateUser {
		agg.DuplicateUsers++
	}
	if r.DuplicateMembership {
		agg.DuplicateMemberships++
	}
	agg.RolesAssigned += r.RolesAssigned
}
