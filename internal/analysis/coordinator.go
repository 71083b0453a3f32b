package analysis

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kozaktomas/face-migrator/internal/constants"
	"github.com/kozaktomas/face-migrator/internal/facematch"
	"github.com/kozaktomas/face-migrator/internal/store"
)

// Coordinator runs the analysis pipeline against the configured stores and
// caches the expensive intermediate products. Snapshots and the raw match
// list survive threshold changes, so re-running the analysis with different
// thresholds only redoes the cheap aggregation stages. Invalidate drops the
// caches after a connection config change.
type Coordinator struct {
	mu sync.Mutex

	source   store.SourceReader
	target   store.TargetReader
	nameMode facematch.NameMatchMode

	src     *store.SourceSnapshot
	tgt     *store.TargetSnapshot
	join    *JoinResult
	matches []RawFaceMatch

	minMatches       int
	minClusterPhotos int
	matchProgress    func(done, total int)
}

// NewCoordinator wires the pipeline to its two stores.
func NewCoordinator(source store.SourceReader, target store.TargetReader, nameMode facematch.NameMatchMode) *Coordinator {
	return &Coordinator{
		source:           source,
		target:           target,
		nameMode:         nameMode,
		minMatches:       constants.DefaultMinMatches,
		minClusterPhotos: constants.DefaultMinPhotosInCluster,
	}
}

// SetMinMatches overrides the minimum match count a pair needs before it is
// considered for merge candidacy.
func (c *Coordinator) SetMinMatches(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > 0 {
		c.minMatches = n
	}
}

// SetMinClusterPhotos overrides the minimum face count a target cluster needs
// before its pairs show up in the results.
func (c *Coordinator) SetMinClusterPhotos(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > 0 {
		c.minClusterPhotos = n
	}
}

// SetReaders swaps the underlying stores and drops all cached state. Called
// when the user repoints a connection at runtime.
func (c *Coordinator) SetReaders(source store.SourceReader, target store.TargetReader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if source != nil {
		c.source = source
	}
	if target != nil {
		c.target = target
	}
	c.invalidateLocked()
}

// SetMatchProgress registers a callback invoked as photo matching advances.
// The CLI uses it to drive a progress bar; the callback may run concurrently.
func (c *Coordinator) SetMatchProgress(fn func(done, total int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matchProgress = fn
}

// Invalidate drops the cached snapshots and raw matches. The next run reads
// both stores again.
func (c *Coordinator) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

func (c *Coordinator) invalidateLocked() {
	c.src = nil
	c.tgt = nil
	c.join = nil
	c.matches = nil
}

// Run executes the full pipeline at the given thresholds and returns the
// resulting bundle. The bundle is a value; callers may hold it while another
// run replaces the caches.
func (c *Coordinator) Run(ctx context.Context, thresholds Thresholds) (*Bundle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureMatchesLocked(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	aggregates := Aggregate(c.matches, thresholds, c.tgt)
	if c.minClusterPhotos > 1 {
		kept := aggregates[:0]
		for _, pair := range aggregates {
			if pair.TotalFacesInCluster >= c.minClusterPhotos {
				kept = append(kept, pair)
			}
		}
		aggregates = kept
	}
	bundle := &Bundle{
		Thresholds:        thresholds,
		Statistics:        ComputeStatistics(c.matches),
		Matches:           aggregates,
		RenameApplicable:  RenameApplicable(aggregates),
		AssignUnclustered: AssignUnclustered(c.matches, thresholds, c.src, c.tgt, c.nameMode),
		MergeCandidates:   MergeCandidates(c.matches, thresholds, c.minMatches),
		ValidationIssues:  ValidationIssues(c.matches, thresholds, c.tgt),
		CreateFaceGroups:  CreateFaceGroups(c.src, c.tgt, c.join, c.matches, thresholds, c.nameMode),
	}
	bundle.Stats = c.pipelineStatsLocked(thresholds)
	log.Printf("analysis complete: %d raw matches, %d pairs, took %s",
		len(c.matches), len(bundle.Matches), time.Since(start).Round(time.Millisecond))
	return bundle, nil
}

// ensureMatchesLocked loads snapshots and recomputes the raw match list if
// the caches are empty.
func (c *Coordinator) ensureMatchesLocked(ctx context.Context) error {
	if c.matches != nil {
		return nil
	}

	start := time.Now()
	src, err := c.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("read source store: %w", err)
	}
	tgt, err := c.target.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("read target store: %w", err)
	}

	c.src = src
	c.tgt = tgt
	c.join = Join(src, tgt)
	c.matches = MatchWithProgress(src, tgt, c.join, c.matchProgress)
	log.Printf("loaded snapshots and matched %d common photos in %s",
		len(c.join.Common), time.Since(start).Round(time.Millisecond))
	return nil
}

func (c *Coordinator) pipelineStatsLocked(thresholds Thresholds) PipelineStats {
	sourceFaces := 0
	for i := range c.src.Persons {
		sourceFaces += len(c.src.Persons[i].Faces)
	}
	passing := 0
	for _, m := range c.matches {
		if thresholds.Pass(m) {
			passing++
		}
	}
	return PipelineStats{
		SourcePersons:    len(c.src.Persons),
		SourceFaces:      sourceFaces,
		TargetClusters:   len(c.tgt.Clusters),
		TargetFaces:      len(c.tgt.Faces),
		CommonPhotos:     len(c.join.Common),
		SourceOnlyPhotos: c.join.SourceOnly,
		TargetOnlyPhotos: c.join.TargetOnly,
		RawMatches:       len(c.matches),
		PassingMatches:   passing,
		MalformedSource:  c.src.MalformedFaces,
		MalformedTarget:  c.tgt.MalformedFaces,
	}
}

// Snapshots returns the cached snapshots, loading them first if needed. Used
// by endpoints that need store data without a full analysis run.
func (c *Coordinator) Snapshots(ctx context.Context) (*store.SourceSnapshot, *store.TargetSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureMatchesLocked(ctx); err != nil {
		return nil, nil, err
	}
	return c.src, c.tgt, nil
}

// RawMatches returns the cached raw match list, loading stores first if
// needed.
func (c *Coordinator) RawMatches(ctx context.Context) ([]RawFaceMatch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureMatchesLocked(ctx); err != nil {
		return nil, err
	}
	return c.matches, nil
}
