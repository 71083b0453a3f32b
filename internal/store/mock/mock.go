// Package mock provides mock implementations of store interfaces for testing.
package mock

import (
	"context"

	"github.com/kozaktomas/face-migrator/internal/store"
)

// SourceReader is a mock implementation of store.SourceReader.
type SourceReader struct {
	SnapshotResult *store.SourceSnapshot
	SnapshotError  error
	Status         store.SourceStatus
	SnapshotCalls  int
}

// NewSourceReader creates a mock source reader serving the given snapshot.
func NewSourceReader(snapshot *store.SourceSnapshot) *SourceReader {
	return &SourceReader{
		SnapshotResult: snapshot,
		Status:         store.SourceStatus{Connected: true, Totals: &snapshot.Totals},
	}
}

// Snapshot returns the configured snapshot or error.
func (m *SourceReader) Snapshot(ctx context.Context) (*store.SourceSnapshot, error) {
	m.SnapshotCalls++
	if m.SnapshotError != nil {
		return nil, m.SnapshotError
	}
	return m.SnapshotResult, nil
}

// TestConnection returns the configured status.
func (m *SourceReader) TestConnection(ctx context.Context) store.SourceStatus {
	return m.Status
}

// TargetReader is a mock implementation of store.TargetReader.
type TargetReader struct {
	SnapshotResult *store.TargetSnapshot
	SnapshotError  error
	Status         store.TargetStatus
	SnapshotCalls  int
}

// NewTargetReader creates a mock target reader serving the given snapshot.
func NewTargetReader(snapshot *store.TargetSnapshot) *TargetReader {
	if snapshot.PersonNames == nil {
		snapshot.PersonNames = make(map[string]string)
	}
	return &TargetReader{
		SnapshotResult: snapshot,
		Status:         store.TargetStatus{Connected: true, Totals: &snapshot.Totals},
	}
}

// Snapshot returns the configured snapshot or error.
func (m *TargetReader) Snapshot(ctx context.Context) (*store.TargetSnapshot, error) {
	m.SnapshotCalls++
	if m.SnapshotError != nil {
		return nil, m.SnapshotError
	}
	return m.SnapshotResult, nil
}

// TestConnection returns the configured status.
func (m *TargetReader) TestConnection(ctx context.Context) store.TargetStatus {
	return m.Status
}
