package handlers

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/kozaktomas/face-migrator/internal/analysis"
	"github.com/kozaktomas/face-migrator/internal/config"
	"github.com/kozaktomas/face-migrator/internal/executor"
	"github.com/kozaktomas/face-migrator/internal/immichapi"
	"github.com/kozaktomas/face-migrator/internal/store"
	"github.com/kozaktomas/face-migrator/internal/store/immich"
	"github.com/kozaktomas/face-migrator/internal/store/legacy"
)

// ImmichClient is the slice of the Immich API the handlers use. The concrete
// client satisfies it; handler tests substitute a fake.
type ImmichClient interface {
	executor.ImmichAPI
	Ping(ctx context.Context) error
	GetPersonThumbnail(ctx context.Context, personID string) ([]byte, string, error)
	GetAssetThumbnail(ctx context.Context, assetID, size string) ([]byte, string, error)
}

// Runtime owns the mutable backend connections behind the HTTP API. Readers
// and the API client are opened lazily on first use, so the server comes up
// even with nothing configured, and are rebuilt when a /config endpoint
// repoints them.
type Runtime struct {
	cfg         *config.Config
	coordinator *analysis.Coordinator
	jobs        *executor.JobManager

	mu           sync.Mutex
	source       store.SourceReader
	sourceCloser io.Closer
	target       store.TargetReader
	targetCloser io.Closer
	api          ImmichClient
}

// NewRuntime wires the analysis coordinator to lazily-opened readers.
func NewRuntime(cfg *config.Config) *Runtime {
	rt := &Runtime{
		cfg:  cfg,
		jobs: executor.NewJobManager(),
	}
	settings := cfg.Snapshot()
	rt.coordinator = analysis.NewCoordinator(
		sourceProxy{rt},
		targetProxy{rt},
		settings.Matching.NameMatchMode,
	)
	rt.coordinator.SetMinMatches(settings.Matching.MinMatches)
	rt.coordinator.SetMinClusterPhotos(settings.Matching.MinPhotosInCluster)
	return rt
}

// Close releases the open store connections.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	var firstErr error
	if rt.sourceCloser != nil {
		if err := rt.sourceCloser.Close(); err != nil {
			firstErr = err
		}
		rt.source, rt.sourceCloser = nil, nil
	}
	if rt.targetCloser != nil {
		if err := rt.targetCloser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		rt.target, rt.targetCloser = nil, nil
	}
	return firstErr
}

func (rt *Runtime) sourceReader() (store.SourceReader, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.source != nil {
		return rt.source, nil
	}
	settings := rt.cfg.Snapshot()
	reader, err := legacy.Open(settings.SourceDB.Path, settings.Matching.NameMatchMode)
	if err != nil {
		return nil, err
	}
	rt.source = reader
	rt.sourceCloser = reader
	return reader, nil
}

func (rt *Runtime) targetReader() (store.TargetReader, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.target != nil {
		return rt.target, nil
	}
	settings := rt.cfg.Snapshot()
	reader, err := immich.Open(immich.ConnConfig{
		Host:     settings.TargetDB.Host,
		Port:     settings.TargetDB.Port,
		Name:     settings.TargetDB.Name,
		User:     settings.TargetDB.User,
		Password: settings.TargetDB.Password,
	}, settings.Matching.NameMatchMode)
	if err != nil {
		return nil, err
	}
	rt.target = reader
	rt.targetCloser = reader
	return reader, nil
}

func (rt *Runtime) apiClient() (ImmichClient, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.api != nil {
		return rt.api, nil
	}
	settings := rt.cfg.Snapshot()
	client, err := immichapi.NewClient(settings.TargetAPI.URL, settings.TargetAPI.APIKey)
	if err != nil {
		return nil, err
	}
	rt.api = client
	return client, nil
}

// sourceProxy defers opening the legacy reader until the first read. It keeps
// the coordinator decoupled from connection lifecycle, so a /config swap only
// has to drop the cached reader.
type sourceProxy struct{ rt *Runtime }

func (p sourceProxy) Snapshot(ctx context.Context) (*store.SourceSnapshot, error) {
	reader, err := p.rt.sourceReader()
	if err != nil {
		return nil, fmt.Errorf("open source store: %w", err)
	}
	return reader.Snapshot(ctx)
}

func (p sourceProxy) TestConnection(ctx context.Context) store.SourceStatus {
	reader, err := p.rt.sourceReader()
	if err != nil {
		return store.SourceStatus{Error: err.Error()}
	}
	return reader.TestConnection(ctx)
}

type targetProxy struct{ rt *Runtime }

func (p targetProxy) Snapshot(ctx context.Context) (*store.TargetSnapshot, error) {
	reader, err := p.rt.targetReader()
	if err != nil {
		return nil, fmt.Errorf("open target store: %w", err)
	}
	return reader.Snapshot(ctx)
}

func (p targetProxy) TestConnection(ctx context.Context) store.TargetStatus {
	reader, err := p.rt.targetReader()
	if err != nil {
		return store.TargetStatus{Error: err.Error()}
	}
	return reader.TestConnection(ctx)
}

// APIStatus reports the outcome of an Immich API connection test.
type APIStatus struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// Statuses bundles the three connection checks for /status.
type Statuses struct {
	SourceDB  store.SourceStatus `json:"source_db"`
	TargetDB  store.TargetStatus `json:"target_db"`
	TargetAPI APIStatus          `json:"target_api"`
}

// Statuses runs a connection test against all three backends.
func (rt *Runtime) Statuses(ctx context.Context) Statuses {
	return Statuses{
		SourceDB:  sourceProxy{rt}.TestConnection(ctx),
		TargetDB:  targetProxy{rt}.TestConnection(ctx),
		TargetAPI: rt.apiStatus(ctx),
	}
}

func (rt *Runtime) apiStatus(ctx context.Context) APIStatus {
	client, err := rt.apiClient()
	if err != nil {
		return APIStatus{Error: err.Error()}
	}
	if err := client.Ping(ctx); err != nil {
		return APIStatus{Error: err.Error()}
	}
	return APIStatus{Connected: true}
}

// SwapSource repoints the source reader at a new database file, invalidates
// the analysis caches and reports the new connection state.
func (rt *Runtime) SwapSource(ctx context.Context, path string) store.SourceStatus {
	rt.cfg.SetSourceDB(path)
	rt.mu.Lock()
	if rt.sourceCloser != nil {
		rt.sourceCloser.Close()
	}
	rt.source, rt.sourceCloser = nil, nil
	rt.mu.Unlock()
	rt.coordinator.Invalidate()

	return sourceProxy{rt}.TestConnection(ctx)
}

// SwapTargetAPI updates the Immich API connection. Empty fields keep their
// current value.
func (rt *Runtime) SwapTargetAPI(ctx context.Context, url, apiKey string) APIStatus {
	rt.cfg.SetTargetAPI(url, apiKey)
	rt.mu.Lock()
	rt.api = nil
	rt.mu.Unlock()

	return rt.apiStatus(ctx)
}

// SwapTargetDB applies a partial target database override, reconnects and
// reports the new connection state.
func (rt *Runtime) SwapTargetDB(ctx context.Context, update config.TargetDBUpdate) store.TargetStatus {
	rt.cfg.SetTargetDB(update)
	rt.mu.Lock()
	if rt.targetCloser != nil {
		rt.targetCloser.Close()
	}
	rt.target, rt.targetCloser = nil, nil
	rt.mu.Unlock()
	rt.coordinator.Invalidate()

	return targetProxy{rt}.TestConnection(ctx)
}
