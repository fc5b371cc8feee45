// Package api serves the recorder's status, lifecycle events and metrics
// over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/videosaver/internal/events"
	"github.com/smazurov/videosaver/internal/logging"
	"github.com/smazurov/videosaver/internal/pipeline"
	"github.com/smazurov/videosaver/internal/rotation"
	"github.com/smazurov/videosaver/internal/version"
)

// StatusSource is implemented by rotation.Controller.
type StatusSource interface {
	State() rotation.State
	Sequence() int
	Produced() int
	Artifacts() []string
	Config() pipeline.SessionConfig
}

// Options configures the server.
type Options struct {
	Status            StatusSource
	EventBus          *events.Bus
	PrometheusHandler http.Handler // served on /metrics when set

	// Logs backs /api/logs. Defaults to the shared logging buffer.
	Logs *logging.RingBuffer
}

// Server is the Huma v2 API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	status     StatusSource
	eventBus   *events.Bus
	logs       *logging.RingBuffer
	logger     *slog.Logger
}

// NewServer creates the API with Go 1.22+ native routing.
func NewServer(opts Options) *Server {
	mux := http.NewServeMux()

	config := huma.DefaultConfig("videosaver API", version.Get().Version)
	config.Info.Description = "Status and lifecycle events of a rotating recorder"
	config.Servers = []*huma.Server{}

	s := &Server{
		api:      humago.New(mux, config),
		mux:      mux,
		status:   opts.Status,
		eventBus: opts.EventBus,
		logs:     opts.Logs,
		logger:   logging.GetLogger("api"),
	}
	if s.logs == nil {
		s.logs = logging.GetBuffer()
	}
	s.api.UseMiddleware(s.loggingMiddleware)

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	s.registerRoutes()
	s.registerLogRoutes()
	if s.eventBus != nil {
		s.registerEventRoutes()
	}
	return s
}

// Start serves on addr in the background. Listen errors are logged.
func (s *Server) Start(addr string) {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := s.httpServer
	go func() {
		s.logger.Info("Starting API server", "addr", addr)
		s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", "error", err)
		}
	}()
}

// Stop shuts the server down, closing event streams immediately.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Stopping API server")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Tags:        []string{"health"},
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthData{Status: "ok"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*VersionResponse, error) {
		info := version.Get()
		return &VersionResponse{Body: VersionData{
			Version:   info.Version,
			GitCommit: info.GitCommit,
			BuildDate: info.BuildDate,
			GoVersion: info.GoVersion,
			Platform:  info.Platform,
		}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Recorder status",
		Description: "Current controller state, file index and progress",
		Tags:        []string{"recording"},
		Errors:      []int{503},
	}, func(_ context.Context, _ *struct{}) (*StatusResponse, error) {
		if s.status == nil {
			return nil, huma.Error503ServiceUnavailable("Recorder not configured")
		}
		artifacts := s.status.Artifacts()
		if artifacts == nil {
			artifacts = []string{}
		}
		return &StatusResponse{Body: StatusData{
			State:        s.status.State().String(),
			Sequence:     s.status.Sequence(),
			Produced:     s.status.Produced(),
			UnitsPerFile: s.status.Config().UnitsPerFile,
			Artifacts:    artifacts,
		}}, nil
	})
}

func (s *Server) registerEventRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Artifact, rotation and pipeline error events as they happen",
		Tags:        []string{"events"},
	}, map[string]any{
		"connected":       ConnectedData{},
		"artifact-opened": events.ArtifactOpenedEvent{},
		"artifact-closed": events.ArtifactClosedEvent{},
		"rotation":        events.RotationEvent{},
		"pipeline-error":  events.PipelineErrorEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.ArtifactOpenedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ArtifactClosedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RotationEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PipelineErrorEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if err := send.Data(ConnectedData{Message: "SSE connection established"}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
