package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/videosaver/internal/logging"
)

// LogsInput filters GET /api/logs.
type LogsInput struct {
	Limit  int    `query:"limit" default:"100" minimum:"1" maximum:"1000" doc:"Newest entries to return"`
	Module string `query:"module" doc:"Only entries of this logger module"`
}

// LogsData lists recent log entries, oldest first.
type LogsData struct {
	Entries []logging.LogEntry `json:"entries"`
}

// LogsResponse wraps LogsData.
type LogsResponse struct {
	Body LogsData
}

func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent logs",
		Description: "Most recent log entries kept in memory",
		Tags:        []string{"logs"},
	}, func(_ context.Context, input *LogsInput) (*LogsResponse, error) {
		return &LogsResponse{Body: LogsData{Entries: recentLogs(s.logs, input.Limit, input.Module)}}, nil
	})
}

// recentLogs returns up to limit entries, newest last, optionally limited
// to one module.
func recentLogs(buffer *logging.RingBuffer, limit int, module string) []logging.LogEntry {
	entries := []logging.LogEntry{}
	if buffer == nil {
		return entries
	}
	if module == "" {
		return append(entries, buffer.Recent(limit)...)
	}

	all := buffer.ReadAll()
	for i := len(all) - 1; i >= 0 && len(entries) < limit; i-- {
		if all[i].Module == module {
			entries = append(entries, all[i])
		}
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}
