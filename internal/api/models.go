package api

// HealthData is the body of GET /api/health.
type HealthData struct {
	Status string `json:"status" example:"ok" doc:"Always ok while the process serves requests"`
}

// HealthResponse wraps HealthData.
type HealthResponse struct {
	Body HealthData
}

// StatusData describes the rotation controller.
type StatusData struct {
	State        string   `json:"state" example:"running" doc:"Controller state: idle, running or draining"`
	Sequence     int      `json:"sequence" example:"3" doc:"Index of the current or next output file"`
	Produced     int      `json:"produced" example:"412" doc:"Units written into the current file"`
	UnitsPerFile int      `json:"units_per_file" example:"1000" doc:"Units per output file"`
	Artifacts    []string `json:"artifacts" example:"[\"output_0.mp4\"]" doc:"Every output file opened so far"`
}

// StatusResponse wraps StatusData.
type StatusResponse struct {
	Body StatusData
}

// VersionData is the running build.
type VersionData struct {
	Version   string `json:"version" example:"v0.3.1"`
	GitCommit string `json:"git_commit" example:"a1b2c3d"`
	BuildDate string `json:"build_date" example:"2026-01-02T03:04:05Z"`
	GoVersion string `json:"go_version" example:"go1.24.11"`
	Platform  string `json:"platform" example:"linux/arm64"`
}

// VersionResponse wraps VersionData.
type VersionResponse struct {
	Body VersionData
}

// ConnectedData is the first message on every event stream.
type ConnectedData struct {
	Message string `json:"message" example:"SSE connection established"`
}
