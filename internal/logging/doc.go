// Package logging provides structured logging with per-module log levels.
//
// Loggers are plain *slog.Logger values tagged with a "module" attribute.
// Output goes to stdout and, when journald is reachable, to the systemd
// journal under the "videosaver" identifier.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"rotation": "debug",
//			"ffmpeg":   "warn",
//		},
//	})
//
// Then fetch a logger per module:
//
//	logger := logging.GetLogger("rotation").With("sequence", 3)
//	logger.Info("Pipeline playing")
//
// Levels can be changed at runtime with SetLevels; loggers already handed
// out pick up the change because each module owns a slog.LevelVar.
//
// Journal fields can be filtered with journalctl:
//
//	journalctl -t videosaver MODULE=rotation
package logging
