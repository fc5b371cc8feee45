// Package launch runs each pipeline as a child process.
//
// A Dialect turns a pipeline.Description into an argv (gst-launch-1.0 -e,
// ffmpeg, or a user command template) and knows how to read the process
// output. The Service starts the process when the pipeline goes to
// playing, delivers SIGINT as the finish signal once the dialect saw the
// program's ready line, and maps the exit status to a terminal event:
//
//	exit 0 (or the dialect's clean exit)  -> EOS
//	non-zero with a diagnostic on output  -> Error (source, message, detail)
//	non-zero without one, or killed       -> Error or Unknown
//
// Each child runs in its own process group so teardown can kill helpers
// it spawned along with it.
package launch
