// Package pipeline defines the contract between the rotation controller and
// the media engine that actually captures, encodes and muxes frames.
//
// The engine is opaque. The controller only reaches it through Service:
//
//	Build(desc)                   -> Handle
//	SetState(h, StatePlaying)     -> error
//	SendFinish(h)                 -> error
//	WaitForTerminalEvent(h, d)    -> *Event
//	Release(h)
//
// Descriptions are built from an immutable SessionConfig and a sequence
// index with NewDescription. Each backend renders the description into its
// own dialect (a gst-launch line, an ffmpeg argument list).
//
// Engines that carry process-wide state implement Engine and are wrapped
// in Once so initialization and teardown happen exactly one time.
package pipeline
