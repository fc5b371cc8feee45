// Package rotation owns a single media pipeline at a time and swaps it for
// a fresh one every UnitsPerFile units of work.
//
// A Controller moves between three states:
//
//	Idle     --Start-->          Running
//	Running  --Stop-->           Draining --> Idle
//	Running  --Advance (full)--> Draining --> Idle --> Running
//
// Stop always runs the full finish signal, drain, teardown sequence and
// always ends in Idle, whatever the engine reports on the way. Start,
// Advance and Stop are serialized internally, so a caller can never
// observe a half-swapped pipeline.
//
// Every pipeline that was constructed consumes its sequence index when it
// is released. Artifact names are therefore never reused within one
// controller, across rotations and explicit Stop/Start cycles alike.
package rotation
