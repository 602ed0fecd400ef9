// Package editor holds the state and actions of one code editor.
//
// An EditorSession owns the source text, output visibility and the
// OutputBuffer of a single editor view. The view itself sits behind the UI
// interface: a browser page over a websocket, or a terminal. Actions such
// as Run, Save and Share take the session explicitly and talk to the view
// only through that interface, so every action can be driven from tests.
//
// # Running code
//
// The Bridge hands source to an Interpreter together with a hostfunc.Host
// built for that run. Output streams into the OutputBuffer; input prompts
// and support-file reads go to the session's Environment. A finished run
// appends a timing annotation:
//
//	hello
//	<completed in 12 ms>
//
// Starting a run while another is in flight cancels the older run and
// discards anything it produces afterwards; its result is Superseded.
//
// # Keyboard
//
// DefaultKeymap binds one chord to each action. Dispatch reports whether a
// chord was recognized so the view can suppress the browser default.
package editor
