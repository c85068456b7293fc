// Package server serves a memoized screen to browsers over HTTP and
// WebSocket.
//
// GET / renders the page. The page script opens /ws, where each connection
// gets a Session with its own Screen. Every store notification marks the
// session dirty; the next loop turn re-renders the screen, diffs it against
// the last tree and sends the patches. Memoized regions that did not
// re-render hand back the same subtree, which the diff skips.
//
// # Wire format
//
// Server to client, JSON text frames:
//
//	{"seq":1,"html":"<main data-hid=\"h1\">...</main>"}
//	{"seq":2,"patches":[{"op":"SetText","hid":"h9","value":"Clock: 1"}]}
//	{"error":{"code":"E302","message":"Unknown action"}}
//
// Client to server:
//
//	{"action":"start"}
//
// # Threading
//
// Screens, the store and the trees are only touched on the loop. The read
// loop decodes frames and dispatches them; the write loop owns the
// connection's writer.
package server
