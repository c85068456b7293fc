// Package errors provides coded, actionable errors for the memoview CLI and
// server.
//
// Every error carries a code (for example "E103") registered with a short
// message, a category and a detail paragraph. Callers attach a suggestion
// and the underlying cause:
//
//	err := errors.New("E103").
//	    WithDetail(fmt.Sprintf("port %d is out of range", port)).
//	    WithSuggestion("Use a port between 1 and 65535")
//
//	fmt.Print(err.Format())
//	// Output:
//	// ERROR E103: Invalid port
//	//
//	//   port 70000 is out of range
//	//
//	//   Hint: Use a port between 1 and 65535
//
// # Categories
//
//   - config: memoview.json loading and validation (E1xx)
//   - server: listener and WebSocket upgrade failures (E2xx)
//   - protocol: malformed or unknown client messages (E3xx)
//   - cli: command-line usage
//
// Library packages under pkg/ do not use this package; they return wrapped
// standard errors.
package errors
