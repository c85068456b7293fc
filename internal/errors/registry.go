package errors

// Template defines a registered error code.
type Template struct {
	Category Category
	Message  string
	Detail   string
}

var registry = map[string]Template{
	// Configuration (E101-E119)
	"E101": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "The configuration file passed with --config does not exist.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "memoview.json could not be parsed as JSON.",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid port",
		Detail:   "The server port must be between 1 and 65535.",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Invalid timer interval",
		Detail:   "The timer interval must be a positive Go duration such as \"1s\" or \"250ms\".",
	},
	"E105": {
		Category: CategoryConfig,
		Message:  "Invalid log setting",
		Detail:   "log.level must be one of debug, info, warn, error and log.format must be text or json.",
	},
	"E106": {
		Category: CategoryConfig,
		Message:  "Invalid queue size",
		Detail:   "The loop queue size must be at least 1.",
	},

	// Server (E201-E219)
	"E201": {
		Category: CategoryServer,
		Message:  "Failed to listen",
		Detail:   "The HTTP server could not bind its address.",
	},
	"E202": {
		Category: CategoryServer,
		Message:  "WebSocket upgrade failed",
		Detail:   "The /ws request could not be upgraded to a WebSocket connection.",
	},

	// Protocol (E301-E319)
	"E301": {
		Category: CategoryProtocol,
		Message:  "Invalid client message",
		Detail:   "Client frames must be JSON objects of the form {\"action\":\"...\"}.",
	},
	"E302": {
		Category: CategoryProtocol,
		Message:  "Unknown action",
		Detail:   "Known actions are start, stop, toggle-paused and toggle-video-type.",
	},
}

// Codes returns all registered error codes.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// Lookup returns the template for an error code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
