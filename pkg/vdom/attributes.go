package vdom

import "strings"

// attr creates an Attr with the given key and value.
func attr(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// ID sets the id attribute.
func ID(id string) Attr { return attr("id", id) }

// Class sets the class attribute, joining multiple classes with spaces.
// Empty class names are dropped.
func Class(classes ...string) Attr {
	kept := make([]string, 0, len(classes))
	for _, c := range classes {
		if c != "" {
			kept = append(kept, c)
		}
	}
	return attr("class", strings.Join(kept, " "))
}

// Data creates a data-* attribute.
// Example: Data("action", "start") → data-action="start"
func Data(key, value string) Attr { return attr("data-"+key, value) }

// Type sets the type attribute.
func Type(t string) Attr { return attr("type", t) }

// Disabled sets the disabled attribute.
func Disabled(disabled bool) Attr { return attr("disabled", disabled) }

// Key sets the reconciliation key.
func Key(key string) Attr { return attr("key", key) }

// If returns a when cond is true and an empty Attr otherwise.
func If(cond bool, a Attr) Attr {
	if cond {
		return a
	}
	return Attr{}
}
