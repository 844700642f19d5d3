package domain

import "strconv"

// DocumentStatus mirrors the server-side document count. It may be stale
// between syncs.
type DocumentStatus struct {
	Count int
}

func (s DocumentStatus) Loaded() bool {
	return s.Count > 0
}

func (s DocumentStatus) Label() string {
	if s.Loaded() {
		return "Documents loaded"
	}
	return "No documents loaded"
}

func (s DocumentStatus) CountLabel() string {
	if !s.Loaded() {
		return "0"
	}
	return strconv.Itoa(s.Count)
}

// ClearControlVisible reports whether the clear-documents action is offered.
func (s DocumentStatus) ClearControlVisible() bool {
	return s.Loaded()
}
