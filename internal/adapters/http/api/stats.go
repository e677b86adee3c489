// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"

	"github.com/okian/minirank/internal/domain/window"
)

// WindowsProvider lists the configured windows.
type WindowsProvider interface {
	Windows() []window.Spec
}

type windowInfo struct {
	Name string `json:"name"`
	Days int    `json:"days,omitempty"`
}

// WindowsHandler handles window listing requests.
type WindowsHandler struct {
	provider WindowsProvider
}

// NewWindowsHandler creates a new windows handler.
func NewWindowsHandler(provider WindowsProvider) *WindowsHandler {
	return &WindowsHandler{provider: provider}
}

// HandleWindows handles GET /windows requests.
func (h *WindowsHandler) HandleWindows(w http.ResponseWriter, _ *http.Request) {
	specs := h.provider.Windows()
	out := make([]windowInfo, len(specs))
	for i, s := range specs {
		out[i] = windowInfo{Name: s.Name, Days: s.Days}
	}
	writeJSON(w, http.StatusOK, out)
}
