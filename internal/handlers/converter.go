package handlers

import (
	"net/http"

	"media-lite/internal/logging"
)

// ConverterStatus returns the converter snapshot, including the last scan.
func (h *Handlers) ConverterStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, h.converter.Status())
}

// TriggerScan asks the converter for an early pass and returns immediately.
func (h *Handlers) TriggerScan(w http.ResponseWriter, _ *http.Request) {
	h.converter.Trigger()
	logging.Info("Converter scan requested via API")
	writeJSONStatus(w, http.StatusAccepted, "scheduled")
}

// TriggerReconcile runs a reconciliation pass and reports how many catalog
// rows it repaired.
func (h *Handlers) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	repaired := h.converter.Reconcile(r.Context())
	logging.Info("Reconcile requested via API: %d association(s) repaired", repaired)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]int{"repaired": repaired})
}
