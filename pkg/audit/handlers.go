package audit

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/iflastandards/standards-authz/pkg/httputil"
)

// Handlers serves the decision log over HTTP
type Handlers struct {
	log *MemoryLogger
}

// NewHandlers creates new audit handlers
func NewHandlers(log *MemoryLogger) *Handlers {
	return &Handlers{log: log}
}

// RegisterRoutes registers decision log routes. The caller is expected to
// restrict router to administrators.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/decisions", h.listDecisions).Methods(http.MethodGet)
	router.HandleFunc("/decisions", h.clearDecisions).Methods(http.MethodDelete)
	router.HandleFunc("/decisions/stats", h.getStats).Methods(http.MethodGet)
	router.HandleFunc("/decisions/export", h.exportDecisions).Methods(http.MethodGet)
}

// listDecisions handles GET /decisions
func (h *Handlers) listDecisions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, r, err.Error())
		return
	}

	decisions := h.log.Search(filter)
	httputil.WriteData(w, map[string]interface{}{
		"decisions": decisions,
		"count":     len(decisions),
	})
}

// clearDecisions handles DELETE /decisions
func (h *Handlers) clearDecisions(w http.ResponseWriter, r *http.Request) {
	h.log.Clear()
	httputil.WriteNoContent(w)
}

// getStats handles GET /decisions/stats
func (h *Handlers) getStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, h.log.Stats())
}

// exportDecisions handles GET /decisions/export
func (h *Handlers) exportDecisions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, r, err.Error())
		return
	}

	format := ExportFormat(httputil.ParseQueryString(r, "format", string(FormatJSON)))
	data, err := Export(h.log.Search(filter), format)
	if err != nil {
		httputil.WriteBadRequest(w, r, err.Error())
		return
	}

	contentType := "application/json"
	switch format {
	case FormatNDJSON:
		contentType = "application/x-ndjson"
	case FormatCSV:
		contentType = "text/csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=decisions.%s", format))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func parseFilter(r *http.Request) (Filter, error) {
	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		return Filter{}, err
	}
	if limit < 0 {
		return Filter{}, fmt.Errorf("limit must not be negative")
	}

	result := Result(httputil.ParseQueryString(r, "result", ""))
	if result != "" && result != ResultAllowed && result != ResultDenied {
		return Filter{}, fmt.Errorf("result must be %q or %q", ResultAllowed, ResultDenied)
	}

	return Filter{
		UserID:   httputil.ParseQueryString(r, "userId", ""),
		Resource: httputil.ParseQueryString(r, "resource", ""),
		Result:   result,
		Limit:    limit,
	}, nil
}
