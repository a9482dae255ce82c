package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/gophchat/internal/chat"
	"github.com/dmitrijs2005/gophchat/internal/common"
)

type pageResponse struct {
	Messages    []json.RawMessage `json:"messages"`
	TotalPages  int               `json:"totalPages"`
	CurrentPage int               `json:"currentPage"`
}

type clearResponse struct {
	Success bool `json:"success"`
}

// positiveQuery reads an optional positive integer query parameter; zero
// means it was absent.
func positiveQuery(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", common.ErrorValidation, name)
	}
	return n, nil
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	page, err := positiveQuery(r, "page")
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	limit, err := positiveQuery(r, "limit")
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	p, err := h.messages.Page(r.Context(), page, limit)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	records, err := chat.EncodeRecords(p.Messages)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	if records == nil {
		records = []json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, pageResponse{Messages: records, TotalPages: p.TotalPages, CurrentPage: p.CurrentPage})
}

func (h *Handler) clearMessages(w http.ResponseWriter, r *http.Request) {
	n, err := h.messages.Clear(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	h.metrics.Clears.Inc()
	h.notifier.BroadcastCleared()

	var by string
	if c := claimsFrom(r.Context()); c != nil {
		by = c.Username
	}
	h.logger.Info(r.Context(), "history cleared", "by", by, "removed", n)
	writeJSON(w, http.StatusOK, clearResponse{Success: true})
}
