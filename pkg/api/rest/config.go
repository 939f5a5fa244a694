package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rzbill/subrelay/pkg/log"
	"github.com/rzbill/subrelay/pkg/types"
)

// maxBodyBytes bounds admin request bodies.
const maxBodyBytes = 1 << 20

// ConfigService manages stored configurations.
type ConfigService interface {
	List(ctx context.Context) ([]*types.Configuration, error)
	Get(ctx context.Context, id string) (*types.Configuration, error)
	Create(ctx context.Context, draft types.ConfigDraft) (*types.Configuration, error)
	Update(ctx context.Context, id string, draft types.ConfigDraft) (*types.Configuration, error)
	Delete(ctx context.Context, id string) error
}

// config serves /api/config. The optional id query parameter selects a
// single record.
func (h *handlers) config(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")

	switch r.Method {
	case http.MethodGet:
		if id != "" {
			h.getConfig(w, r, id)
		} else {
			h.listConfigs(w, r)
		}
	case http.MethodPost, http.MethodPut:
		// POST with an id updates, matching the admin page.
		if id == "" && r.Method == http.MethodPut {
			writeMessage(w, http.StatusBadRequest, "Config ID required")
			return
		}
		h.saveConfig(w, r, id)
	case http.MethodDelete:
		if id == "" {
			writeMessage(w, http.StatusBadRequest, "Config ID required")
			return
		}
		h.deleteConfig(w, r, id)
	default:
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *handlers) listConfigs(w http.ResponseWriter, r *http.Request) {
	items, err := h.configs.List(r.Context())
	if err != nil {
		h.internalError(w, r, "Failed to list configurations", err)
		return
	}
	if items == nil {
		items = []*types.Configuration{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handlers) getConfig(w http.ResponseWriter, r *http.Request, id string) {
	c, err := h.configs.Get(r.Context(), id)
	if types.IsNotFound(err) {
		writeMessage(w, http.StatusNotFound, "Config not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "Failed to get configuration", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handlers) saveConfig(w http.ResponseWriter, r *http.Request, id string) {
	var draft types.ConfigDraft
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&draft); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var (
		c   *types.Configuration
		err error
	)
	if id == "" {
		c, err = h.configs.Create(r.Context(), draft)
	} else {
		c, err = h.configs.Update(r.Context(), id, draft)
	}

	var ve *types.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, ve)
		return
	}
	if err != nil {
		h.internalError(w, r, "Failed to save configuration", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handlers) deleteConfig(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.configs.Delete(r.Context(), id); err != nil {
		h.internalError(w, r, "Failed to delete configuration", err)
		return
	}
	writeMessage(w, http.StatusOK, "Config deleted")
}

func (h *handlers) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	log.FromContext(r.Context()).Error(msg, log.Err(err))
	writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
}
