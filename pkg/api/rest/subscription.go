package rest

import (
	"context"
	"net/http"

	"github.com/rzbill/subrelay/pkg/subscription"
)

// Subscriber produces subscription documents by name.
type Subscriber interface {
	Handle(ctx context.Context, name string) (*subscription.Result, error)
}

// subscription serves /sub/{name}. The name is the decoded remainder of the
// path and is matched exactly.
func (h *handlers) subscription(w http.ResponseWriter, r *http.Request) {
	res, err := h.subscriber.Handle(r.Context(), r.PathValue("name"))
	if err != nil {
		h.shaper.WriteError(w, err)
		return
	}
	h.shaper.WriteResult(w, res)
}
