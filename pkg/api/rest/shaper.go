package rest

import (
	"errors"
	"net/http"

	"github.com/rzbill/subrelay/pkg/subscription"
	"github.com/rzbill/subrelay/pkg/types"
)

// Subscription error bodies.
const (
	errConfigNotFound    = "Configuration not found"
	errConfigNotFoundMsg = "未找到对应的配置"
	errProcessing        = "Processing Error"
)

// SubscriptionError is the JSON body of a failed /sub request.
type SubscriptionError struct {
	Error   string     `json:"error"`
	Message string     `json:"message"`
	Debug   *DebugInfo `json:"debug,omitempty"`
}

// DebugInfo echoes the attempted backend call.
type DebugInfo struct {
	RequestURL string      `json:"requestUrl"`
	Config     DebugConfig `json:"config"`
}

// DebugConfig is the part of a configuration included in DebugInfo.
type DebugConfig struct {
	Name          string   `json:"name"`
	BackendURL    string   `json:"backendUrl"`
	SubscribeURLs []string `json:"subscribeUrls"`
	ProxyTag      string   `json:"proxyTag"`
}

// Shaper turns pipeline results into HTTP responses.
type Shaper struct {
	// ExposeDebug includes the request URL and configuration in 500 bodies.
	ExposeDebug bool
}

// WriteResult writes a successful subscription document.
func (s *Shaper) WriteResult(w http.ResponseWriter, res *subscription.Result) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Document)
}

// WriteError maps a pipeline error to a status and body.
func (s *Shaper) WriteError(w http.ResponseWriter, err error) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	status, body := s.Shape(err)
	writeJSON(w, status, body)
}

// Shape returns the status and body for err.
func (s *Shaper) Shape(err error) (int, *SubscriptionError) {
	if types.IsNotFound(err) {
		return http.StatusNotFound, &SubscriptionError{
			Error:   errConfigNotFound,
			Message: errConfigNotFoundMsg,
		}
	}

	body := &SubscriptionError{Error: errProcessing, Message: err.Error()}

	var pe *subscription.PipelineError
	if errors.As(err, &pe) {
		body.Message = pe.Err.Error()
		if s.ExposeDebug {
			body.Debug = &DebugInfo{
				RequestURL: pe.RequestURL,
				Config: DebugConfig{
					Name:          pe.Config.Name,
					BackendURL:    pe.Config.BackendURL,
					SubscribeURLs: types.NormalizeSubscribeURLs(pe.Config.SubscribeURLs),
					ProxyTag:      pe.Config.ProxyTag,
				},
			}
		}
	}
	return http.StatusInternalServerError, body
}
