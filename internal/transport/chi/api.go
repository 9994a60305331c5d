package chi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ErrorResponseCode is a stable, machine-readable error code.
type ErrorResponseCode string

// Error codes.
const (
	ErrorResponseCodeBadRequest           ErrorResponseCode = "bad_request"
	ErrorResponseCodeUnauthorized         ErrorResponseCode = "unauthorized"
	ErrorResponseCodeValidationFailed     ErrorResponseCode = "validation_failed"
	ErrorResponseCodeSessionNotFound      ErrorResponseCode = "session_not_found"
	ErrorResponseCodeInsufficientCredits  ErrorResponseCode = "insufficient_credits"
	ErrorResponseCodeEmbeddingQuota       ErrorResponseCode = "embedding_quota_exceeded"
	ErrorResponseCodeRateLimited          ErrorResponseCode = "rate_limited"
	ErrorResponseCodeServiceUnavailable   ErrorResponseCode = "service_unavailable"
	ErrorResponseCodeEmbeddingProviderErr ErrorResponseCode = "embedding_provider_error"
	ErrorResponseCodeInternalError        ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code      ErrorResponseCode `json:"code"`
	Message   string            `json:"message"`
	Required  *int64            `json:"required,omitempty"`
	Available *int64            `json:"available,omitempty"`
}

// SearchRequest is the body of POST /v1/search/{kind}.
type SearchRequest struct {
	Query          string            `json:"query,omitempty"`
	ImageBase64    string            `json:"image_base64,omitempty"`
	ImageEmbedding []float32         `json:"image_embedding,omitempty"`
	TextWeight     *float64          `json:"text_weight,omitempty"`
	ImageWeight    *float64          `json:"image_weight,omitempty"`
	Filters        map[string]string `json:"filters,omitempty"`
	Limit          int               `json:"limit,omitempty"`
	Offset         int               `json:"offset,omitempty"`
	UserID         string            `json:"user_id,omitempty"`
	SessionID      string            `json:"session_id,omitempty"`
	Domain         string            `json:"domain,omitempty"`
}

// GetUsageParams are the query parameters of GET /v1/usage.
type GetUsageParams struct {
	UserID *string `form:"user_id,omitempty" json:"user_id,omitempty"`
	Period *string `form:"period,omitempty" json:"period,omitempty"`
}

// ServerInterface lists the HTTP operations of the API.
type ServerInterface interface {
	// (POST /v1/search/{kind})
	Search(w http.ResponseWriter, r *http.Request, kind string)
	// (GET /v1/conversations/{sessionId})
	GetConversation(w http.ResponseWriter, r *http.Request, sessionID string)
	// (DELETE /v1/conversations/{sessionId})
	DeleteConversation(w http.ResponseWriter, r *http.Request, sessionID string)
	// (POST /v1/remote/refresh)
	RefreshRemote(w http.ResponseWriter, r *http.Request)
	// (GET /v1/usage)
	GetUsage(w http.ResponseWriter, r *http.Request, params GetUsageParams)
	// (GET /health)
	HealthCheck(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	Metrics(w http.ResponseWriter, r *http.Request)
}

// InvalidParamFormatError reports a parameter that failed to bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// ServerInterfaceWrapper binds path and query parameters before dispatch.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) Search(w http.ResponseWriter, r *http.Request) {
	var kind string
	err := runtime.BindStyledParameterWithOptions("simple", "kind", chi.URLParam(r, "kind"), &kind,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "kind", Err: err})
		return
	}
	siw.Handler.Search(w, r, kind)
}

func (siw *ServerInterfaceWrapper) GetConversation(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := siw.sessionID(w, r)
	if !ok {
		return
	}
	siw.Handler.GetConversation(w, r, sessionID)
}

func (siw *ServerInterfaceWrapper) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := siw.sessionID(w, r)
	if !ok {
		return
	}
	siw.Handler.DeleteConversation(w, r, sessionID)
}

func (siw *ServerInterfaceWrapper) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var sessionID string
	err := runtime.BindStyledParameterWithOptions("simple", "sessionId", chi.URLParam(r, "sessionId"), &sessionID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "sessionId", Err: err})
		return "", false
	}
	return sessionID, true
}

func (siw *ServerInterfaceWrapper) GetUsage(w http.ResponseWriter, r *http.Request) {
	var params GetUsageParams
	query := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, false, "user_id", query, &params.UserID); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "user_id", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "period", query, &params.Period); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "period", Err: err})
		return
	}
	siw.Handler.GetUsage(w, r, params)
}

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerWithOptions mounts si on a chi router.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, err.Error())
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:          si,
		ErrorHandlerFunc: options.ErrorHandlerFunc,
	}

	r.Post(options.BaseURL+"/v1/search/{kind}", wrapper.Search)
	r.Get(options.BaseURL+"/v1/conversations/{sessionId}", wrapper.GetConversation)
	r.Delete(options.BaseURL+"/v1/conversations/{sessionId}", wrapper.DeleteConversation)
	r.Post(options.BaseURL+"/v1/remote/refresh", si.RefreshRemote)
	r.Get(options.BaseURL+"/v1/usage", wrapper.GetUsage)
	r.Get(options.BaseURL+"/health", si.HealthCheck)
	r.Get(options.BaseURL+"/metrics", si.Metrics)
	return r
}
