package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

var httpStatuses = map[ErrorCategory]int{
	CategoryValidation: http.StatusBadRequest,
	CategoryConfig:     http.StatusBadRequest,
	CategoryProtocol:   http.StatusBadRequest,
	CategoryNotFound:   http.StatusNotFound,
	CategoryNetwork:    http.StatusBadGateway,
	CategoryConversion: http.StatusUnprocessableEntity,
	CategoryInjection:  http.StatusUnprocessableEntity,
	CategoryRuntime:    http.StatusServiceUnavailable,
}

// HTTPErrorResponse is the JSON body written for failed requests.
type HTTPErrorResponse struct {
	Error     string         `json:"error"`
	Code      string         `json:"code,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
}

// HTTPErrorAdapter writes classified errors as JSON responses.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

// NewHTTPErrorAdapter returns an adapter logging to logger, or to the
// default logger when nil.
func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

// StatusCodeFor maps err to an HTTP status. Categories without an entry,
// and unclassified errors, are server errors.
func (a *HTTPErrorAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if ce, ok := AsClassified(err); ok {
		if code, ok := httpStatuses[ce.category]; ok {
			return code
		}
	}
	return http.StatusInternalServerError
}

// FormatErrorResponse builds the response body for err. Unclassified
// errors expose only their message.
func (a *HTTPErrorAdapter) FormatErrorResponse(err error) HTTPErrorResponse {
	ce, ok := AsClassified(err)
	if !ok {
		if err == nil {
			return HTTPErrorResponse{}
		}
		return HTTPErrorResponse{Error: err.Error()}
	}
	resp := HTTPErrorResponse{Error: ce.message, Code: string(ce.category), Retryable: ce.CanRetry()}
	if len(ce.context) > 0 {
		resp.Details = ce.context.clone()
	}
	return resp
}

// WriteErrorResponse writes err to w and logs it at a level derived from its
// severity. Client errors below SeverityError are logged at debug.
func (a *HTTPErrorAdapter) WriteErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := a.StatusCodeFor(err)
	if err == nil {
		w.WriteHeader(status)
		return
	}

	body, jerr := json.Marshal(a.FormatErrorResponse(err))
	if jerr != nil {
		body = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)

	level := slog.LevelError
	if ce, ok := AsClassified(err); ok {
		level = levelFor(ce.severity)
		if status < http.StatusInternalServerError && ce.severity != SeverityFatal {
			level = slog.LevelDebug
		}
	}
	a.logger.Log(r.Context(), level, "Request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()))
}
