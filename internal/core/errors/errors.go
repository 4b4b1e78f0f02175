package errors

const (
	HttpInternalError            = "internal_error"
	HttpInvalidJsonError         = "invalid_json"
	HttpInvalidRequestError      = "invalid_request"
	HttpGroupNotFoundError       = "group_not_found"
	HttpGroupReprocessingError   = "group_already_reprocessing"
	HttpProgressUnavailableError = "progress_unavailable"
)

// ErrorResponse is the error response body of every API endpoint.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
