package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	httperr "github.com/aevon-lab/reprocessor/internal/core/errors"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
	"github.com/aevon-lab/reprocessor/internal/reprocessing"
	"github.com/gin-gonic/gin"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgInternal       = "Internal error"
)

// Progress states reported by ProgressHandler.
const (
	StateInProgress = "in_progress"
	StateFinished   = "finished"
	StateUnknown    = "unknown"
)

// apiError carries the structured HTTP error shape from a helper back to the handler.
type apiError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *apiError) Error() string {
	return e.message
}

type startRequest struct {
	RemainingEvents string `json:"remaining_events"`
	MaxEvents       *int64 `json:"max_events,omitempty"`
	ActingUserID    *int64 `json:"acting_user_id,omitempty"`
}

type startResponse struct {
	NewGroupID int64 `json:"new_group_id,string"`
}

type progressResponse struct {
	Pending int64              `json:"pending"`
	Info    *reprocessing.Info `json:"info,omitempty"`
	State   string             `json:"state"`
}

// outcomeRequest reports what ingestion did with one payload.
type outcomeRequest struct {
	ProjectID   int64      `json:"project_id"`
	EventID     string     `json:"event_id"`
	GroupID     int64      `json:"group_id,string"`
	PrimaryHash string     `json:"primary_hash"`
	Saved       bool       `json:"saved"`
	Data        v1.Payload `json:"data"`
}

// StartHandler forks a group and enqueues its group job.
func (s *Service) StartHandler(c *gin.Context) {
	projectID, groupID, apiErr := parseGroupPath(c)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	var body startRequest
	if err := s.readJSON(c, &body); err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	startTime := time.Now().UTC()
	newGroupID, err := s.engine.StartReprocessing(ctx, reprocessing.StartRequest{
		ProjectID:       projectID,
		GroupID:         groupID,
		RemainingEvents: body.RemainingEvents,
		MaxEvents:       body.MaxEvents,
		ActingUserID:    body.ActingUserID,
	})
	if err != nil {
		writeError(c, startError(err, groupID))
		return
	}

	err = s.jobs.ScheduleGroup(ctx, reprocessing.GroupJob{
		ProjectID:       projectID,
		GroupID:         groupID,
		NewGroupID:      newGroupID,
		RemainingEvents: reprocessing.RemainingEvents(body.RemainingEvents),
		MaxEvents:       body.MaxEvents,
		StartTime:       startTime,
	})
	if err != nil {
		// The fork is committed; the monitor reports the group until an operator reruns it.
		slog.Error("[API] Failed to schedule group job", "error", err, "group_id", groupID, "new_group_id", newGroupID)
		writeError(c, &apiError{statusCode: http.StatusInternalServerError, errorType: httperr.HttpInternalError, message: msgInternal})
		return
	}

	slog.Info("[API] Reprocessing started", "project_id", projectID, "group_id", groupID, "new_group_id", newGroupID)
	c.JSON(http.StatusAccepted, startResponse{NewGroupID: newGroupID})
}

func startError(err error, groupID int64) *apiError {
	var conflict *reprocessing.ConflictError
	switch {
	case errors.As(err, &conflict):
		return &apiError{statusCode: http.StatusConflict, errorType: httperr.HttpGroupReprocessingError, message: err.Error()}
	case errors.Is(err, reprocessing.ErrGroupNotFound):
		return &apiError{statusCode: http.StatusNotFound, errorType: httperr.HttpGroupNotFoundError, message: err.Error()}
	case errors.Is(err, reprocessing.ErrInvalidRemainingEvents), errors.Is(err, reprocessing.ErrInvalidMaxEvents):
		return &apiError{statusCode: http.StatusBadRequest, errorType: httperr.HttpInvalidRequestError, message: err.Error()}
	default:
		slog.Error("[API] Failed to start reprocessing", "error", err, "group_id", groupID)
		return &apiError{statusCode: http.StatusInternalServerError, errorType: httperr.HttpInternalError, message: msgInternal}
	}
}

// ProgressHandler reports the counter state combined with the group status.
func (s *Service) ProgressHandler(c *gin.Context) {
	groupID, err := strconv.ParseInt(c.Param("group_id"), 10, 64)
	if err != nil {
		writeError(c, &apiError{statusCode: http.StatusBadRequest, errorType: httperr.HttpInvalidRequestError, message: "group_id must be an integer"})
		return
	}

	ctx := c.Request.Context()
	progress, err := s.engine.GetProgress(ctx, groupID)
	if err != nil {
		slog.Error("[API] Failed to read progress", "error", err, "group_id", groupID)
		writeError(c, &apiError{statusCode: http.StatusServiceUnavailable, errorType: httperr.HttpProgressUnavailableError, message: "Progress is temporarily unavailable"})
		return
	}

	state, apiErr := s.progressState(c, groupID, progress)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	c.JSON(http.StatusOK, progressResponse{Pending: progress.Pending, Info: progress.Info, State: state})
}

// progressState trusts the group row over the counter: a deleted old group
// means finalization ran, whatever the counter says.
func (s *Service) progressState(c *gin.Context, groupID int64, progress reprocessing.Progress) (string, *apiError) {
	group, err := s.groups.GetGroup(c.Request.Context(), groupID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return StateFinished, nil
	case err != nil:
		slog.Error("[API] Failed to read group", "error", err, "group_id", groupID)
		return "", &apiError{statusCode: http.StatusInternalServerError, errorType: httperr.HttpInternalError, message: msgInternal}
	case group.Status != v1.GroupStatusReprocessing:
		return "", &apiError{statusCode: http.StatusNotFound, errorType: httperr.HttpGroupNotFoundError, message: "group is not being reprocessed"}
	case progress.Info == nil:
		return StateUnknown, nil
	case progress.Pending <= 0:
		return StateFinished, nil
	default:
		return StateInProgress, nil
	}
}

// OutcomeHandler takes the ingestion result of one payload. A saved
// reprocessed event first hides its stale row; every reprocessed event then
// counts towards completion.
func (s *Service) OutcomeHandler(c *gin.Context) {
	var body outcomeRequest
	if err := s.readJSON(c, &body); err != nil {
		writeError(c, err)
		return
	}
	if body.ProjectID <= 0 || body.EventID == "" {
		writeError(c, &apiError{statusCode: http.StatusBadRequest, errorType: httperr.HttpInvalidRequestError, message: "project_id and event_id are required"})
		return
	}
	if body.Data == nil {
		body.Data = v1.Payload{}
	}
	if body.Data.ProjectID() == 0 {
		body.Data["project"] = body.ProjectID
	}

	ctx := c.Request.Context()
	if body.Saved {
		event := &v1.Event{
			ProjectID:   body.ProjectID,
			EventID:     body.EventID,
			GroupID:     body.GroupID,
			PrimaryHash: body.PrimaryHash,
			Data:        body.Data,
		}
		if err := s.engine.ReconcileGroupingKeyChange(ctx, event); err != nil {
			s.internalError(c, "reconcile grouping key", err, body.EventID)
			return
		}
		if err := s.engine.SaveUnprocessedEvent(ctx, body.ProjectID, body.EventID); err != nil {
			s.internalError(c, "archive unprocessed payload", err, body.EventID)
			return
		}
	}

	if err := s.engine.MarkEventReprocessed(ctx, body.Data); err != nil {
		s.internalError(c, "mark event reprocessed", err, body.EventID)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// BackupHandler keeps a copy of an incoming payload before processing.
func (s *Service) BackupHandler(c *gin.Context) {
	var payload v1.Payload
	if err := s.readJSON(c, &payload); err != nil {
		writeError(c, err)
		return
	}
	if payload.ProjectID() <= 0 || payload.EventID() == "" {
		writeError(c, &apiError{statusCode: http.StatusBadRequest, errorType: httperr.HttpInvalidRequestError, message: "project and event_id are required"})
		return
	}

	if err := s.engine.BackupUnprocessedEvent(c.Request.Context(), payload); err != nil {
		s.internalError(c, "back up payload", err, payload.EventID())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *Service) internalError(c *gin.Context, op string, err error, eventID string) {
	slog.Error("[API] Failed to "+op, "error", err, "event_id", eventID)
	writeError(c, &apiError{statusCode: http.StatusInternalServerError, errorType: httperr.HttpInternalError, message: msgInternal})
}

// readJSON reads at most maxBodySizeBytes and decodes them into dst.
func (s *Service) readJSON(c *gin.Context, dst interface{}) *apiError {
	maxBytes := int64(s.maxBodySizeBytes)
	bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBytes+1))
	if err != nil {
		slog.Error("[API] Failed to read request body", "error", err)
		return &apiError{statusCode: http.StatusInternalServerError, errorType: httperr.HttpInternalError, message: msgReadBodyFailed}
	}
	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("[API] Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return &apiError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details:    map[string]interface{}{"max_size_mb": maxBytes / (1024 * 1024)},
		}
	}

	dec := json.NewDecoder(bytes.NewReader(bodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		slog.Warn("[API] Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return &apiError{statusCode: http.StatusBadRequest, errorType: httperr.HttpInvalidJsonError, message: msgInvalidJSON}
	}
	return nil
}

func parseGroupPath(c *gin.Context) (int64, int64, *apiError) {
	projectID, err := strconv.ParseInt(c.Param("project_id"), 10, 64)
	if err != nil || projectID <= 0 {
		return 0, 0, &apiError{statusCode: http.StatusBadRequest, errorType: httperr.HttpInvalidRequestError, message: "project_id must be a positive integer"}
	}
	groupID, err := strconv.ParseInt(c.Param("group_id"), 10, 64)
	if err != nil || groupID <= 0 {
		return 0, 0, &apiError{statusCode: http.StatusBadRequest, errorType: httperr.HttpInvalidRequestError, message: "group_id must be a positive integer"}
	}
	return projectID, groupID, nil
}

// writeError serializes an apiError as the JSON HTTP response.
func writeError(c *gin.Context, err *apiError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
