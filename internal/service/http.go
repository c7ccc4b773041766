package service

import (
	"encoding/json"
	"net/http"

	"bizplan-workers/internal/common/errors"
	"bizplan-workers/internal/common/logger"
	"bizplan-workers/internal/models"
	"bizplan-workers/internal/session"
)

type startSessionResponse struct {
	Token    string           `json:"token"`
	Question *models.Question `json:"question"`
}

type submitAnswerRequest struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

type generateResponse struct {
	PlanID string `json:"planId"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Routes registers the plan workflow endpoints on mux.
func (s *PlanService) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/plans/sessions", s.handleStart)
	mux.HandleFunc("POST /api/plans/sessions/{token}/answers", s.handleAnswer)
	mux.HandleFunc("GET /api/plans/sessions/{token}/insights", s.handleInsights)
	mux.HandleFunc("DELETE /api/plans/sessions/{token}", s.handleReset)
	mux.HandleFunc("POST /api/plans/sessions/{token}/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/plans/{planId}/status", s.handleStatus)
}

func (s *PlanService) handleStart(w http.ResponseWriter, r *http.Request) {
	var in session.StartInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, s.logger, errors.NewInvalidAnswerError("malformed request body"))
		return
	}
	token, q, err := s.StartSession(r.Context(), in)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, startSessionResponse{Token: token, Question: q})
}

func (s *PlanService) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.logger, errors.NewInvalidAnswerError("malformed request body"))
		return
	}
	step, err := s.SubmitAnswer(r.Context(), r.PathValue("token"), req.Answer, req.Confidence)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *PlanService) handleInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := s.Insights(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

func (s *PlanService) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.ResetSession(r.Context(), r.PathValue("token")); err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *PlanService) handleGenerate(w http.ResponseWriter, r *http.Request) {
	planID, err := s.RequestGeneration(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, generateResponse{PlanID: planID})
}

func (s *PlanService) handleStatus(w http.ResponseWriter, r *http.Request) {
	progress, err := s.PollStatus(r.Context(), r.PathValue("planId"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidAnswer:
		return http.StatusBadRequest
	case errors.ErrCodeSessionNotFound, errors.ErrCodePlanNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidSessionState:
		return http.StatusConflict
	case errors.ErrCodeUpstreamGenerationFailed:
		return http.StatusBadGateway
	case errors.ErrCodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError never exposes the cause of internal errors to the caller.
func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	code := errors.CodeOf(err)
	status := statusFor(code)

	message := "Internal error"
	var stdErr *errors.StandardError
	if errors.As(err, &stdErr) && status != http.StatusInternalServerError {
		message = stdErr.Message
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", map[string]interface{}{"code": code, "error": err})
	}
	writeJSON(w, status, errorResponse{Code: string(code), Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
