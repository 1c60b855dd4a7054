package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/asksql/asksql/internal/agent"
	"github.com/asksql/asksql/internal/llm"
	"github.com/asksql/asksql/internal/schema"
	"github.com/asksql/asksql/internal/workflow"
)

const maxAskBodyBytes = 1 << 16

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

func requestValidator() *validator.Validate {
	validatorOnce.Do(func() {
		validateInst = validator.New(validator.WithRequiredStructEnabled())
	})
	return validateInst
}

type askRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

type streamLine struct {
	Event string `json:"event"`
	*agent.Answer
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Asker == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "question answering is not configured", false, nil)
		return
	}

	request, ok := decodeAskRequest(w, r)
	if !ok {
		return
	}

	stream, err := parseStreamFlag(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_STREAM_FLAG", err.Error(), false, nil)
		return
	}
	if stream {
		streamAsk(deps, w, r, request.Question)
		return
	}

	answer, err := deps.Asker.Ask(r.Context(), request.Question, nil)
	if err != nil {
		status, code, retryable := classifyAskError(err)
		writeError(r.Context(), w, status, code, err.Error(), retryable, map[string]any{"run_id": answer.RunID})
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func streamAsk(deps Dependencies, w http.ResponseWriter, r *http.Request, question string) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	encoder := json.NewEncoder(w)
	writeLine := func(payload any) {
		_ = encoder.Encode(payload)
		if flusher != nil {
			flusher.Flush()
		}
	}

	observer := workflow.ObserverFunc(func(_ context.Context, event workflow.Event) {
		writeLine(event)
	})
	answer, err := deps.Asker.Ask(r.Context(), question, observer)
	if err != nil {
		_, code, retryable := classifyAskError(err)
		payload := errorPayload(r.Context(), code, err.Error(), retryable, map[string]any{"run_id": answer.RunID})
		payload["event"] = "error"
		writeLine(payload)
		return
	}
	writeLine(streamLine{Event: "answer", Answer: &answer})
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema introspection is not configured", false, nil)
		return
	}
	text, err := deps.Schema.Introspect(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "SCHEMA_UNAVAILABLE", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schema": text})
}

func decodeAskRequest(w http.ResponseWriter, r *http.Request) (askRequest, bool) {
	var request askRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return askRequest{}, false
	}
	request.Question = strings.TrimSpace(request.Question)
	if err := requestValidator().Struct(request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", validationMessage(err), false, nil)
		return askRequest{}, false
	}
	return request, true
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Sprintf("%s failed validation for tag '%s'", strings.ToLower(fe.Field()), fe.Tag())
	}
	return err.Error()
}

func parseStreamFlag(r *http.Request) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("stream"))
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid stream flag %q", raw)
	}
	return value, nil
}

func classifyAskError(err error) (int, string, bool) {
	var introspectionErr *schema.IntrospectionError
	var generationErr *llm.GenerationError
	switch {
	case errors.Is(err, agent.ErrEmptyQuestion):
		return http.StatusBadRequest, "QUESTION_REQUIRED", false
	case errors.As(err, &introspectionErr):
		return http.StatusServiceUnavailable, "SCHEMA_UNAVAILABLE", true
	case errors.As(err, &generationErr):
		return http.StatusBadGateway, "GENERATION_FAILED", true
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "REQUEST_TIMEOUT", true
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "REQUEST_CANCELED", true
	default:
		return http.StatusInternalServerError, "ASK_FAILED", true
	}
}
