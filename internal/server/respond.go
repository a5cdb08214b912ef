package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Tomlord1122/todo-pics/internal/apperror"
)

// decodeJSON reads a single JSON object into dst and turns decoder failures
// into caller-facing messages.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(dst)
	if err == nil {
		return nil
	}

	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError):
		return apperror.InvalidArgument(fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset))
	case errors.Is(err, io.ErrUnexpectedEOF):
		return apperror.InvalidArgument("Request body contains badly-formed JSON")
	case errors.As(err, &unmarshalTypeError):
		return apperror.InvalidArgument(fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset))
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
		return apperror.InvalidArgument(fmt.Sprintf("Request body contains unknown field %s", fieldName))
	case errors.Is(err, io.EOF):
		return apperror.InvalidArgument("Request body must not be empty")
	case errors.As(err, &maxBytesError):
		return apperror.InvalidArgument(fmt.Sprintf("Request body must not be larger than %d bytes", maxBytesError.Limit))
	default:
		return fmt.Errorf("decode request body: %w", err)
	}
}

// respondWithAppError maps err to its status code and public message.
func (s *Server) respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperror.StatusCode(err)
	if code >= http.StatusInternalServerError && !isClassified(err) {
		s.logger.Error("unhandled error", zap.String("path", r.URL.Path), zap.Error(err))
	}
	respondWithError(w, code, apperror.PublicMessage(err))
}

func isClassified(err error) bool {
	var e *apperror.Error
	return errors.As(err, &e)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("marshal JSON response", zap.Error(err))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error preparing response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
