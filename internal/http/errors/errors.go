// Package errors traduce errores de dominio a respuestas JSON {code, message, detail}.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/posguard/internal/observability/logger"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError escribe la respuesta para err.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	})
}

// Respond es WriteError más log con el logger del request: 5xx como error,
// el resto en debug.
func Respond(w http.ResponseWriter, r *http.Request, err error) {
	appErr := FromError(err)
	log := logger.From(r.Context())
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		log.Error("request failed", logger.String("code", appErr.Code), logger.Err(appErr.Err))
	} else {
		log.Debug("request rejected", logger.String("code", appErr.Code), logger.Err(err))
	}
	WriteError(w, appErr)
}
