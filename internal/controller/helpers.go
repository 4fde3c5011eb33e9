package controller

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/rentago/payments/internal/domain/errs"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	resp := ErrorResponse{Error: err.Error(), Code: kind.String()}

	switch kind {
	case errs.KindValidation:
		writeJSON(w, http.StatusBadRequest, resp)
	case errs.KindNotFound:
		writeJSON(w, http.StatusNotFound, resp)
	case errs.KindConflict:
		writeJSON(w, http.StatusConflict, resp)
	case errs.KindGatewayAmbiguous:
		resp.Error = "payment provider unavailable, please retry"
		writeJSON(w, http.StatusServiceUnavailable, resp)
	default:
		log.Error().Err(err).Msg("unhandled error in handler")
		resp.Error = "internal server error"
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errs.Wrap(errs.KindValidation, "invalid JSON body", err)
	}
	if err := validate.Struct(dst); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return errs.Newf(errs.KindValidation, "%s: %s validation failed", ve[0].Field(), ve[0].Tag())
		}
		return errs.Wrap(errs.KindValidation, "invalid request body", err)
	}
	return nil
}
