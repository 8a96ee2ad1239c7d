package api

import (
	"errors"
	"net/http"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrMissingWallet = errors.New("missing wallet address in query (?wallet=...)")
	ErrMissingFields = errors.New("missing player or score")
)

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrEncoding):
		return http.StatusBadRequest, "encoding_error"
	case errors.Is(err, model.ErrSchemaNotReady):
		return http.StatusServiceUnavailable, "schema_not_ready"
	case errors.Is(err, model.ErrRegistryUnavailable):
		return http.StatusServiceUnavailable, "registry_unavailable"
	case errors.Is(err, model.ErrPublishFailed):
		return http.StatusInternalServerError, "publish_failed"
	case errors.Is(err, model.ErrFetchFailed):
		return http.StatusInternalServerError, "fetch_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func publicMessage(err error, status int) string {
	e, ok := model.AsError(err)
	switch {
	case !ok:
		return http.StatusText(status)
	case status == http.StatusBadRequest && e.Field != "":
		return e.Field + ": " + e.Msg
	case status == http.StatusBadRequest && e.Msg != "":
		return e.Msg
	case status == http.StatusBadRequest && e.Err != nil:
		return e.Err.Error()
	case e.Undetermined:
		return "publish outcome undetermined; retry with the same recordId"
	case e.Kind != nil:
		return e.Kind.Error()
	default:
		return http.StatusText(status)
	}
}
