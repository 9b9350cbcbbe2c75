package api

import (
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/Aman-CERP/docarchive/internal/errors"
)

// kindStatus is the one place error kinds become HTTP statuses.
var kindStatus = map[errors.Kind]int{
	errors.KindInvalidIdentifier: http.StatusBadRequest,
	errors.KindUnsupportedFormat: http.StatusBadRequest,
	errors.KindNotFound:          http.StatusNotFound,
	errors.KindOutOfRange:        http.StatusRequestedRangeNotSatisfiable,
	errors.KindStorageFailure:    http.StatusInternalServerError,
	errors.KindIndexFailure:      http.StatusInternalServerError,
	errors.KindInternal:          http.StatusInternalServerError,
}

// StatusFor returns the HTTP status of an error kind.
func StatusFor(kind errors.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// writeError renders err. Client-caused kinds carry their message;
// everything else is logged and answered with a generic body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errors.KindOf(err)
	resp := ErrorResponse{Code: kind.Code(), Kind: kind.String(), Message: "internal error"}

	if kind.ClientCaused() {
		var ae *errors.ArchiveError
		if stderrors.As(err, &ae) {
			resp.Message = ae.Message
		}
	} else {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("request_id", RequestID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()))
	}

	writeJSON(w, StatusFor(kind), resp)
}
