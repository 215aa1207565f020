// internal/app/features/shared/respond.go
package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dalemusser/teamreg/internal/app/system/apperr"
	"github.com/dalemusser/teamreg/internal/app/system/authz"
	"github.com/dalemusser/teamreg/internal/app/system/inputval"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MaxBodyBytes bounds every JSON request body.
const MaxBodyBytes = 1 << 20

// ErrorBody is the error envelope every endpoint returns.
type ErrorBody struct {
	Error   string                `json:"error"`
	Message string                `json:"message"`
	Fields  []inputval.FieldError `json:"fields,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindLocked:
		return http.StatusLocked
	case apperr.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError maps err to a status and envelope. Internal and external
// failures are logged and their detail withheld from the client.
func WriteError(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)
	body := ErrorBody{Error: apperr.CodeOf(err)}

	var ae *apperr.Error
	switch {
	case kind == apperr.KindInternal || kind == apperr.KindExternal:
		if log != nil {
			log.Error("request failed", zap.Error(err), zap.Int("status", status))
		}
		body.Message = http.StatusText(status)
		if errors.As(err, &ae) && kind == apperr.KindExternal {
			body.Message = ae.Message
		}
	case errors.As(err, &ae):
		body.Message = ae.Message
	default:
		body.Message = err.Error()
	}
	WriteJSON(w, status, body)
}

// WriteValidation writes a 400 listing every failed field.
func WriteValidation(w http.ResponseWriter, result *inputval.Result) {
	WriteJSON(w, http.StatusBadRequest, ErrorBody{
		Error:   "validation_error",
		Message: result.First(),
		Fields:  result.Errors,
	})
}

// DecodeJSON reads a bounded JSON body into dst. It writes the 400 itself
// and returns false when the body is unusable.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		msg := "request body must be valid JSON"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			msg = "request body is too large"
		}
		WriteJSON(w, http.StatusBadRequest, ErrorBody{Error: "validation_error", Message: msg})
		return false
	}
	return true
}

// Normalizer is implemented by inputs that canonicalize themselves before
// validation.
type Normalizer interface {
	Normalize()
}

// Bind decodes the body into dst, normalizes it when it knows how, and
// validates it against its tags.
func Bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !DecodeJSON(w, r, dst) {
		return false
	}
	if n, ok := dst.(Normalizer); ok {
		n.Normalize()
	}
	if result := inputval.Validate(dst); result.HasErrors() {
		WriteValidation(w, result)
		return false
	}
	return true
}

// PathID parses an ObjectID path value, writing a 400 when malformed.
func PathID(w http.ResponseWriter, raw, what string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, ErrorBody{Error: "validation_error", Message: "invalid " + what + " id"})
		return primitive.NilObjectID, false
	}
	return oid, true
}

// Actor returns the signed-in user's id, writing a 401 when absent.
func Actor(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	_, _, id, ok := authz.UserCtx(r)
	if !ok {
		WriteError(w, nil, apperr.ErrUnauthenticated)
		return primitive.NilObjectID, false
	}
	return id, true
}
