package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayo6706/escrow-market/internal/api/middleware"
	"github.com/ayo6706/escrow-market/internal/api/problem"
	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// RespondServiceError maps a service error to a problem document. Internal
// errors are logged with the request context and hidden from the client.
func RespondServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	if status, problemType, message, ok := mapDBError(err); ok {
		RespondError(w, r, status, problemType, message)
		return
	}

	kind := domain.KindOf(err)
	status := statusForKind(kind)
	switch kind {
	case domain.KindInternal:
		zap.L().Error(op+" failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("user_id", middleware.UserIDFromContext(r.Context())),
			zap.String("trace_id", middleware.TraceIDFromContext(r.Context())),
		)
		RespondError(w, r, status, "internal-server-error", "something went wrong, try again later")
	case domain.KindUnavailable:
		zap.L().Warn(op+" unavailable", zap.Error(err), zap.String("trace_id", middleware.TraceIDFromContext(r.Context())))
		RespondError(w, r, status, domain.CodeOf(err), "service temporarily unavailable, try again later")
	default:
		RespondError(w, r, status, domain.CodeOf(err), err.Error())
	}
}

func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindBusiness:
		return http.StatusUnprocessableEntity
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into dst. An empty body is allowed
// when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return false
	}
	return true
}

// requestActor returns the authenticated account id and whether it carries the admin role.
func requestActor(r *http.Request) (int64, bool, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return 0, false, errors.New("missing user in auth context")
	}
	actorID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil || actorID <= 0 {
		return 0, false, errors.New("invalid user_id in auth context")
	}
	return actorID, middleware.UserRoleFromContext(r.Context()) == middleware.RoleAdmin, nil
}

// actorOrUnauthorized writes a 401 when the auth context is unusable.
func actorOrUnauthorized(w http.ResponseWriter, r *http.Request) (int64, bool, bool) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return 0, false, false
	}
	return actorID, isAdmin, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-"+name, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func pathAccountID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-"+name, "Invalid account id")
		return 0, false
	}
	return id, true
}

// pagination parses limit and offset query parameters. Services clamp the values.
func pagination(w http.ResponseWriter, r *http.Request) (int32, int32, bool) {
	var limit, offset int32
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-limit", "limit must be a positive integer")
			return 0, 0, false
		}
		limit = int32(min(parsed, 1000))
	}
	if v := strings.TrimSpace(r.URL.Query().Get("offset")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-offset", "offset must be a non-negative integer")
			return 0, 0, false
		}
		offset = int32(min(parsed, 1<<30))
	}
	return limit, offset, true
}

// amountParam accepts either a decimal string ("12.5") or integer micros.
type amountParam struct {
	Amount       string `json:"amount"`
	AmountMicros int64  `json:"amount_micros"`
}

func (a amountParam) micros() (int64, error) {
	if a.Amount != "" {
		return domain.ParseAmount(a.Amount)
	}
	return a.AmountMicros, nil
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}
