// Package server exposes the version lifecycle, pricing and installment
// calculators over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/internal/importer"
	"github.com/ghsales/discount-engine/internal/installment"
	"github.com/ghsales/discount-engine/internal/notify"
	"github.com/ghsales/discount-engine/internal/pricing"
	"github.com/ghsales/discount-engine/internal/telemetry"
	"github.com/ghsales/discount-engine/internal/versioning"
	"github.com/ghsales/discount-engine/pkg/constants"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Services are the components the handler serves.
type Services struct {
	Versions    *versioning.Manager
	Pricing     *pricing.Service
	Installment *installment.Service
	// Notifier receives activation notifications; nil only logs them.
	Notifier notify.Sender
	// Metrics is optional.
	Metrics *telemetry.Metrics
}

type handler struct {
	logger        *zap.Logger
	services      Services
	validate      *validator.Validate
	maxUploadSize int64
	version       string
}

// NewHandler constructs the HTTP handler that serves the JSON API.
func NewHandler(logger *zap.Logger, services Services, maxUploadSize int64, version string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}
	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}
	if services.Notifier == nil {
		services.Notifier = notify.NewLogSender(logger)
	}

	h := &handler{
		logger:        logger,
		services:      services,
		validate:      newValidator(),
		maxUploadSize: maxUploadSize,
		version:       trimmedVersion,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/version", h.handleVersion)

	// Version lifecycle
	mux.HandleFunc("GET /api/versions", h.handleListVersions)
	mux.HandleFunc("POST /api/versions", h.handleCreateDraft)
	mux.HandleFunc("POST /api/versions/clone", h.handleClone)
	mux.HandleFunc("POST /api/versions/import", h.handleUploadAndActivate)
	mux.HandleFunc("GET /api/versions/{id}", h.handleGetVersion)
	mux.HandleFunc("DELETE /api/versions/{id}", h.handleDeleteDraft)
	mux.HandleFunc("PATCH /api/versions/{id}/rates", h.handleUpdateRates)
	mux.HandleFunc("POST /api/versions/{id}/rows", h.handleImportRows)
	mux.HandleFunc("PUT /api/versions/{id}/annotations/{project}", h.handleSetAnnotation)
	mux.HandleFunc("POST /api/versions/{id}/activate", h.handleActivate)
	mux.HandleFunc("GET /api/versions/{id}/export", h.handleExport)
	mux.HandleFunc("GET /api/template", h.handleTemplate)

	// Pricing
	mux.HandleFunc("GET /api/units/{id}/pricing", h.handleUnitPricing)
	mux.HandleFunc("POST /api/search/budget", h.handleBudgetSearch)
	mux.HandleFunc("GET /api/summary", h.handleSummary)

	// Installment calculators
	mux.HandleFunc("GET /api/settings", h.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", h.handleUpdateSettings)
	mux.HandleFunc("POST /api/installments/standard", h.handleStandard)
	mux.HandleFunc("POST /api/installments/down-payment", h.handleDownPayment)

	if services.Metrics != nil {
		mux.Handle("GET /metrics", services.Metrics.Handler())
		return services.Metrics.Middleware(mux)
	}
	return mux
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

// decode reads a JSON body into dst and validates it.
func (h *handler) decode(r *http.Request, dst interface{}, op string) error {
	return h.decodeBody(r, dst, op, false)
}

// decodeOptional is decode for endpoints whose body may be empty.
func (h *handler) decodeOptional(r *http.Request, dst interface{}, op string) error {
	return h.decodeBody(r, dst, op, true)
}

func (h *handler) decodeBody(r *http.Request, dst interface{}, op string, optional bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if !optional || !errors.Is(err, io.EOF) {
			return domain.Errorf(domain.EINVALID, op, "failed to decode request: %v", err)
		}
	}
	return h.check(dst, op)
}

// check runs the struct's validate tags.
func (h *handler) check(dst interface{}, op string) error {
	err := h.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.Internal(err, op, "failed to validate request")
	}
	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs[i] = fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		} else {
			msgs[i] = fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag())
		}
	}
	return domain.Invalid(op, strings.Join(msgs, "; "))
}

func pathID(r *http.Request, op string) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Errorf(domain.EINVALID, op, "invalid id %q", raw)
	}
	return id, nil
}

// statusFor maps domain error codes to HTTP status codes.
func statusFor(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ESTATE:
		return http.StatusConflict
	case domain.ECAPACITY:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status of its code. Internal errors are logged
// with their cause and answered with a generic message.
func (h *handler) fail(w http.ResponseWriter, err error, op string) {
	code := domain.ErrorCode(err)
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("op", op),
			zap.Int("status", status),
			zap.Error(err),
		)
		h.writeJSON(w, status, errorBody{Error: domain.ErrorMessage(err), Code: domain.EINTERNAL})
		return
	}

	body := errorBody{Error: domain.ErrorMessage(err), Code: code}
	var rejected importer.RowErrors
	if errors.As(err, &rejected) {
		body.Rows = rejected
	}
	h.respondErrorWithOp(w, status, body, op)
}

type errorBody struct {
	Error string              `json:"error"`
	Code  string              `json:"code,omitempty"`
	Rows  []importer.RowError `json:"rows,omitempty"`
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, body errorBody, op string) {
	h.logger.Debug("request rejected",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", body.Error),
	)
	h.writeJSON(w, status, body)
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
