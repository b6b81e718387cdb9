package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/internal/importer"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type versionView struct {
	domain.Version
	Status domain.VersionStatus `json:"status"`
}

func viewOf(v domain.Version) versionView {
	return versionView{Version: v, Status: v.Status()}
}

type labelRequest struct {
	Label string `json:"label" validate:"max=200"`
}

type annotationRequest struct {
	Comment string `json:"comment" validate:"max=2000"`
}

type activationResponse struct {
	Version  versionView `json:"version"`
	Changed  bool        `json:"changed"`
	Notified bool        `json:"notified"`
}

func (h *handler) handleListVersions(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleListVersions"
	versions, err := h.services.Versions.ListVersions(r.Context())
	if err != nil {
		h.fail(w, err, op)
		return
	}
	views := make([]versionView, len(versions))
	for i, v := range versions {
		views[i] = viewOf(v)
	}
	h.writeJSON(w, http.StatusOK, views)
}

func (h *handler) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleGetVersion"
	id, err := pathID(r, op)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	snap, err := h.services.Versions.VersionSnapshot(r.Context(), id)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":     viewOf(snap.Version),
		"rows":        snap.Rows,
		"annotations": snap.Annotations,
	})
}

func (h *handler) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCreateDraft"
	var req labelRequest
	if err := h.decodeOptional(r, &req, op); err != nil {
		h.fail(w, err, op)
		return
	}
	v, err := h.services.Versions.CreateDraft(r.Context(), req.Label)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusCreated, viewOf(*v))
}

func (h *handler) handleClone(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleClone"
	var req labelRequest
	if err := h.decodeOptional(r, &req, op); err != nil {
		h.fail(w, err, op)
		return
	}
	v, err := h.services.Versions.CloneForEditing(r.Context(), req.Label)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusCreated, viewOf(*v))
}

func (h *handler) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleDeleteDraft"
	id, err := pathID(r, op)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	if err := h.services.Versions.DeleteDraft(r.Context(), id); err != nil {
		h.fail(w, err, op)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleUpdateRates(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleUpdateRates"
	id, err := pathID(r, op)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	var update domain.DraftUpdate
	if err := h.decode(r, &update, op); err != nil {
		h.fail(w, err, op)
		return
	}
	n, err := h.services.Versions.UpdateDraftRates(r.Context(), id, update)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	if h.services.Metrics != nil {
		h.services.Metrics.RatesModified(n)
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"modified": n})
}

func (h *handler) handleSetAnnotation(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSetAnnotation"
	id, err := pathID(r, op)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	var req annotationRequest
	if err := h.decode(r, &req, op); err != nil {
		h.fail(w, err, op)
		return
	}
	if err := h.services.Versions.SetAnnotation(r.Context(), id, r.PathValue("project"), req.Comment); err != nil {
		h.fail(w, err, op)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleActivate"
	id, err := pathID(r, op)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	var req labelRequest
	if err := h.decodeOptional(r, &req, op); err != nil {
		h.fail(w, err, op)
		return
	}
	resp, err := h.activate(r.Context(), id, req.Label, op)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// activate activates the version and hands the notification to the sender.
// A failed delivery never undoes the activation.
func (h *handler) activate(ctx context.Context, id int64, label, op string) (*activationResponse, error) {
	note, err := h.services.Versions.Activate(ctx, id, label)
	if err != nil {
		return nil, err
	}
	v, err := h.services.Versions.GetVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := &activationResponse{Version: viewOf(*v), Changed: note != nil}
	if note == nil {
		return resp, nil
	}
	if h.services.Metrics != nil {
		h.services.Metrics.VersionActivated(note.FirstActivation)
	}

	sendErr := h.services.Notifier.Send(ctx, *note)
	if h.services.Metrics != nil {
		h.services.Metrics.NotificationSent(sendErr)
	}
	if sendErr != nil {
		h.logger.Error("failed to deliver activation notification",
			zap.String("op", op),
			zap.Int64("version_id", id),
			zap.Error(sendErr),
		)
		return resp, nil
	}
	resp.Notified = true
	return resp, nil
}

func (h *handler) handleImportRows(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleImportRows"
	id, err := pathID(r, op)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	rows, ok := h.readWorkbook(w, r, op)
	if !ok {
		return
	}
	err = h.services.Versions.ImportRows(r.Context(), id, rows)
	h.countImport(len(rows), err)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"imported": len(rows)})
}

// handleUploadAndActivate imports a workbook into a fresh draft and activates
// it. Nothing is created when the workbook is rejected.
func (h *handler) handleUploadAndActivate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleUploadAndActivate"
	rows, ok := h.readWorkbook(w, r, op)
	if !ok {
		return
	}
	ctx := r.Context()
	label := r.FormValue("label")

	draft, err := h.services.Versions.CreateDraft(ctx, label)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	err = h.services.Versions.ImportRows(ctx, draft.ID, rows)
	h.countImport(len(rows), err)
	if err != nil {
		if delErr := h.services.Versions.DeleteDraft(ctx, draft.ID); delErr != nil {
			h.logger.Warn("failed to remove draft of a failed import",
				zap.String("op", op),
				zap.Int64("version_id", draft.ID),
				zap.Error(delErr),
			)
		}
		h.fail(w, err, op)
		return
	}

	resp, err := h.activate(ctx, draft.ID, label, op)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

func (h *handler) countImport(n int, err error) {
	if h.services.Metrics != nil {
		h.services.Metrics.RowsImported(n, err)
	}
}

// readWorkbook parses the uploaded "file" form field. It writes the error
// response itself and reports whether rows were read.
func (h *handler) readWorkbook(w http.ResponseWriter, r *http.Request, op string) ([]domain.RateRow, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge, errorBody{
				Error: fmt.Sprintf("upload exceeds limit of %d bytes", h.maxUploadSize),
			}, op)
			return nil, false
		}
		h.fail(w, domain.Errorf(domain.EINVALID, op, "failed to parse upload: %v", err), op)
		return nil, false
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		h.fail(w, domain.Invalid(op, "missing spreadsheet file"), op)
		return nil, false
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Warn("failed to close uploaded file",
				zap.String("op", op),
				zap.Error(closeErr),
			)
		}
	}()

	rows, err := importer.Import(file)
	if err != nil {
		h.countImport(0, err)
		h.fail(w, err, op)
		return nil, false
	}
	return rows, true
}

type exportDocument struct {
	Version     domain.Version             `yaml:"version"`
	Status      domain.VersionStatus       `yaml:"status"`
	Annotations []domain.ProjectAnnotation `yaml:"annotations,omitempty"`
	Rows        []domain.RateRow           `yaml:"rows"`
}

func (h *handler) handleExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleExport"
	id, err := pathID(r, op)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	snap, err := h.services.Versions.VersionSnapshot(r.Context(), id)
	if err != nil {
		h.fail(w, err, op)
		return
	}

	var (
		buf         bytes.Buffer
		contentType string
		ext         string
	)
	switch format := r.URL.Query().Get("format"); format {
	case "", "yaml":
		contentType, ext = "application/yaml", "yaml"
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		err = enc.Encode(exportDocument{
			Version:     snap.Version,
			Status:      snap.Version.Status(),
			Annotations: snap.Annotations,
			Rows:        snap.Rows,
		})
		if err == nil {
			err = enc.Close()
		}
	case "xlsx":
		contentType, ext = xlsxContentType, "xlsx"
		err = importer.Export(&buf, snap.Rows)
	default:
		h.fail(w, domain.Errorf(domain.EINVALID, op, "unsupported export format %q", format), op)
		return
	}
	if err != nil {
		h.fail(w, domain.Internal(err, op, "failed to export version"), op)
		return
	}

	h.writeFile(w, contentType, fmt.Sprintf("discounts-v%d.%s", snap.Version.Number, ext), &buf, op)
}

// handleTemplate serves an empty rate workbook for the requested projects,
// or for the projects of the active version when none are given.
func (h *handler) handleTemplate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleTemplate"

	projects := r.URL.Query()["project"]
	if len(projects) == 0 {
		_, table, err := h.services.Versions.ActiveTable(r.Context())
		if err != nil && !domain.IsCode(err, domain.ESTATE) {
			h.fail(w, err, op)
			return
		}
		for key := range table {
			if !slices.Contains(projects, key.Project) {
				projects = append(projects, key.Project)
			}
		}
		slices.Sort(projects)
	}
	if len(projects) == 0 {
		h.fail(w, domain.Invalid(op, "no projects given and no active version to take them from"), op)
		return
	}

	var buf bytes.Buffer
	if err := importer.Template(&buf, projects); err != nil {
		h.fail(w, domain.Internal(err, op, "failed to build template"), op)
		return
	}
	h.writeFile(w, xlsxContentType, "discount-template.xlsx", &buf, op)
}

func (h *handler) writeFile(w http.ResponseWriter, contentType, name string, body io.Reader, op string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Error("failed to write file response",
			zap.String("op", op),
			zap.Error(err),
		)
	}
}
