package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"wisefido-vitalsync/internal/telemetry"
	"wisefido-vitalsync/internal/view"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// SyncController 视图服务对外暴露的同步操作，由 *telemetry.SyncClient 实现
type SyncController interface {
	Frame() view.Frame
	Select(ctx context.Context, patientID string) error
	RefreshManual(ctx context.Context) error
	RefreshPatients(ctx context.Context) error
}

// MirrorReader 读取任意终端镜像的视图，由 *mirror.ViewMirror 实现
type MirrorReader interface {
	Load(ctx context.Context, patientID string) (view.Frame, bool, error)
}

// ViewHandler 仪表盘状态与用户操作接口
type ViewHandler struct {
	sync   SyncController
	hub    *ViewHub
	mirror MirrorReader
	logger *zap.Logger
}

func NewViewHandler(sync SyncController, hub *ViewHub, logger *zap.Logger) *ViewHandler {
	return &ViewHandler{sync: sync, hub: hub, logger: logger}
}

// WithMirror 启用 GET /api/mirror/{patientId}
func (h *ViewHandler) WithMirror(m MirrorReader) *ViewHandler {
	h.mirror = m
	return h
}

// ViewResponse GET /api/view
type ViewResponse struct {
	Frame  view.Frame   `json:"frame"`
	Notice *view.Notice `json:"notice,omitempty"`
}

// GET /api/view
func (h *ViewHandler) GetView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(ViewResponse{Frame: h.sync.Frame(), Notice: h.hub.LastNotice()}))
}

// GET /api/patients
func (h *ViewHandler) GetPatients(w http.ResponseWriter, r *http.Request) {
	f := h.sync.Frame()
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"options":  f.Options,
		"selected": f.Selected,
	}))
}

// GET /api/mirror/{patientId}
func (h *ViewHandler) GetMirroredView(w http.ResponseWriter, r *http.Request) {
	if h.mirror == nil {
		writeJSON(w, http.StatusNotFound, Fail("view mirror disabled"))
		return
	}
	patientID := mux.Vars(r)["patientId"]
	frame, ok, err := h.mirror.Load(r.Context(), patientID)
	if err != nil {
		h.logger.Warn("Failed to read mirrored view",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusBadGateway, Fail(err.Error()))
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, Fail("no mirrored view for "+patientID))
		return
	}
	writeJSON(w, http.StatusOK, Ok(frame))
}

// POST /api/selection
// body: {"patient_id": "..."}
func (h *ViewHandler) SaveSelection(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PatientID string `json:"patient_id"`
	}
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	payload.PatientID = strings.TrimSpace(payload.PatientID)
	if payload.PatientID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("patient_id is required"))
		return
	}

	if err := h.sync.Select(r.Context(), payload.PatientID); err != nil {
		switch {
		case errors.Is(err, telemetry.ErrUnknownPatient):
			writeJSON(w, http.StatusNotFound, Fail(err.Error()))
			return
		case errors.Is(err, telemetry.ErrStartupFailed):
			writeJSON(w, http.StatusServiceUnavailable, Fail(err.Error()))
			return
		}
		h.logger.Warn("Refresh after selection failed",
			zap.String("patient_id", payload.PatientID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusBadGateway, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(h.sync.Frame()))
}

// POST /api/refresh
func (h *ViewHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	err := h.sync.RefreshManual(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, Ok(h.sync.Frame()))
	case errors.Is(err, telemetry.ErrRefreshThrottled):
		writeJSON(w, http.StatusTooManyRequests, Fail(err.Error()))
	case errors.Is(err, telemetry.ErrNoPatientSelected):
		writeJSON(w, http.StatusConflict, Fail(err.Error()))
	case errors.Is(err, telemetry.ErrStartupFailed):
		writeJSON(w, http.StatusServiceUnavailable, Fail(err.Error()))
	default:
		h.logger.Warn("Manual refresh failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, Fail(err.Error()))
	}
}

// POST /api/patients/refresh
func (h *ViewHandler) RefreshPatients(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.RefreshPatients(r.Context()); err != nil {
		if errors.Is(err, telemetry.ErrStartupFailed) {
			writeJSON(w, http.StatusServiceUnavailable, Fail(err.Error()))
			return
		}
		h.logger.Warn("Patient reload failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(h.sync.Frame().Options))
}

// GET /api/export.xlsx
func (h *ViewHandler) ExportExcel(w http.ResponseWriter, r *http.Request) {
	f := h.sync.Frame()
	data, err := GenerateViewExport(f)
	if err != nil {
		h.logger.Error("Failed to generate export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export"))
		return
	}

	name := "vitals.xlsx"
	if f.Selected != "" {
		name = fmt.Sprintf("vitals-%s.xlsx", sanitizeFilename(f.Selected))
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
