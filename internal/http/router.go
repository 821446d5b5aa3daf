package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter 注册本地视图服务路由
func NewRouter(h *ViewHandler, hub *ViewHub, logger *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger(logger))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/view", h.GetView).Methods(http.MethodGet)
	api.HandleFunc("/patients", h.GetPatients).Methods(http.MethodGet)
	api.HandleFunc("/patients/refresh", h.RefreshPatients).Methods(http.MethodPost)
	api.HandleFunc("/selection", h.SaveSelection).Methods(http.MethodPost)
	api.HandleFunc("/refresh", h.Refresh).Methods(http.MethodPost)
	api.HandleFunc("/export.xlsx", h.ExportExcel).Methods(http.MethodGet)
	api.HandleFunc("/mirror/{patientId}", h.GetMirroredView).Methods(http.MethodGet)
	api.HandleFunc("/ws", hub.ServeWS).Methods(http.MethodGet)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}).Methods(http.MethodGet)

	return r
}

func requestLogger(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}
}
