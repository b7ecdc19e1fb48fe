package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/yvy-orbital/yvy-field-service/internal/delivery"
	"github.com/yvy-orbital/yvy-field-service/internal/logger"
	"github.com/yvy-orbital/yvy-field-service/internal/properties"
	"github.com/yvy-orbital/yvy-field-service/internal/zoning"
)

const defaultHistoryLimit = 100

type FarmAnalyzer interface {
	AnalyzeFarm(ctx context.Context, req delivery.FarmRequest) (*delivery.AnalysisResult, error)
}

type FarmZoner interface {
	ZoneFarm(ctx context.Context, req delivery.ZoneRequest) (*delivery.ZoneResult, error)
}

// Server exposes the analysis pipeline over HTTP. Readings and ImagesDir are
// optional.
type Server struct {
	Analyzer  FarmAnalyzer
	Zoner     FarmZoner
	Readings  delivery.ReadingLister
	ImagesDir string
	Timeout   time.Duration
	Origins   []string
}

type satelliteRequest struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Size   float64 `json:"size"`
	Start  string  `json:"start,omitempty"`
	End    string  `json:"end,omitempty"`
	FarmID string  `json:"farm_id,omitempty"`
}

type clusterRequest struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Size  float64 `json:"size"`
	K     int     `json:"k,omitempty"`
	Start string  `json:"start,omitempty"`
	End   string  `json:"end,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) Routes() http.Handler {
	origins := s.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleHealth)
	r.Group(func(pr chi.Router) {
		if s.Timeout > 0 {
			pr.Use(middleware.Timeout(s.Timeout))
		}
		pr.Post("/satellite", s.handleSatellite)
		pr.Post("/cluster", s.handleCluster)
		pr.Get("/farms/{farmID}/readings", s.handleReadings)
	})
	if s.ImagesDir != "" {
		r.Handle("/images/*", http.StripPrefix("/images/", http.FileServer(http.Dir(s.ImagesDir))))
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok", "service": properties.ServiceName})
}

func (s *Server) handleSatellite(w http.ResponseWriter, r *http.Request) {
	var req satelliteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid request body: "+err.Error())
		return
	}
	result, err := s.Analyzer.AnalyzeFarm(r.Context(), delivery.FarmRequest{
		FarmID:    strings.TrimSpace(req.FarmID),
		Latitude:  req.Lat,
		Longitude: req.Lon,
		Hectares:  req.Size,
		Start:     req.Start,
		End:       req.End,
	})
	if err != nil {
		writeError(w, r, err.Error())
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	var req clusterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid request body: "+err.Error())
		return
	}
	result, err := s.Zoner.ZoneFarm(r.Context(), delivery.ZoneRequest{
		Latitude:  req.Lat,
		Longitude: req.Lon,
		Hectares:  req.Size,
		K:         req.K,
		Start:     req.Start,
		End:       req.End,
	})
	if err != nil {
		writeError(w, r, err.Error())
		return
	}
	zones := result.Zones
	if zones == nil {
		zones = []zoning.Zone{}
	}
	writeJSON(w, zones)
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	if s.Readings == nil {
		writeError(w, r, "readings storage not configured")
		return
	}
	readings, err := s.Readings.ListReadings(r.Context(), chi.URLParam(r, "farmID"), defaultHistoryLimit)
	if err != nil {
		writeError(w, r, err.Error())
		return
	}
	writeJSON(w, readings)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}

// writeError reports failures in the body with status 200; clients read the
// error field.
func writeError(w http.ResponseWriter, r *http.Request, msg string) {
	logger.Log.WithFields(logrus.Fields{
		"path":       r.URL.Path,
		"request_id": middleware.GetReqID(r.Context()),
	}).Warn(msg)
	writeJSON(w, errorResponse{Error: msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}
