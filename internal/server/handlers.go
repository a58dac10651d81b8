package server

import (
	"errors"
	"net/http"
	"time"

	"linkqual/internal/common"
	"linkqual/internal/pipeline"

	"github.com/rs/zerolog/log"
)

type ObserveRequest struct {
	ID     string   `json:"id,omitempty" validate:"omitempty,max=64"`
	Source string   `json:"source" validate:"required,max=256"`
	Value  *float64 `json:"value" validate:"required"`
	Label  string   `json:"label,omitempty" validate:"omitempty,max=64"`
}

func (r ObserveRequest) observation() pipeline.Observation {
	return pipeline.Observation{ID: r.ID, Source: r.Source, Value: *r.Value, Label: r.Label}
}

type ObserveResponse struct {
	pipeline.Result
	RequestID string `json:"request_id"`
}

type ThresholdRequest struct {
	Source string   `json:"source" validate:"required,max=256"`
	Metric string   `json:"metric,omitempty" validate:"omitempty,max=64"`
	Value  *float64 `json:"value" validate:"required"`
}

type ThresholdResponse struct {
	Source string  `json:"source"`
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
}

type HistoryResponse struct {
	Source string    `json:"source"`
	Count  int       `json:"count"`
	Values []float64 `json:"values"`
}

type ModelInfoResponse struct {
	pipeline.ModelInfo
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Examples int64  `json:"examples"`
	Leaves   int    `json:"leaves"`
}

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	var req ObserveRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.pipeline.Process(r.Context(), req.observation())
	if err != nil {
		log.Debug().Err(err).Str("source", req.Source).Msg("Observation rejected")
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, ObserveResponse{Result: res, RequestID: w.Header().Get(requestIDHeader)})
}

func (s *Server) handleSetThreshold(w http.ResponseWriter, r *http.Request) {
	if s.verifier != nil {
		if err := s.verifier.Verify(r.Header.Get); err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
	}

	var req ThresholdRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	metric := req.Metric
	if metric == "" {
		metric = common.MetricBitsPerSec
	}

	if err := s.pipeline.SetThreshold(req.Source, metric, *req.Value); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, ThresholdResponse{Source: req.Source, Metric: metric, Value: *req.Value})
}

func (s *Server) handleGetThreshold(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		writeJSON(w, http.StatusOK, map[string]any{"thresholds": s.pipeline.Thresholds()})
		return
	}

	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = common.MetricBitsPerSec
	}
	v, ok := s.pipeline.Threshold(source, metric)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no threshold for "+source+"/"+metric))
		return
	}
	writeJSON(w, http.StatusOK, ThresholdResponse{Source: source, Metric: metric, Value: v})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		writeError(w, http.StatusBadRequest, errors.New("source is required"))
		return
	}
	values := s.pipeline.History(source)
	if values == nil {
		values = []float64{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Source: source, Count: len(values), Values: values})
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModelInfoResponse{
		ModelInfo:     s.pipeline.ModelInfo(),
		UptimeSeconds: time.Since(s.started).Seconds(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := s.pipeline.ModelInfo()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Examples: info.Stats.Examples,
		Leaves:   info.Stats.Leaves,
	})
}
