package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/acs-cli/internal/census"
	"github.com/sells-group/acs-cli/internal/geometry"
	"github.com/sells-group/acs-cli/internal/query"
)

type queryRequest struct {
	Estimate   int      `json:"estimate"`
	Years      []int    `json:"years"`
	Variables  []string `json:"variables"`
	ForGeo     []string `json:"for_geo"`
	InGeo      []string `json:"in_geo"`
	Geometry   string   `json:"geometry"`
	Resolution string   `json:"resolution"`
}

type rowPayload struct {
	Name            string          `json:"name"`
	GeoID           string          `json:"geo_id"`
	GeoType         string          `json:"geo_type"`
	Year            int             `json:"year"`
	Date            string          `json:"date"`
	VariableCode    string          `json:"variable_code"`
	VariableLabel   string          `json:"variable_label"`
	VariableConcept string          `json:"variable_concept"`
	Annotation      string          `json:"annotation"`
	Value           *float64        `json:"value"`
	PercentChange   *float64        `json:"percent_change"`
	Difference      *float64        `json:"difference"`
	Geometry        json.RawMessage `json:"geometry,omitempty"`
}

type warningPayload struct {
	Stage string `json:"stage"`
	Key   string `json:"key"`
	Error string `json:"error"`
}

type queryResponse struct {
	RunID    string           `json:"run_id"`
	State    string           `json:"state"`
	RowCount int              `json:"row_count"`
	Rows     []rowPayload     `json:"rows"`
	Warnings []warningPayload `json:"warnings"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	runID := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", runID))

	q, err := query.New(query.Spec{
		Estimate:   req.Estimate,
		Years:      req.Years,
		Variables:  req.Variables,
		ForGeo:     req.ForGeo,
		InGeo:      req.InGeo,
		Geometry:   req.Geometry,
		Resolution: req.Resolution,
	},
		query.WithClient(s.client),
		query.WithGeometryEngine(s.engine),
		query.WithChunkSize(s.chunkSize),
	)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logger.Info("api: query accepted",
		zap.Ints("years", req.Years),
		zap.Int("variables", len(req.Variables)),
	)

	res, err := q.Run(r.Context())
	if err != nil {
		logger.Error("api: query failed", zap.Error(err))
		status := http.StatusInternalServerError
		if census.IsAuth(err) {
			status = http.StatusBadGateway
		}
		s.writeError(w, status, err.Error())
		return
	}

	resp := queryResponse{
		RunID:    runID,
		State:    string(q.State()),
		RowCount: len(res.Rows),
		Rows:     make([]rowPayload, 0, len(res.Rows)),
		Warnings: make([]warningPayload, 0, len(res.Warnings)),
	}
	for _, warning := range res.Warnings {
		resp.Warnings = append(resp.Warnings, warningPayload{
			Stage: string(warning.Stage),
			Key:   warning.Key,
			Error: warning.Err.Error(),
		})
	}
	for _, row := range res.Rows {
		payload := rowPayload{
			Name:            row.Name,
			GeoID:           row.GeoID,
			GeoType:         string(row.GeoType),
			Year:            row.Year,
			Date:            row.Date.Format("2006-01-02"),
			VariableCode:    row.VariableCode,
			VariableLabel:   row.VariableLabel,
			VariableConcept: row.VariableConcept,
			Annotation:      row.Annotation,
			Value:           row.Value,
			PercentChange:   row.PercentChange,
			Difference:      row.Difference,
		}
		if res.Mode != geometry.ModeNone {
			payload.Geometry = json.RawMessage("null")
			if row.Geometry != nil {
				encoded, err := geojson.Marshal(row.Geometry)
				if err != nil {
					logger.Error("api: encode geometry", zap.String("geo_id", row.GeoID), zap.Error(err))
					s.writeError(w, http.StatusInternalServerError, "encode geometry")
					return
				}
				payload.Geometry = encoded
			}
		}
		resp.Rows = append(resp.Rows, payload)
	}

	s.writeJSON(w, http.StatusOK, resp)
}

type cacheEntryPayload struct {
	Key       string    `json:"key,omitempty"`
	Filename  string    `json:"filename"`
	Bytes     int64     `json:"bytes"`
	SHA256    string    `json:"sha256,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

type cacheStatusResponse struct {
	Dir       string              `json:"dir"`
	Ephemeral bool                `json:"ephemeral"`
	Entries   []cacheEntryPayload `json:"entries"`
}

func (s *Server) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	entries, err := s.cache.Status(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := cacheStatusResponse{
		Dir:       s.cache.Dir(),
		Ephemeral: s.cache.Ephemeral(),
		Entries:   make([]cacheEntryPayload, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, cacheEntryPayload{
			Key:       e.Key,
			Filename:  e.Filename,
			Bytes:     e.Bytes,
			SHA256:    e.SHA256,
			FetchedAt: e.FetchedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.Clear(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("api: encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
