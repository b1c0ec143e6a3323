package server

import (
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/rushteam/prodrec/config"
	"github.com/rushteam/prodrec/core"
	"github.com/rushteam/prodrec/engine"
	"github.com/rushteam/prodrec/pkg/log"
	"github.com/rushteam/prodrec/tracker"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Logger().Error("encode json response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"code":    code,
		"error":   message,
	})
}

func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok", "version": int64(0)}
	if m := s.engine.Current(); m != nil {
		resp["version"] = m.Version
		resp["trained_at"] = m.TrainedAt
	} else {
		resp["status"] = "not_ready"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) Users(w http.ResponseWriter, _ *http.Request) {
	m := s.engine.Current()
	if m == nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "users": []string{}})
		return
	}
	ids := lo.Map(m.Snapshot.Users(), func(u *core.User, _ int) string { return u.ID })
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "users": ids})
}

func (s *Server) Products(w http.ResponseWriter, _ *http.Request) {
	products := []*core.Product{}
	if m := s.engine.Current(); m != nil {
		products = m.Snapshot.Products()
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "products": products})
}

// Recommend 处理 GET /api/recommend/{userID}?n=&mode=&weight=&pool=
func (s *Server) Recommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	q := r.URL.Query()
	defaults := s.engine.Config()

	n, err := intParam(q.Get("n"), defaults.DefaultTopN())
	if err != nil {
		writeError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "invalid n")
		return
	}
	pool, err := intParam(q.Get("pool"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "invalid pool")
		return
	}
	weight := defaults.DefaultCollabWeight()
	if v := q.Get("weight"); v != "" {
		if weight, err = strconv.ParseFloat(v, 64); err != nil || math.IsNaN(weight) || math.IsInf(weight, 0) {
			writeError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "invalid weight")
			return
		}
	}

	// 同一次请求固定使用同一代模型打分并解析商品
	g := s.engine.Pin()
	mode := lo.CoalesceOrEmpty(q.Get("mode"), engine.ModeHybrid)
	var ids []string
	switch mode {
	case engine.ModeHybrid:
		ids = g.Hybrid(ctx, userID, n, weight, engine.WithPool(pool))
	case engine.ModeCollaborative:
		ids = g.Collaborative(ctx, userID, n)
	case engine.ModeContent:
		ids = g.ContentBased(ctx, userID, n)
	case "popular":
		ids = g.Popular(ctx, n)
	case engine.ModePipeline:
		if s.pipeline == nil {
			writeError(w, http.StatusBadRequest, core.ErrorCodeNotSupported, "no pipeline configured")
			return
		}
		if ids, err = g.RunPipeline(ctx, s.pipeline, userID, n); err != nil {
			writeError(w, http.StatusInternalServerError, core.ErrorCodeInternalError, err.Error())
			return
		}
	default:
		writeError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "unknown mode: "+mode)
		return
	}

	products := g.Products(ids)
	version := g.Version()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"user_id":     userID,
		"mode":        mode,
		"version":     version,
		"product_ids": ids,
		"products":    products,
	})
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// Rebuild 处理 POST /api/rebuild
func (s *Server) Rebuild(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Rebuild(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, core.ErrorReason(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "version": s.engine.Current().Version})
}

// TrackRequest 是 POST /api/interactions 的请求体
type TrackRequest struct {
	UserID    string   `json:"user_id" validate:"required"`
	ProductID string   `json:"product_id" validate:"required"`
	Type      string   `json:"type" validate:"required"`
	Value     *float64 `json:"value"`
}

// TrackInteraction 处理 POST /api/interactions
func (s *Server) TrackInteraction(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "invalid JSON body")
		return
	}
	if err := config.ValidateStruct(&req); err != nil {
		writeError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "missing required fields")
		return
	}
	in, err := s.tracker.Track(r.Context(), req.UserID, req.ProductID, req.Type, req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, core.ErrorReason(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "interaction": in})
}

type interactionView struct {
	core.Interaction
	ProductName string `json:"product_name,omitempty"`
}

// UserInteractions 处理 GET /api/users/{userID}/interactions?limit=10
func (s *Server) UserInteractions(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "invalid limit")
		return
	}
	m := s.engine.Current()
	events := s.tracker.UserInteractions(chi.URLParam(r, "userID"), limit)
	out := lo.Map(events, func(in core.Interaction, _ int) interactionView {
		v := interactionView{Interaction: in}
		if m != nil {
			if p, ok := m.Snapshot.Product(in.ProductID); ok {
				v.ProductName = p.Name
			}
		}
		return v
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "interactions": out})
}

// ProductInteractions 处理 GET /api/products/{productID}/interactions
func (s *Server) ProductInteractions(w http.ResponseWriter, r *http.Request) {
	events := s.tracker.ProductInteractions(chi.URLParam(r, "productID"))
	if events == nil {
		events = []tracker.ProductInteraction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "interactions": events})
}
