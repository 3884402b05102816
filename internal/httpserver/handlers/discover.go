package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/vulnverified/orbit/internal/engine"
	"github.com/vulnverified/orbit/internal/httpserver/deps"
	"github.com/vulnverified/orbit/internal/logger"
	"github.com/vulnverified/orbit/internal/output"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

// Discover runs one discovery per request. Seeds come from repeated seed
// parameters; max_pages and concurrency override the base settings up to
// the configured limits.
func Discover(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var seeds []string
		for _, s := range q["seed"] {
			if s = strings.TrimSpace(s); s != "" {
				seeds = append(seeds, s)
			}
		}
		if len(seeds) == 0 {
			writeError(w, http.StatusBadRequest, "missing seed parameter")
			return
		}

		cfg := d.Engine
		cfg.Seeds = seeds

		var err error
		if cfg.MaxPages, err = intParam(q.Get("max_pages"), cfg.MaxPages, d.MaxPagesLimit); err != nil {
			writeError(w, http.StatusBadRequest, "max_pages: "+err.Error())
			return
		}
		if cfg.Concurrency, err = intParam(q.Get("concurrency"), cfg.Concurrency, d.ConcurrencyLimit); err != nil {
			writeError(w, http.StatusBadRequest, "concurrency: "+err.Error())
			return
		}

		log := d.Logger.With(logger.String("request_id", middleware.GetReqID(r.Context())))
		log.Info("discover request", logger.Strings("seeds", seeds), logger.Int("max_pages", cfg.MaxPages))

		ctx := r.Context()
		if d.RunTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.RunTimeout)
			defer cancel()
		}

		result, err := engine.Run(ctx, cfg, d.Adapters, logProgress{log: log})
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		log.Info("discover complete",
			logger.Int("accepted", result.Summary.HostsAccepted),
			logger.Int("candidates", result.Summary.CandidatesFound),
			logger.Int("pages", result.Summary.PagesVisited))

		w.Header().Set("Content-Type", "application/json")
		if err := output.WriteJSON(w, result); err != nil {
			log.Warn("encode result", logger.Error(err))
		}
	}
}

// intParam parses a positive integer, returning def for an empty value and
// clamping to limit when limit > 0.
func intParam(raw string, def, limit int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("must be a positive integer, got %q", raw)
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n, nil
}

// logProgress routes engine progress to the request logger.
type logProgress struct {
	log logger.Logger
}

func (p logProgress) Stage(num, total int, msg string) {
	p.log.Debugf("[%d/%d] %s", num, total, msg)
}

func (p logProgress) Detail(msg string) { p.log.Debug(msg) }

func (p logProgress) Warn(msg string) { p.log.Warn(msg) }
