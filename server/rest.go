package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"

	"github.com/umputun/postkit/pkg/domain"
	"github.com/umputun/postkit/pkg/pipeline"
)

// runRequest is the body of POST /api/v1/run, every field is optional
type runRequest struct {
	FeedSource string `json:"feed_source"`
	Date       string `json:"date"` // YYYY-MM-DD, today in the configured timezone if empty
	Timezone   string `json:"timezone"`
	MaxItems   *int   `json:"max_items"`
	Overwrite  *bool  `json:"overwrite"`
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
		"archive": s.root,
		"feed":    s.defaults.FeedSource,
	}
	rest.RenderJSON(w, status)
}

// runHandler runs the pipeline synchronously and returns the run summary
func (s *Server) runHandler(w http.ResponseWriter, r *http.Request) {
	var body runRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			renderError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
			return
		}
	}

	req, err := s.makeRequest(body)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	if !s.runLock.TryLock() {
		renderError(w, r, errors.New("another run is in progress"), http.StatusConflict)
		return
	}
	defer s.runLock.Unlock()

	lgr.Printf("[INFO] run requested for %s on %s", req.FeedSource, req.TargetDate)
	summary, err := s.runner.Run(r.Context(), req)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, domain.ErrFeedUnavailable) || errors.Is(err, domain.ErrFeedFormat) {
			code = http.StatusBadGateway
		}
		if summary == nil {
			renderError(w, r, err, code)
			return
		}
		renderStatusJSON(w, code, summary)
		return
	}
	rest.RenderJSON(w, summary)
}

// makeRequest merges the body over the server defaults
func (s *Server) makeRequest(body runRequest) (pipeline.Request, error) {
	req := s.defaults
	if body.FeedSource != "" {
		// local files are readable only through the configured default
		u, err := url.Parse(body.FeedSource)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return req, fmt.Errorf("feed source must be an http(s) url, got %q", body.FeedSource)
		}
		req.FeedSource = body.FeedSource
	}
	if body.Timezone != "" {
		req.Timezone = body.Timezone
	}
	if body.MaxItems != nil {
		req.MaxItems = *body.MaxItems
	}
	if body.Overwrite != nil {
		req.Overwrite = *body.Overwrite
	}

	loc, err := pipeline.ParseTimezone(req.Timezone)
	if err != nil {
		return req, err
	}
	req.TargetDate = pipeline.Today(loc)
	if body.Date != "" {
		if req.TargetDate, err = domain.ParseDate(body.Date); err != nil {
			return req, err
		}
	}
	return req, nil
}
