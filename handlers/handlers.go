package handlers

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nijaru/yt-summary/config"
	"github.com/nijaru/yt-summary/errors"
	"github.com/nijaru/yt-summary/middleware"
	"github.com/nijaru/yt-summary/transcription"
	"github.com/nijaru/yt-summary/utils"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

type Processor interface {
	Process(ctx context.Context, req transcription.Request) transcription.Result
}

type StatsSource interface {
	Stats(ctx context.Context) (map[string]int64, error)
}

// Envelope is the body of every /summarize response. Failures are reported
// in Error with status 200.
type Envelope struct {
	VideoID    string `json:"video_id"`
	Transcript string `json:"transcript"`
	Summary    string `json:"summary"`
	Error      string `json:"error"`
}

type Handler struct {
	service Processor
	stats   StatsSource
	cfg     *config.Config
}

// NewHandler wires the HTTP surface. stats may be nil when no ledger is
// configured.
func NewHandler(service Processor, cfg *config.Config, stats StatsSource) *Handler {
	return &Handler{service: service, stats: stats, cfg: cfg}
}

type summarizeBody struct {
	URL        string   `json:"url"`
	MaxRetries *int     `json:"max_retries"`
	RetryDelay *float64 `json:"retry_delay"`
	Summarize  *bool    `json:"summarize"`
}

// SummarizePost accepts a JSON body or form fields.
func (h *Handler) SummarizePost(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.SummarizePost"

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var (
		req transcription.Request
		err error
	)
	if mediaType := contentType(r); mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data" {
		if perr := parseForm(r, mediaType); perr != nil {
			err = errors.InvalidRequest(op, perr, "Invalid form body")
		} else {
			req, err = requestFromValues(op, r.PostForm.Get, r.PostForm.Has)
		}
	} else {
		req, err = decodeJSONRequest(op, r.Body)
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.summarize(w, r, req)
}

// SummarizeGet reads the same fields from the query string.
func (h *Handler) SummarizeGet(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.SummarizeGet"

	q := r.URL.Query()
	req, err := requestFromValues(op, q.Get, q.Has)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.summarize(w, r, req)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"message":         "YouTube Transcript API",
		"summary_enabled": h.cfg.EnableSummary,
		"version":         h.cfg.Version,
	})
}

// Stats reports how many runs ended in each outcome.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		utils.RespondWithJSON(w, http.StatusOK, map[string]int64{})
		return
	}
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		middleware.GetLogger(r.Context()).WithError(err).Error("Failed to read outcome stats")
		utils.HandleError(w, "Failed to read stats", http.StatusInternalServerError)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, stats)
}

func (h *Handler) summarize(w http.ResponseWriter, r *http.Request, req transcription.Request) {
	res := h.service.Process(r.Context(), req)
	if res.Err != nil {
		h.respondError(w, r, res.Err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, Envelope{
		VideoID:    res.VideoID,
		Transcript: res.Transcript,
		Summary:    res.Summary,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	middleware.GetLogger(r.Context()).WithFields(logrus.Fields{
		"kind":  string(errors.KindOf(err)),
		"error": err.Error(),
	}).Debug("Responding with in-band error")
	utils.RespondWithJSON(w, http.StatusOK, Envelope{Error: errors.PublicMessage(err)})
}

func contentType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return mediaType
}

func parseForm(r *http.Request, mediaType string) error {
	if mediaType == "multipart/form-data" {
		return r.ParseMultipartForm(maxBodyBytes)
	}
	return r.ParseForm()
}

func decodeJSONRequest(op string, body io.Reader) (transcription.Request, error) {
	var in summarizeBody
	if err := json.NewDecoder(body).Decode(&in); err != nil {
		return transcription.Request{}, errors.InvalidRequest(op, err, "Invalid request body")
	}

	req := transcription.NewRequest(in.URL)
	if in.MaxRetries != nil {
		req.MaxRetries = *in.MaxRetries
	}
	if in.RetryDelay != nil {
		req.RetryDelay = secondsToDuration(*in.RetryDelay)
	}
	if in.Summarize != nil {
		req.Summarize = *in.Summarize
	}
	return req, nil
}

// requestFromValues builds a request from form or query values. Absent
// fields keep their defaults.
func requestFromValues(op string, get func(string) string, has func(string) bool) (transcription.Request, error) {
	req := transcription.NewRequest(get("url"))

	if has("max_retries") {
		n, err := strconv.Atoi(strings.TrimSpace(get("max_retries")))
		if err != nil {
			return transcription.Request{}, errors.InvalidRequest(op, err, "max_retries must be an integer")
		}
		req.MaxRetries = n
	}
	if has("retry_delay") {
		f, err := strconv.ParseFloat(strings.TrimSpace(get("retry_delay")), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return transcription.Request{}, errors.InvalidRequest(op, err, "retry_delay must be a number of seconds")
		}
		req.RetryDelay = secondsToDuration(f)
	}
	if has("summarize") {
		b, err := strconv.ParseBool(strings.TrimSpace(get("summarize")))
		if err != nil {
			return transcription.Request{}, errors.InvalidRequest(op, err, "summarize must be a boolean")
		}
		req.Summarize = b
	}
	return req, nil
}

func secondsToDuration(s float64) time.Duration {
	d := s * float64(time.Second)
	switch {
	case d >= math.MaxInt64:
		return math.MaxInt64
	case d <= math.MinInt64:
		return math.MinInt64
	}
	return time.Duration(d)
}
