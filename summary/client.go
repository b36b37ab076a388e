package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nijaru/yt-summary/errors"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Strategy string

const (
	// StrategyTruncate summarizes a bounded prefix of the text.
	StrategyTruncate Strategy = "truncate"
	// StrategyChunk summarizes fixed-size windows of the same bounded prefix in
	// one batched request.
	StrategyChunk Strategy = "chunk"
)

const (
	defaultBaseURL       = "https://api-inference.huggingface.co/models"
	defaultModel         = "facebook/bart-large-cnn"
	defaultMaxInputChars = 5000
	defaultChunkChars    = 1000
	defaultMaxLength     = 160
	defaultTimeout       = 60 * time.Second

	maxResponseBytes = 1 << 20
)

type Config struct {
	Enabled       bool
	Token         string
	Model         string
	BaseURL       string
	Strategy      Strategy
	MaxInputChars int
	ChunkChars    int
	MaxLength     int
	MinLength     int
	Timeout       time.Duration
}

// Client calls a hosted summarization model over HTTP.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *logrus.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient fills unset Config fields with defaults. The config is not
// modified afterwards.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyTruncate
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = defaultMaxInputChars
	}
	if cfg.ChunkChars <= 0 {
		cfg.ChunkChars = defaultChunkChars
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = defaultMaxLength
	}
	if cfg.MinLength < 0 {
		cfg.MinLength = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether Summarize will call the model at all.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled && c.cfg.Token != ""
}

type request struct {
	Inputs     any        `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

type parameters struct {
	MaxLength int  `json:"max_length"`
	MinLength int  `json:"min_length"`
	DoSample  bool `json:"do_sample"`
}

// Summarize returns a summary of text. It returns "" without a network call
// when the client is disabled or has no token. Model error and loading
// responses yield a placeholder; transport failures and unrecognised
// non-2xx responses return a summarization error.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	const op = "summary.Client.Summarize"

	if !c.Enabled() || strings.TrimSpace(text) == "" {
		return "", nil
	}

	var inputs any
	switch c.cfg.Strategy {
	case StrategyChunk:
		// MaxInputChars bounds the batch to MaxInputChars/ChunkChars inputs.
		inputs = SplitText(Truncate(text, c.cfg.MaxInputChars), c.cfg.ChunkChars)
	default:
		inputs = Truncate(text, c.cfg.MaxInputChars)
	}

	payload, err := json.Marshal(request{
		Inputs: inputs,
		Parameters: parameters{
			MaxLength: c.cfg.MaxLength,
			MinLength: c.cfg.MinLength,
			DoSample:  false,
		},
	})
	if err != nil {
		return "", errors.Summarization(op, err, "Failed to encode summarization request")
	}

	endpoint := c.cfg.BaseURL + "/" + c.cfg.Model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Summarization(op, err, "Failed to build summarization request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	logger := c.logger.WithFields(logrus.Fields{
		"model":    c.cfg.Model,
		"strategy": string(c.cfg.Strategy),
		"chars":    len(text),
	})

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.WithError(err).Warn("Summarization request failed")
		return "", errors.Summarization(op, pkgerrors.Wrap(err, "post"), "Summarization request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errors.Summarization(op, pkgerrors.Wrap(err, "read body"), "Summarization request failed")
	}

	out, err := parseResponse(body, resp.StatusCode)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"error":  err.Error(),
		}).Warn("Unusable summarization response")
		return "", errors.Summarization(op, err, fmt.Sprintf("Summarization failed with HTTP %d", resp.StatusCode))
	}

	logger.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
		"outcome":  out.kind,
	}).Debug("Summarization finished")
	return out.text, nil
}
