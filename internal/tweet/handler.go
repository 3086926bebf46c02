package tweet

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sundayezeilo/microblog/internal/errx"
	"github.com/sundayezeilo/microblog/internal/httpx"
)

// PublisherHeader carries the publisher whose discarded tweets are listed.
const PublisherHeader = "publisher"

// HTTPPublishRequest represents the JSON request body for publishing a tweet.
type HTTPPublishRequest struct {
	Publisher string `json:"publisher"`
	Tweet     string `json:"tweet"`
}

// HTTPDiscardRequest represents the JSON request body for discarding a tweet.
type HTTPDiscardRequest struct {
	Tweet string `json:"tweet"`
}

// TweetResponse is the JSON representation of a tweet.
type TweetResponse struct {
	ID        string `json:"id"`
	Publisher string `json:"publisher"`
	Tweet     string `json:"tweet"`
	Date      string `json:"date"`
}

func toResponse(t Tweet) TweetResponse {
	var date string
	if !t.Date.IsZero() {
		date = t.Date.UTC().Format(time.RFC3339Nano)
	}
	return TweetResponse{
		ID:        t.ID.String(),
		Publisher: t.Publisher,
		Tweet:     t.Text,
		Date:      date,
	}
}

func toResponses(tweets []Tweet) []TweetResponse {
	out := make([]TweetResponse, 0, len(tweets))
	for _, t := range tweets {
		out = append(out, toResponse(t))
	}
	return out
}

// Handler provides HTTP handlers for the tweet service.
type Handler struct {
	service  Service
	logger   *slog.Logger
	validate func(PublishRequest) error
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	// Validator checks publish requests before they reach the service.
	// Defaults to ValidatePublish.
	Validator func(PublishRequest) error
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	validate := cfg.Validator
	if validate == nil {
		validate = ValidatePublish
	}

	return &Handler{
		service:  cfg.Service,
		logger:   logger,
		validate: validate,
	}
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// ListTweets handles GET requests listing every active tweet.
func (h *Handler) ListTweets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	tweets, err := h.service.ListAll(ctx)
	if err != nil {
		h.handleError(ctx, logger, w, err, "list tweets")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toResponses(tweets))
}

// ListDiscarded handles GET requests listing a publisher's discarded tweets.
// The publisher is read from the publisher header.
func (h *Handler) ListDiscarded(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	publisher := r.Header.Get(PublisherHeader)
	if isBlank(publisher) {
		logger.WarnContext(ctx, "missing publisher header")
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", ErrPublisherRequired.Error(), nil)
		return
	}

	tweets, err := h.service.ListDiscarded(ctx, publisher)
	if err != nil {
		h.handleError(ctx, logger.With("publisher", publisher), w, err, "list discarded tweets")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toResponses(tweets))
}

// PublishTweet handles POST requests publishing a new tweet.
func (h *Handler) PublishTweet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	body, err := httpx.DecodeJSON[HTTPPublishRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	req := PublishRequest{Publisher: body.Publisher, Text: body.Tweet}
	if err := h.validate(req); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"error", err.Error(),
			"publisher", req.Publisher,
		)
		httpx.WriteValidationError(w, err)
		return
	}

	saved, err := h.service.Publish(ctx, req)
	if err != nil {
		h.handleError(ctx, logger.With("publisher", req.Publisher), w, err, "publish tweet")
		return
	}

	logger.InfoContext(ctx, "tweet published",
		"tweet_id", saved.ID.String(),
		"publisher", saved.Publisher,
		"links", len(saved.Links),
	)

	httpx.WriteJSON(w, http.StatusCreated, toResponse(saved))
}

// DiscardTweet handles POST requests discarding a tweet by id.
func (h *Handler) DiscardTweet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	body, err := httpx.DecodeJSON[HTTPDiscardRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	id, err := ParseID(body.Tweet)
	if err != nil {
		logger.WarnContext(ctx, "invalid tweet id", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}

	if err := h.service.Discard(ctx, id); err != nil {
		h.handleError(ctx, logger.With("tweet_id", id.String()), w, err, "discard tweet")
		return
	}

	logger.InfoContext(ctx, "tweet discarded", "tweet_id", id.String())
	w.WriteHeader(http.StatusOK)
}

// handleError maps a service error onto a JSON error response.
func (h *Handler) handleError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error, action string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.Invalid, errx.NotFound:
		logger.WarnContext(ctx, "rejected request to "+action, logAttrs...)
		httpx.WriteKindError(w, err, "")

	case errx.Conflict:
		logger.WarnContext(ctx, "rejected request to "+action, logAttrs...)
		httpx.WriteKindError(w, err, "Unable to "+action+": the tweet conflicts with an existing one.")

	case errx.Unavailable:
		logger.ErrorContext(ctx, "store unavailable", logAttrs...)
		httpx.WriteKindError(w, err, "Unable to "+action+" at this time. Please try again.")

	default:
		logger.ErrorContext(ctx, "unexpected error", logAttrs...)
		httpx.WriteKindError(w, err, "Unable to "+action+" at this time. Please try again.")
	}
}
