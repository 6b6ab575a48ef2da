// Package webapp serves the mini-app: its static files, the product list it
// renders, a proxy for product photos kept in Telegram file storage, and the
// webhook that feeds platform updates to the bot.
package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"

	"telegram-shop-bot/bot"
	"telegram-shop-bot/catalog"
	"telegram-shop-bot/pkg/config"
)

const (
	maxUpdateSize = 1 << 20
	// Telegram refuses bot downloads above 20 MB.
	maxImageSize = 20 << 20
)

var errFileNotFound = errors.New("webapp: file not found")

// ProductLister is the catalog view exposed to the mini-app.
type ProductLister interface {
	List() []catalog.Product
}

// FileResolver turns a Telegram file id into a download URL.
type FileResolver interface {
	GetFileDirectURL(fileID string) (string, error)
}

type upstreamError struct {
	status int
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("webapp: upstream returned %d", e.status)
}

type Server struct {
	cfg     *config.Config
	catalog ProductLister
	files   FileResolver
	updates chan<- bot.Update
	logger  *logrus.Logger
	client  *http.Client
	images  singleflight.Group
}

// NewServer builds the HTTP surface. Webhook updates are pushed to updates;
// the bot's dispatcher goroutine is the only reader.
func NewServer(cfg *config.Config, cat ProductLister, files FileResolver, updates chan<- bot.Update, logger *logrus.Logger) *Server {
	return &Server{
		cfg:     cfg,
		catalog: cat,
		files:   files,
		updates: updates,
		logger:  logger,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Handler returns the router wrapped in OpenTelemetry instrumentation.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware(s.logger))
	r.Use(loggingMiddleware(s.logger))

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/api/products", s.handleProducts).Methods("GET")
	r.HandleFunc("/images/{file_id}", s.handleImage).Methods("GET")
	r.HandleFunc(s.cfg.WebhookPath, s.handleWebhook).Methods("POST")

	r.HandleFunc("/app", s.serveFile("index.html")).Methods("GET")
	r.HandleFunc("/style.css", s.serveFile("style.css")).Methods("GET")
	r.HandleFunc("/script.js", s.serveFile("script.js")).Methods("GET")
	r.PathPrefix("/webapp/").Handler(http.StripPrefix("/webapp/", http.FileServer(http.Dir(s.cfg.WebAppDir)))).Methods("GET")

	return otelhttp.NewHandler(r, s.cfg.OTELServiceName)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": s.cfg.OTELServiceName,
	})
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"items": s.catalog.List(),
	})
}

func (s *Server) serveFile(name string) http.HandlerFunc {
	path := filepath.Join(s.cfg.WebAppDir, name)
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, path)
	}
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpdateSize))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	u, err := bot.ParseUpdate(body)
	if err != nil {
		s.logger.WithField("request_id", RequestID(r.Context())).WithError(err).Warn("Rejected webhook update")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	select {
	case s.updates <- u:
		w.WriteHeader(http.StatusOK)
	case <-r.Context().Done():
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
	}
}

// handleImage streams a product photo from Telegram file storage. Concurrent
// requests for the same file share one download.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["file_id"]
	logger := s.logger.WithFields(logrus.Fields{
		"file_id":    fileID,
		"request_id": RequestID(r.Context()),
	})

	data, err := s.fetchImage(r.Context(), fileID)
	if err != nil {
		var upstream *upstreamError
		switch {
		case errors.Is(err, errFileNotFound):
			logger.WithError(err).Warn("Image not found")
			http.NotFound(w, r)
		case errors.As(err, &upstream):
			logger.WithError(err).Warn("Image download failed")
			w.WriteHeader(upstream.status)
		default:
			logger.WithError(err).Error("Image proxy failed")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(data)
}

func (s *Server) fetchImage(ctx context.Context, fileID string) ([]byte, error) {
	// The shared download must outlive whichever request started it.
	ctx = context.WithoutCancel(ctx)

	v, err, _ := s.images.Do(fileID, func() (interface{}, error) {
		url, err := s.files.GetFileDirectURL(fileID)
		if err != nil {
			if isMissingFile(err) {
				return nil, fmt.Errorf("%w: %v", errFileNotFound, err)
			}
			return nil, fmt.Errorf("webapp: resolve file: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("webapp: download: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, &upstreamError{status: resp.StatusCode}
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// isMissingFile reports whether Telegram rejected the file id itself, as
// opposed to the request failing on the way.
func isMissingFile(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusBadRequest || apiErr.Code == http.StatusNotFound
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
