// Package api exposes the metadata collection as JSON over HTTP, with refresh events
// streamed over a websocket.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/events"
	"github.com/conduit-lang/metabridge/internal/ratelimit"
)

// Collection is the part of the metadata collection the api serves.
// *collection.MetadataCollection satisfies it.
type Collection interface {
	CollectionID() string
	MetadataCollectionName() string

	LoadAll(ctx context.Context, userID string) (*cohort.TypeDefGallery, error)
	GetTypeDefByName(ctx context.Context, userID, name string) (cohort.TypeDef, error)
	GetTypeDefByGUID(ctx context.Context, userID, guid string) (cohort.TypeDef, error)

	GetEntityDetail(ctx context.Context, userID, guid string) (*cohort.EntityDetail, error)
	GetEntitySummary(ctx context.Context, userID, guid string) (*cohort.EntitySummary, error)
	DeleteEntity(ctx context.Context, userID, typeGUID, typeName, guid string) (*cohort.EntityDetail, error)
	PurgeEntity(ctx context.Context, userID, typeGUID, typeName, guid string) error
	GetRelationship(ctx context.Context, userID, guid string) (*cohort.Relationship, error)

	FindEntitiesByProperty(ctx context.Context, userID, entityTypeGUID string,
		props *cohort.InstanceProperties, criteria cohort.MatchCriteria, opts cohort.SearchOptions) ([]*cohort.EntityDetail, error)
	FindEntitiesByPropertyValue(ctx context.Context, userID, entityTypeGUID, text string,
		opts cohort.SearchOptions) ([]*cohort.EntityDetail, error)
	FindEntitiesByClassification(ctx context.Context, userID, entityTypeGUID, classificationName string,
		props *cohort.InstanceProperties, criteria cohort.MatchCriteria, opts cohort.SearchOptions) ([]*cohort.EntityDetail, error)
	GetRelationshipsForEntity(ctx context.Context, userID, entityGUID, relationshipTypeGUID string,
		opts cohort.SearchOptions) ([]*cohort.Relationship, error)

	RefreshEntityReferenceCopy(ctx context.Context, userID, guid, typeGUID, typeName, homeID string) error
}

// Options configures the server
type Options struct {
	// JWTSecret enables bearer token identity; empty trusts X-User-Id
	JWTSecret string
	// Users maps user ids to bcrypt password hashes for basic auth
	Users map[string]string
	// Hub serves GET /events when set
	Hub *events.Hub
	// Limiter bounds requests per caller when set
	Limiter ratelimit.Limiter
}

// Server routes http requests to the metadata collection
type Server struct {
	collection Collection
	identity   *Identifier
	hub        *events.Hub
	limiter    ratelimit.Limiter
	logger     *zap.Logger
	router     chi.Router
}

// New creates the server and its routes
func New(c Collection, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		collection: c,
		identity:   NewIdentifier(opts.JWTSecret, opts.Users),
		hub:        opts.Hub,
		limiter:    opts.Limiter,
		logger:     logger.Named("api"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	if s.hub != nil {
		r.Get("/events", s.hub.Handler(s.identity.Identify))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.identity.Middleware)
		if s.limiter != nil {
			r.Use(s.rateLimit)
		}

		r.Route("/types", func(r chi.Router) {
			r.Get("/", s.loadTypes)
			r.Get("/guid/{guid}", s.getTypeByGUID)
			r.Get("/{name}", s.getTypeByName)
		})

		r.Route("/entities", func(r chi.Router) {
			r.Post("/search", s.searchEntities)
			r.Route("/{guid}", func(r chi.Router) {
				r.Get("/", s.getEntity)
				r.Delete("/", s.deleteEntity)
				r.Get("/summary", s.getEntitySummary)
				r.Get("/relationships", s.relationshipsForEntity)
				r.Post("/purge", s.purgeEntity)
				r.Post("/refresh", s.refreshEntity)
			})
		})

		r.Get("/relationships/{guid}", s.getRelationship)
	})
	return r
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then drains in-flight
// requests for up to the shutdown timeout
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("requestId", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)))
	})
}

// rateLimit applies the limiter per caller. A limiter failure lets the request
// through.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, err := s.limiter.Allow(r.Context(), "user:"+Caller(r.Context()))
		if err != nil {
			s.logger.Warn("rate limit check failed", requestFields(r, 0, err)...)
			next.ServeHTTP(w, r)
			return
		}

		now := time.Now()
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		if !d.Allowed {
			w.Header().Set("Retry-After", strconv.FormatInt(d.RetryAfterSeconds(now), 10))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limited", Message: "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestFields(r *http.Request, status int, err error) []zap.Field {
	return []zap.Field{
		zap.String("requestId", middleware.GetReqID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
}
