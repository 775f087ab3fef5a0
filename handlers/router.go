package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/camden-git/facesys/logger"
)

// RouterDeps holds everything the API routes need. Albums, Events and Metrics may be nil.
type RouterDeps struct {
	Service        IdentityService
	Albums         AlbumStore
	Runner         ProcessController
	Events         http.HandlerFunc
	Metrics        http.Handler
	AllowedOrigins []string
	Log            *logger.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	personHandler := &PersonHandler{Service: deps.Service, Log: log}
	searchHandler := &SearchHandler{Service: deps.Service, Log: log}
	processHandler := &ProcessHandler{Runner: deps.Runner}

	r.Route("/api", func(r chi.Router) {
		// long-lived websocket, kept out of the timeout group
		if deps.Events != nil {
			r.Get("/events", deps.Events)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Route("/people", func(r chi.Router) {
				r.Get("/", personHandler.ListPeople)
				r.Post("/", personHandler.AddPerson)
				r.Route("/{name}", func(r chi.Router) {
					r.Put("/", personHandler.RenamePerson)
					r.Get("/images", personHandler.ListPersonImages)
					r.Post("/merge", personHandler.MergePerson)
				})
			})

			r.Post("/search/faces", searchHandler.SearchFaces)

			if deps.Albums != nil {
				albumHandler := &AlbumHandler{Store: deps.Albums, Log: log}
				r.Get("/albums", albumHandler.ListAlbums)
				r.Get("/albums/{id}/images", albumHandler.ListAlbumImages)
			}

			r.Route("/process", func(r chi.Router) {
				r.Post("/", processHandler.StartProcessing)
				r.Get("/", processHandler.GetStatus)
			})
		})
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteAPIError(w, http.StatusNotFound, CodeNotFound, "No route for "+r.URL.Path)
	})

	return r
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http: request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
