package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/broadcast"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/service"
)

// Deps are the collaborators the router serves.
type Deps struct {
	Events     *service.EventService
	Records    *service.RecordService
	Hub        *broadcast.Hub
	Logger     *slog.Logger
	CORSOrigin string
	// Limiter guards the write routes; nil disables rate limiting.
	Limiter *RateLimiter
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps) http.Handler {
	events := NewEventHandler(d.Events)
	records := NewRecordHandler(d.Records)
	stream := NewStreamHandler(d.Events, d.Hub)

	limit := func(next http.Handler) http.Handler { return next }
	if d.Limiter != nil {
		limit = d.Limiter.Middleware
	}

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(d.Logger))        // structured access log
	r.Use(CORS(d.CORSOrigin))

	// Health
	r.Get("/health", HealthCheck)

	// API routes
	r.Route("/events", func(r chi.Router) {
		r.Get("/", events.ListEvents)
		r.With(limit).Post("/", events.CreateEvent)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", events.GetEvent)
			r.Get("/teams", events.ListTeams)
			r.Get("/records", records.List)
			r.Get("/progress", records.Progress)
			r.Get("/stream", stream.Stream)

			r.Group(func(r chi.Router) {
				r.Use(limit)
				r.Patch("/", events.UpdateEvent)
				r.Delete("/", events.DeleteEvent)
				r.Post("/teams", events.CreateTeam)
				r.Patch("/teams/{teamID}", events.UpdateTeam)
				r.Delete("/teams/{teamID}", events.DeleteTeam)
				r.Post("/records", records.Submit)
				r.Post("/records/batch", records.SubmitBatch)
				r.Delete("/records/{recordID}", records.Delete)
				r.Post("/reset", records.Reset)
			})
		})
	})

	return r
}
