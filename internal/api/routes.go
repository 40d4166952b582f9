package api

import "github.com/go-chi/chi/v5"

// Handlers groups the HTTP handlers mounted under /api
type Handlers struct {
	Matrix   *CallMatrixHandler
	Counter  *CounterHandler
	FilmData *FilmDataHandler
	Leads    *LeadsHandler
	Cache    *CacheHandler
}

// Routes registers the /api routes
func (h Handlers) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/call-matrix", func(r chi.Router) {
			r.Get("/", h.Matrix.GetMatrix)
			r.Get("/agents/{agentId}", h.Matrix.GetAgentSummary)
			r.Get("/slots/{slotKey}", h.Matrix.GetSlotSummary)

			r.Post("/log", h.Counter.LogCall)
			r.Post("/increment", h.Counter.Increment)
			r.Post("/set", h.Counter.Set)
			r.Post("/batch", h.Counter.Batch)
		})

		r.Get("/film-data", h.FilmData.GetFilmData)
		r.Get("/leads", h.Leads.GetLeads)
		r.Post("/clear-cache", h.Cache.ClearCache)
	})
}
