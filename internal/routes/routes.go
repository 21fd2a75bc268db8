package routes

import (
	"github.com/casefilehq/casefile-backend/internal/handlers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func SetupRoutes(r *chi.Mux) {
	// Auth routes
	r.Post("/api/auth/signin", handlers.Signin)
	r.Get("/api/auth/me", handlers.GetMe)

	// Operator management routes (master / manageOperators only)
	r.Get("/api/operators", handlers.GetOperators)
	r.Post("/api/operators", handlers.CreateOperator)
	r.Put("/api/operators/policy", handlers.UpdateOperatorPolicy)
	r.Put("/api/operators/disabled", handlers.SetOperatorDisabled)
	r.Post("/api/operators/force-logout", handlers.ForceLogoutOperator)
	r.Put("/api/operators/password", handlers.ResetOperatorPassword)

	// Subject routes
	r.Post("/api/subjects", handlers.CreateSubject)
	r.Get("/api/subjects", handlers.GetSubjects)
	r.Get("/api/subjects/one", handlers.GetSubjectByID)
	r.Put("/api/subjects", handlers.UpdateSubject)
	r.Delete("/api/subjects", handlers.DeleteSubject)

	// Intel note routes
	r.Post("/api/notes", handlers.CreateNote)
	r.Get("/api/notes", handlers.GetNotes)
	r.Delete("/api/notes", handlers.DeleteNote)

	// Timeline event routes
	r.Post("/api/events", handlers.CreateEvent)
	r.Get("/api/events", handlers.GetEvents)
	r.Delete("/api/events", handlers.DeleteEvent)

	// Location sighting routes
	r.Post("/api/locations", handlers.CreateLocation)
	r.Get("/api/locations", handlers.GetLocations)
	r.Delete("/api/locations", handlers.DeleteLocation)

	// Relationship routes
	r.Post("/api/relationships", handlers.CreateRelationship)
	r.Get("/api/relationships", handlers.GetRelationships)
	r.Delete("/api/relationships", handlers.DeleteRelationship)

	// File upload routes
	r.Post("/api/files", handlers.UploadFile)
	r.Get("/api/files", handlers.GetFiles)
	r.Delete("/api/files", handlers.DeleteFile)

	// Share link management routes
	r.Post("/api/share-links", handlers.CreateShareLink)
	r.Get("/api/share-links", handlers.GetShareLinks)
	r.Delete("/api/share-links/{token}", handlers.RevokeShareLink)
	r.Get("/api/share-links/activity", handlers.GetShareActivity)
	r.Get("/api/share-links/activity/ws", handlers.ShareActivitySocket)

	// Public share viewer route. Links get opened from anywhere, so this
	// group carries its own permissive CORS policy instead of the
	// dashboard allowlist.
	r.Group(func(pub chi.Router) {
		pub.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		pub.Get("/api/share/{token}", handlers.ResolveShare)
	})
}
