// Package portaltest provides an in-memory reference implementation of the
// portal's post endpoints. It exists so the SDK's tests (and a local dev
// harness) can run against a server with the real contract: archive
// bucketing, cascade deletes, admin-gated mutation, and upload limits.
// It is a test fixture, not a deployable server
package portaltest

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/ironstar-io/chizerolog"
	"github.com/rs/zerolog"

	"github.com/dse-portal/noticeboard/auth"
)

// The fixed HS256 secret used to sign and verify test tokens
var testSecret = []byte("noticeboard-portaltest-secret")

// Server bundles the in-memory store with the JWT manager
// used to gate mutations
type Server struct {
	Store      *Store
	jwtManager *auth.JWTManager
	logger     zerolog.Logger
}

// NewServer creates a reference server with the given retention window
func NewServer(archiveDays int, logger zerolog.Logger) *Server {
	return &Server{
		Store:      NewStore(archiveDays),
		jwtManager: auth.NewJWTManagerWithSecret(testSecret, false),
		logger:     logger,
	}
}

// IssueToken mints a signed token carrying the given username and role,
// for use as the Authorization bearer token in tests
func (s *Server) IssueToken(username string, role auth.Role) (string, error) {
	token := s.jwtManager.IssueJWT(username, role, nil)
	return s.jwtManager.SignToken(token)
}

// Router creates the Chi router with all of the portal's post routes
func (s *Server) Router() *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.Recoverer,                          // Recover from panics without crashing the server
		chizerolog.LoggerMiddleware(&s.logger),        // Log API request calls
		middleware.RedirectSlashes,                    // Redirect slashes to no slash URL versions
		render.SetContentType(render.ContentTypeJSON), // Set content-type headers to application/json
		middleware.NoCache,                            // Prevent clients from caching the results
		s.corsMiddleware(),                            // Create cors middleware from go-chi/cors
	)

	router.Route("/posts", func(r chi.Router) {
		// Public routes
		r.Get("/active", s.listActive())
		r.Get("/archived", s.listArchived())
		r.Get("/archived/{id}", s.getArchived())
		r.Get("/stats/archive", s.archiveStats())
		r.Get("/{id}", s.getSingle())

		// Admin-only routes
		r.Group(func(r chi.Router) {
			// Ensure the user has access
			r.Use(s.jwtManager.Authenticated())
			r.Use(auth.AdminAuthenticated)

			r.Post("/", s.create())
			r.Put("/{id}", s.update())
			r.Delete("/{id}", s.remove())
			r.Post("/{id}/attachments", s.addAttachment())
			r.Delete("/{postID}/attachments/{fileID}", s.removeAttachment())
		})
	})

	// Attachment bodies are fetched by opening the URL directly
	router.Get("/files/{key}", s.serveFile())

	return router
}

func (s *Server) corsMiddleware() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "ngrok-skip-browser-warning"},
		ExposedHeaders:   []string{},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
