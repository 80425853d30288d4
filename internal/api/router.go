package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/rotadovale/motofest/internal/geo"
	"github.com/rotadovale/motofest/internal/model"
	"github.com/rotadovale/motofest/internal/pix"
	"github.com/rotadovale/motofest/internal/store"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, pixClient *pix.Client, geoClient *geo.Client, pricing store.Pricing, pendingTTL time.Duration) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	regsHandler := &RegistrationsHandler{DB: db, Pix: pixClient, Pricing: pricing, PendingTTL: pendingTTL}
	paymentsHandler := &PaymentsHandler{DB: db, Pix: pixClient}
	stockHandler := &StockHandler{DB: db}
	championsHandler := &ChampionsHandler{DB: db}
	photosHandler := &PhotosHandler{DB: db}
	routesHandler := &RoutesHandler{DB: db}
	geoHandler := &GeoHandler{Geo: geoClient}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	// Public: the sign-up flow and everything the event site shows.
	mux.HandleFunc("POST /api/registrations", regsHandler.Create)
	mux.HandleFunc("GET /api/registrations/{number}/status", regsHandler.Status)
	mux.HandleFunc("GET /api/stock", stockHandler.List)
	mux.HandleFunc("GET /api/champions", championsHandler.List)
	mux.HandleFunc("GET /api/champions/{id}/photo", championsHandler.GetPhoto)
	mux.HandleFunc("GET /api/photos", photosHandler.List)
	mux.HandleFunc("GET /api/photos/{id}/image", photosHandler.GetImage)
	mux.HandleFunc("GET /api/routes", routesHandler.List)
	mux.HandleFunc("GET /api/routes/{id}", routesHandler.Get)
	mux.HandleFunc("GET /api/routes/{id}/gpx", routesHandler.GetGPX)
	mux.HandleFunc("GET /api/routes/{id}/points", routesHandler.GetPoints)
	mux.HandleFunc("GET /api/geo/cep/{cep}", geoHandler.LookupCEP)

	// Public but authenticated by HMAC signature, not JWT.
	mux.HandleFunc("POST /api/payments/webhook", paymentsHandler.Webhook)

	// Authentication.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Registration management (manager+).
	mux.Handle("GET /api/registrations", authMW(requireManager(http.HandlerFunc(regsHandler.List))))
	mux.Handle("GET /api/registrations/{id}", authMW(requireManager(http.HandlerFunc(regsHandler.Get))))
	mux.Handle("DELETE /api/registrations/{id}", authMW(requireManager(http.HandlerFunc(regsHandler.Delete))))
	mux.Handle("POST /api/registrations/{id}/confirm", authMW(requireManager(http.HandlerFunc(regsHandler.Confirm))))
	mux.Handle("POST /api/registrations/{id}/cancel", authMW(requireManager(http.HandlerFunc(regsHandler.Cancel))))
	mux.Handle("GET /api/registrations/{id}/payment", authMW(requireManager(http.HandlerFunc(regsHandler.PollPayment))))
	mux.Handle("POST /api/registrations/{id}/extras", authMW(requireManager(http.HandlerFunc(regsHandler.AddExtra))))
	mux.Handle("DELETE /api/registrations/{id}/extras/{extraID}", authMW(requireManager(http.HandlerFunc(regsHandler.RemoveExtra))))

	// Stock management (manager+).
	mux.Handle("PUT /api/stock/{size}/{sleeve}", authMW(requireManager(http.HandlerFunc(stockHandler.Set))))

	// Site content management (manager+).
	mux.Handle("POST /api/champions", authMW(requireManager(http.HandlerFunc(championsHandler.Create))))
	mux.Handle("PUT /api/champions/{id}", authMW(requireManager(http.HandlerFunc(championsHandler.Update))))
	mux.Handle("DELETE /api/champions/{id}", authMW(requireManager(http.HandlerFunc(championsHandler.Delete))))
	mux.Handle("PUT /api/champions/{id}/photo", authMW(requireManager(http.HandlerFunc(championsHandler.UploadPhoto))))
	mux.Handle("POST /api/photos", authMW(requireManager(http.HandlerFunc(photosHandler.Create))))
	mux.Handle("DELETE /api/photos/{id}", authMW(requireManager(http.HandlerFunc(photosHandler.Delete))))
	mux.Handle("POST /api/routes", authMW(requireManager(http.HandlerFunc(routesHandler.Create))))
	mux.Handle("DELETE /api/routes/{id}", authMW(requireManager(http.HandlerFunc(routesHandler.Delete))))

	// Accounts (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	return mux
}
