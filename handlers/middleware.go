package handlers

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/satheeshds/lexbill/models"
	"github.com/satheeshds/lexbill/pricing"
)

// Response is the standard JSON envelope for all API responses.
type Response struct {
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

// DB is the shared database connection used by all handlers.
var DB *sql.DB

var (
	catalogOnce sync.Once
	baseCatalog = pricing.DefaultCatalog()
)

// SetBaseCatalog sets the tariff catalog every jurisdiction starts from. It
// reports whether c was taken: only a call made before the first price is
// computed, and only the first such call, has an effect.
func SetBaseCatalog(c pricing.Catalog) bool {
	set := false
	catalogOnce.Do(func() {
		baseCatalog = c
		set = true
	})
	return set
}

func currentCatalog() pricing.Catalog {
	catalogOnce.Do(func() {})
	return baseCatalog
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Response{Data: data}); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Error: msg})
}

// BasicAuth returns middleware enforcing HTTP Basic Authentication with the
// given credentials.
func BasicAuth(user, pass string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		// If no credentials are configured, skip auth
		if user == "" && pass == "" {
			slog.Warn("AUTH_USER and AUTH_PASS not set, API is unauthenticated")
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
				subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="lexbill"`)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// urlID parses a positive integer path parameter.
func urlID(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// engineFor returns an engine priced from the base catalog overlaid with the
// tariffs stored for jurisdiction.
func engineFor(ctx context.Context, jurisdiction string) (*pricing.Engine, error) {
	tariffs, err := listTariffs(ctx, jurisdiction)
	if err != nil {
		return nil, err
	}
	return pricing.NewEngine(currentCatalog().Merge(models.CatalogFromTariffs(tariffs))), nil
}
