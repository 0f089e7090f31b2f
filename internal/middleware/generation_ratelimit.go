package middleware

import (
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/AnshRaj112/journeygen-backend/internal/auth"
	"github.com/AnshRaj112/journeygen-backend/pkg/clientip"
)

// Generation calls hit the paid model API. Admins: 12/min burst 5.
// Clients (reports only): 4/min burst 2.
const (
	generationAdminBurst  = 5
	generationClientBurst = 2
)

var (
	adminGenerationLimiters  = newLimiterSet(rate.Limit(0.2), generationAdminBurst)
	clientGenerationLimiters = newLimiterSet(rate.Limit(1.0/15), generationClientBurst)
)

// GenerationRateLimit throttles the journal and report generation routes per
// identity. Use after Authenticate.
func GenerationRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.FromContext(r.Context())

		set, burst, key := clientGenerationLimiters, generationClientBurst, "client:"+id.ClientID()
		switch {
		case id.IsAdmin():
			set, burst, key = adminGenerationLimiters, generationAdminBurst, "admin:"+id.Name()
		case !id.Authenticated():
			key = "ip:" + clientip.RealClientIP(r)
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(burst))
		if !set.get(key).Allow() {
			w.Header().Set("X-RateLimit-Remaining", "0")
			writeError(w, http.StatusTooManyRequests, "Too many generation requests. Please wait a moment.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
