package health

import (
	"net/http"
)

// TokenReadiness reports whether a usable BIG-IQ token is held.
type TokenReadiness interface {
	Ready() bool
}

type HealthChecker struct {
	TokenManager TokenReadiness
}

func (hc HealthChecker) HealthCheckHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hc.TokenManager != nil && hc.TokenManager.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Ok"))
			return
		}

		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("BIG-IQ session is not established"))
	})
}
