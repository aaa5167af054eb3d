// internal/api/middleware/admin_auth.go
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AdminKeyHeader carries the admin key on admin requests.
const AdminKeyHeader = "X-Admin-Key"

// AdminAuth admits a request only when its X-Admin-Key matches keyHash, a
// bcrypt hash. With an empty keyHash every request is rejected.
func AdminAuth(keyHash string, logger *logrus.Logger) func(http.Handler) http.Handler {
	hash := []byte(keyHash)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(AdminKeyHeader)
			if len(hash) == 0 || key == "" || bcrypt.CompareHashAndPassword(hash, []byte(key)) != nil {
				logger.WithFields(logrus.Fields{
					"path":      r.URL.Path,
					"remote_ip": r.RemoteAddr,
				}).Warn("Rejected admin request")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"success": false,
					"message": "Unauthorized",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
