package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"

	"arbd/pkg/crypto"
)

// Auth - middleware проверки bearer токена
//
// Токен сверяется с bcrypt-хешем из server.token_hash (API_TOKEN_HASH).
// Пустой хеш отключает проверку (локальный запуск).
//
// Клиенты WebSocket в браузере не могут задать заголовок Authorization,
// поэтому для них токен принимается и из параметра ?token=.
//
// bcrypt дорогой на каждый запрос: после первой успешной проверки
// запоминается SHA-256 токена, последующие сравниваются за constant-time.
func Auth(tokenHash string, logger *zap.Logger) func(http.Handler) http.Handler {
	if tokenHash == "" {
		return func(next http.Handler) http.Handler { return next }
	}

	a := &tokenAuth{hash: tokenHash, logger: logger}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := crypto.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				token = r.URL.Query().Get("token")
			}
			if token == "" || !a.verify(token) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="arbd"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type tokenAuth struct {
	hash   string
	logger *zap.Logger

	// SHA-256 последнего принятого токена
	known atomic.Pointer[[sha256.Size]byte]
}

func (a *tokenAuth) verify(token string) bool {
	digest := sha256.Sum256([]byte(token))
	if known := a.known.Load(); known != nil && subtle.ConstantTimeCompare(known[:], digest[:]) == 1 {
		return true
	}

	if err := crypto.VerifyToken(token, a.hash); err != nil {
		if err != crypto.ErrTokenMismatch {
			a.logger.Warn("API token verification failed", zap.Error(err))
		}
		return false
	}
	a.known.Store(&digest)
	return true
}
