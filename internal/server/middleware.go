package server

import (
	"errors"
	"net/http"

	"github.com/Tyrowin/roomchat/internal/auth"
)

// requireUser rejects requests without a valid caller token and stores the
// caller's id in the request context.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.TokenFromRequest(r, s.cfg.Auth.CookieName)
		userID, err := s.tokens.Verify(token)
		if err != nil {
			message := "Unauthorized"
			if errors.Is(err, auth.ErrExpiredToken) {
				message = "Token has expired"
			}
			s.log.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected request")
			respondError(w, http.StatusUnauthorized, message)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
	})
}
