package httpx

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/gofrs/uuid"
)

const SessionCookie = "form_session"

var ErrNoSession = errors.New("no form session")

// SessionIssuer hands out form session IDs in a signed cookie.
type SessionIssuer struct {
	auth *jwtauth.JWTAuth
	ttl  time.Duration
}

func NewSessionIssuer(secret string, ttl time.Duration) *SessionIssuer {
	return &SessionIssuer{
		auth: jwtauth.New("HS256", []byte(secret), nil),
		ttl:  ttl,
	}
}

// Issue starts a new form session and sets its cookie on w.
func (s *SessionIssuer) Issue(w http.ResponseWriter) (id string, err error) {
	uid, err := uuid.NewV4()
	if err != nil {
		return
	}
	id = uid.String()

	claims := map[string]interface{}{"sub": id}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiry(claims, time.Now().Add(s.ttl))

	_, token, err := s.auth.Encode(claims)
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     SessionCookie,
		Value:    token,
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return
}

// Verify returns the session ID carried by the request cookie.
func (s *SessionIssuer) Verify(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", ErrNoSession
	}

	token, err := jwtauth.VerifyToken(s.auth, cookie.Value)
	if err != nil {
		return "", err
	}
	if token.Subject() == "" {
		return "", ErrNoSession
	}
	return token.Subject(), nil
}
