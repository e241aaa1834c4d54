package api

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/tiergate/binder"
	"github.com/dmitrymomot/tiergate/handler"
	"github.com/dmitrymomot/tiergate/pkg/audit"
	"github.com/dmitrymomot/tiergate/pkg/logger"
	"github.com/dmitrymomot/tiergate/svc/access"
	"github.com/dmitrymomot/tiergate/svc/auth"
)

type statusUser struct {
	ID string `json:"id"`
}

type statusResponse struct {
	Authenticated bool        `json:"authenticated"`
	Tier          access.Tier `json:"tier"`
	User          *statusUser `json:"user,omitempty"`
}

func (s *Server) status() http.HandlerFunc {
	return wrap(s, func(ctx handler.Context, _ struct{}) handler.Response {
		st := s.deps.Aggregator.DeriveState(ctx.Request())
		resp := statusResponse{Authenticated: st.Authenticated, Tier: st.Tier}
		if st.RawSession != nil {
			resp.User = &statusUser{ID: st.RawSession.UserID}
		}
		return handler.JSON(resp)
	})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) register() http.HandlerFunc {
	return wrap(s, func(ctx handler.Context, req credentialsRequest) handler.Response {
		u, err := s.deps.Accounts.Register(ctx, req.Email, req.Password)
		switch {
		case errors.Is(err, auth.ErrInvalidInput):
			return handler.JSONError(handler.ErrBadRequest)
		case errors.Is(err, auth.ErrWeakPassword):
			return handler.JSONError(errWeakPassword)
		case errors.Is(err, auth.ErrEmailInUse):
			return handler.JSONError(errEmailInUse)
		case err != nil:
			s.log.ErrorContext(ctx, "registration failed", logger.Error(err))
			return handler.JSONError(err)
		}

		s.deps.Audit.Record(ctx, "auth.registered", audit.WithActor(u.ID.String()))
		return handler.JSON(map[string]string{"id": u.ID.String()}, handler.WithStatus(http.StatusCreated))
	},
		handler.WithBinders[credentialsRequest](binder.BindJSON(binder.DefaultMaxJSONBytes)),
	)
}

type loginUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (s *Server) login() http.HandlerFunc {
	return wrap(s, func(ctx handler.Context, req credentialsRequest) handler.Response {
		token, u, err := s.deps.Accounts.Login(ctx, req.Email, req.Password)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.deps.Audit.Record(ctx, "auth.login", audit.Failed(), audit.WithDetail("reason", "invalid-credentials"))
			return handler.JSONError(errInvalidCreds)
		}
		if err != nil {
			s.log.ErrorContext(ctx, "login failed", logger.Error(err))
			return handler.JSONError(err)
		}

		http.SetCookie(ctx.ResponseWriter(), &http.Cookie{
			Name:     s.deps.CookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(s.deps.Accounts.SessionTTL().Seconds()),
			HttpOnly: true,
			Secure:   s.deps.Env.IsProduction(),
			SameSite: http.SameSiteLaxMode,
		})
		s.deps.Audit.Record(ctx, "auth.login", audit.WithActor(u.ID.String()))
		return handler.JSON(map[string]loginUser{"user": {ID: u.ID.String(), Email: u.Email}})
	},
		handler.WithBinders[credentialsRequest](binder.BindJSON(binder.DefaultMaxJSONBytes)),
	)
}

func (s *Server) logout() http.HandlerFunc {
	return wrap(s, func(ctx handler.Context, _ struct{}) handler.Response {
		http.SetCookie(ctx.ResponseWriter(), &http.Cookie{
			Name:     s.deps.CookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.deps.Env.IsProduction(),
			SameSite: http.SameSiteLaxMode,
		})
		return handler.JSON(nil)
	})
}
