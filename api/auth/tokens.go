package auth

import (
	"errors"
	"net/http"

	"github.com/jacobshu/forum/api/handler"
	"github.com/jacobshu/forum/internal/database"
	"github.com/jacobshu/forum/internal/types"
)

type tokenResponse struct {
	types.User
	types.Token
}

// token exchanges an email and password for an access token and a refresh
// token.
func (g *Group) token(w http.ResponseWriter, r *http.Request) {
	type parameters struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	params := parameters{}
	if err := handler.Decode(r, &params); err != nil {
		g.h.Log().Info("Error decoding token parameters", "error", err)
		g.h.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := g.app.Store.GetUserByEmail(r.Context(), params.Email)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			g.h.Log().Error("Error querying user", "error", err)
			g.h.RespondInternalServerError(w)
			return
		}
		g.h.RespondWithError(w, http.StatusUnauthorized, "incorrect email or password")
		return
	}

	if err := g.app.Auth.CheckPasswordHash(params.Password, user.PasswordHash); err != nil {
		g.h.RespondWithError(w, http.StatusUnauthorized, "incorrect email or password")
		return
	}

	access, err := g.app.Auth.MakeJWT(user.ID, accessTokenTTL)
	if err != nil {
		g.h.Log().Error("Error creating JWT", "error", err)
		g.h.RespondInternalServerError(w)
		return
	}

	refresh, err := g.app.Auth.MakeRefreshToken()
	if err != nil {
		g.h.Log().Error("Error creating refresh token", "error", err)
		g.h.RespondInternalServerError(w)
		return
	}
	now := g.app.Auth.Now()
	err = g.app.Store.CreateRefreshToken(r.Context(), database.CreateRefreshTokenParams{
		Token:     refresh,
		UserID:    user.ID,
		ExpiresAt: now.Add(refreshTokenTTL),
	})
	if err != nil {
		g.h.Log().Error("Error storing refresh token", "error", err)
		g.h.RespondInternalServerError(w)
		return
	}

	g.h.Respond(w, http.StatusOK, tokenResponse{
		User: user,
		Token: types.Token{
			UserID:       user.ID,
			Token:        access,
			RefreshToken: refresh,
			ExpiresAt:    now.Add(accessTokenTTL),
		},
	})
}

func (g *Group) refresh(w http.ResponseWriter, r *http.Request) {
	bearer, err := g.app.Auth.GetBearerToken(r.Header)
	if err != nil {
		g.h.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	rt, err := g.app.Store.GetRefreshToken(r.Context(), bearer)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			g.h.Respond(w, http.StatusUnauthorized, nil)
			return
		}
		g.h.Log().Error("Error querying refresh token", "error", err)
		g.h.RespondInternalServerError(w)
		return
	}

	now := g.app.Auth.Now()
	if !rt.Usable(now) {
		g.h.Log().Info("Refresh token expired or revoked", "user_id", rt.UserID)
		g.h.Respond(w, http.StatusUnauthorized, nil)
		return
	}

	access, err := g.app.Auth.MakeJWT(rt.UserID, accessTokenTTL)
	if err != nil {
		g.h.Log().Error("Error creating refresh JWT response", "error", err)
		g.h.RespondInternalServerError(w)
		return
	}
	g.h.Respond(w, http.StatusOK, types.Token{UserID: rt.UserID, Token: access, ExpiresAt: now.Add(accessTokenTTL)})
}

func (g *Group) revoke(w http.ResponseWriter, r *http.Request) {
	bearer, err := g.app.Auth.GetBearerToken(r.Header)
	if err != nil {
		g.h.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	if err := g.app.Store.RevokeRefreshToken(r.Context(), bearer); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			g.h.Respond(w, http.StatusUnauthorized, nil)
			return
		}
		g.h.Log().Error("Error revoking token", "error", err)
		g.h.RespondInternalServerError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
