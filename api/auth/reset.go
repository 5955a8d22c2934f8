package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	authsvc "github.com/jacobshu/forum/internal/auth"
	"github.com/jacobshu/forum/internal/database"
	"github.com/jacobshu/forum/internal/mail"
	"github.com/jacobshu/forum/internal/types"
)

const invalidResetLink = "That reset link is invalid or has expired."

func (g *Group) resetRequestForm(w http.ResponseWriter, r *http.Request) {
	g.h.Render(w, r, http.StatusOK, "auth_reset_request.html", "Reset password", nil)
}

// resetRequest mails a reset link. The response is the same whether or not
// the address is known.
func (g *Group) resetRequest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		g.h.RenderError(w, r, http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))

	user, err := g.app.Store.GetUserByEmail(r.Context(), email)
	switch {
	case errors.Is(err, database.ErrNotFound):
		g.h.Log().Info("Password reset for unknown email", "email", email)
	case err != nil:
		g.h.Fail(w, r, err)
		return
	default:
		if err := g.sendResetMail(r, user); err != nil {
			g.h.Log().Error("Failed to send password reset mail", "user_id", user.ID, "error", err)
		}
	}

	g.h.Render(w, r, http.StatusOK, "auth_reset_request.html", "Reset password", map[string]any{"Sent": true})
}

func (g *Group) sendResetMail(r *http.Request, user types.User) error {
	token, err := g.app.Auth.MakeResetToken(user.ID, user.PasswordHash, resetTokenTTL)
	if err != nil {
		return err
	}
	path, err := g.h.URLFor("auth.reset_token_route", "token", token)
	if err != nil {
		return err
	}

	// The request Host is client controlled, so links use the configured origin.
	link := strings.TrimSuffix(g.app.Settings.String("BASE_URL"), "/") + path

	msg := &mail.Message{
		Subject: "Reset your forum password",
		To:      []string{user.Email},
		Body: fmt.Sprintf("Hi %s,\n\nFollow this link to choose a new password:\n\n%s\n\nThe link expires in %d minutes. If you did not ask for a reset you can ignore this message.\n",
			user.Username, link, int(resetTokenTTL.Minutes())),
	}
	if err := g.app.Mail.Send(r.Context(), msg); err != nil {
		return err
	}
	g.app.Metrics.MailsQueued.Inc()
	return nil
}

// resetUser returns the user a reset token is valid for. The token must
// match the user's current password hash.
func (g *Group) resetUser(r *http.Request) (types.User, error) {
	userID, fingerprint, err := g.app.Auth.ValidateResetToken(chi.URLParam(r, "token"))
	if err != nil {
		return types.User{}, err
	}
	user, err := g.app.Store.GetUser(r.Context(), userID)
	if err != nil {
		return types.User{}, err
	}
	if authsvc.PasswordFingerprint(user.PasswordHash) != fingerprint {
		return types.User{}, authsvc.ErrInvalidToken
	}
	return user, nil
}

func (g *Group) rejectResetToken(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, authsvc.ErrInvalidToken) || errors.Is(err, authsvc.ErrEmptyToken) || errors.Is(err, database.ErrNotFound) {
		g.h.Log().Info("Rejected password reset token", "error", err)
		g.h.Flash(w, r, invalidResetLink)
		g.h.Redirect(w, r, "auth.reset_request_route")
		return
	}
	g.h.Fail(w, r, err)
}

func (g *Group) resetTokenForm(w http.ResponseWriter, r *http.Request) {
	if _, err := g.resetUser(r); err != nil {
		g.rejectResetToken(w, r, err)
		return
	}
	g.h.Render(w, r, http.StatusOK, "auth_reset_token.html", "Choose a new password", map[string]any{
		"Token": chi.URLParam(r, "token"),
	})
}

func (g *Group) resetToken(w http.ResponseWriter, r *http.Request) {
	user, err := g.resetUser(r)
	if err != nil {
		g.rejectResetToken(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		g.h.RenderError(w, r, http.StatusBadRequest)
		return
	}

	reject := func(msg string) {
		g.h.Render(w, r, http.StatusBadRequest, "auth_reset_token.html", "Choose a new password", map[string]any{
			"Token": chi.URLParam(r, "token"),
			"Error": msg,
		})
	}

	password := r.PostForm.Get("password")
	if password != r.PostForm.Get("confirm") {
		reject("Passwords do not match.")
		return
	}
	hash, err := g.app.Auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, authsvc.ErrPasswordTooShort) || errors.Is(err, authsvc.ErrPasswordTooLong) {
			reject(err.Error())
			return
		}
		g.h.Fail(w, r, err)
		return
	}

	if err := g.app.Store.UpdatePassword(r.Context(), user.ID, hash); err != nil {
		g.h.Fail(w, r, err)
		return
	}
	g.h.Log().Info("Password reset", "user_id", user.ID)
	g.h.Flash(w, r, "Your password has been updated. Please log in.")
	g.h.Redirect(w, r, "auth.login_route")
}
