package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"tasktrack/api"
	"tasktrack/auth"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string    `json:"token"`
	User  *api.User `json:"user"`
}

func (a *app) register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		errorJSON(w, http.StatusBadRequest, "name, email and password are required")
		return
	}

	role := api.RoleUser
	if req.Role != "" {
		parsed, ok := api.ParseRole(req.Role)
		if !ok {
			errorJSON(w, http.StatusBadRequest, "invalid role")
			return
		}
		role = parsed
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		logrus.WithError(err).Error("password hashing failed")
		errorJSON(w, http.StatusInternalServerError, "server error")
		return
	}

	user, err := a.users.Create(ctx, req.Name, req.Email, hash, role)
	if err != nil {
		failJSON(w, err)
		return
	}

	token, err := a.tokens.Issue(user.ID, user.Role)
	if err != nil {
		logrus.WithError(err).Error("token issue failed")
		errorJSON(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (a *app) login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	user, err := a.users.FindByEmail(ctx, req.Email)
	if err != nil {
		failJSON(w, err)
		return
	}
	// One message for unknown email and wrong password.
	if user == nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
		errorJSON(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := a.tokens.Issue(user.ID, user.Role)
	if err != nil {
		logrus.WithError(err).Error("token issue failed")
		errorJSON(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (a *app) me(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		errorJSON(w, http.StatusUnauthorized, api.ErrUnauthenticated.Error())
		return
	}

	user, err := a.users.FindByID(ctx, identity.UserID)
	if err != nil {
		failJSON(w, err)
		return
	}
	if user == nil {
		errorJSON(w, http.StatusNotFound, api.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *app) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		errorJSON(w, http.StatusUnauthorized, api.ErrUnauthenticated.Error())
		return
	}
	if err := auth.RequireRole(identity, api.RoleAdmin); err != nil {
		failJSON(w, err)
		return
	}

	users, err := a.users.List(ctx)
	if err != nil {
		failJSON(w, err)
		return
	}
	if users == nil {
		users = []api.User{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(users),
		"users": users,
	})
}
