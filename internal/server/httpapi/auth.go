package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/server/services"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	Username     string `json:"username"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func toTokenResponse(p *services.TokenPair) tokenResponse {
	return tokenResponse{Username: p.Username, AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	password := []byte(req.Password)
	defer common.WipeByteArray(password)

	pair, err := h.users.Register(r.Context(), req.Username, password)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	h.logger.Info(r.Context(), "user registered", "username", pair.Username)
	writeJSON(w, http.StatusCreated, toTokenResponse(pair))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	password := []byte(req.Password)
	defer common.WipeByteArray(password)

	pair, err := h.users.Login(r.Context(), req.Username, password)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	pair, err := h.users.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenResponse(pair))
}
