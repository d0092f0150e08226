// auth.go — вход пользователя: POST /api/v1/auth/login.
package handlers

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/bigkaa/reporthub/internal/api/errors"
)

// maxLoginBodySize — ограничение тела запроса входа.
const maxLoginBodySize = 4 << 10

// loginRequest — тело запроса входа.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse — ответ успешного входа.
type loginResponse struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	SiteName     string   `json:"site_name"`
	AllowedSites []string `json:"allowed_sites"`
}

// Login проверяет учётные данные и выдаёт access token.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBodySize))
	if err := dec.Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: ожидается JSON {email, password}")
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  res.AccessToken,
		TokenType:    res.TokenType,
		ExpiresIn:    res.ExpiresIn,
		SiteName:     res.SiteName,
		AllowedSites: res.AllowedSites,
	})
}
