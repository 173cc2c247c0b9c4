package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/castellan/internal/auth"
	"github.com/prn-tf/castellan/internal/domain"
	"github.com/prn-tf/castellan/internal/service"
)

// AuthHandler handles registration, login, and profile self-service.
type AuthHandler struct {
	authService *service.AuthService
	logger      zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger.With().Str("handler", "auth").Logger(),
	}
}

// RegisterPublicRoutes registers the unauthenticated auth routes.
func (h *AuthHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/api/Auth/register", h.handleRegister)
	r.Post("/api/Auth/login", h.handleLogin)
}

// RegisterProtectedRoutes registers routes that require a valid token.
func (h *AuthHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/api/Auth/me", h.handleMe)
	r.Post("/api/Auth/updateProfileInfo", h.handleUpdateProfile)
	r.Post("/api/Auth/updatePassword", h.handleUpdatePassword)
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	output, err := h.authService.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, output.User.ToProfile())
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the flat profile-plus-token body the web client expects.
type loginResponse struct {
	domain.Profile
	Token string `json:"token"`
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	output, err := h.authService.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Profile: output.User.ToProfile(),
		Token:   output.Token,
	})
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	authCtx, err := auth.RequireAuth(r.Context())
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}

	user, err := h.authService.GetProfile(r.Context(), authCtx.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user.ToProfile())
}

type updateProfileRequest struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *AuthHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.requireSelf(r, req.ID); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.authService.UpdateProfile(r.Context(), service.UpdateProfileInput{
		UserID: req.ID,
		Name:   req.Name,
		Email:  req.Email,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user.ToProfile())
}

type updatePasswordRequest struct {
	UserID             int64  `json:"userId"`
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

func (h *AuthHandler) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.requireSelf(r, req.UserID); err != nil {
		writeError(w, err)
		return
	}

	if err := h.authService.UpdatePassword(r.Context(), service.UpdatePasswordInput{
		UserID:          req.UserID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmNewPassword,
	}); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, nil)
}

// requireSelf checks the target id in the request body against the
// authenticated user. Profile and password updates are self-service only.
func (h *AuthHandler) requireSelf(r *http.Request, targetID int64) error {
	authCtx, err := auth.RequireAuth(r.Context())
	if err != nil {
		return domain.ErrForbidden
	}

	if targetID != authCtx.UserID {
		h.logger.Warn().
			Int64("user_id", authCtx.UserID).
			Int64("target_id", targetID).
			Msg("attempt to modify another user's account")
		return domain.ErrForbidden
	}

	return nil
}
