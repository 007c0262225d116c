package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/example/stockroom/internal/api/middleware"
	"github.com/example/stockroom/internal/auth"
	"github.com/example/stockroom/internal/console"
	"github.com/example/stockroom/internal/domain/profile"
	"github.com/example/stockroom/internal/gate"
	"github.com/example/stockroom/internal/gateway"
	"github.com/google/uuid"
)

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	gw       gateway.Gateway
	tokens   *auth.TokenService
	registry *console.Registry
}

func NewAuthHandlers(gw gateway.Gateway, tokens *auth.TokenService, registry *console.Registry) *AuthHandlers {
	return &AuthHandlers{
		gw:       gw,
		tokens:   tokens,
		registry: registry,
	}
}

// SignupRequest represents the signup request body
type SignupRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	User    UserResponse `json:"user"`
	State   gate.State   `json:"state"`
	Message string       `json:"message,omitempty"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Role      profile.Role   `json:"role"`
	Status    profile.Status `json:"status"`
	IsActive  bool           `json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
}

func newUserResponse(p *profile.Profile) UserResponse {
	return UserResponse{
		ID:        p.ID,
		Email:     p.Email,
		Role:      p.EffectiveRole(),
		Status:    p.Status,
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
	}
}

// Signup registers a pending vendor and signs it in. The account cannot load
// inventory until an admin activates it.
func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	p, err := profile.NewPending(req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		switch {
		case errors.Is(err, profile.ErrInvalidEmail),
			errors.Is(err, profile.ErrPasswordMismatch),
			errors.Is(err, auth.ErrPasswordTooShort):
			respondJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			respondJSONError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	if err := h.gw.CreateProfile(r.Context(), *p); err != nil {
		if errors.Is(err, profile.ErrEmailTaken) {
			respondJSONError(w, "Email already registered", http.StatusConflict)
			return
		}
		log.Printf("[API] Signup for %s failed: %v", p.Email, err)
		respondJSONError(w, "Could not create account", http.StatusBadGateway)
		return
	}

	if err := h.startSession(w, r, p); err != nil {
		log.Printf("[API] Session for %s failed: %v", p.Email, err)
		respondJSONError(w, "Account created but sign-in failed", http.StatusBadGateway)
		return
	}

	respondJSON(w, http.StatusCreated, AuthResponse{
		User:    newUserResponse(p),
		State:   gate.Pending,
		Message: "Account created, waiting for approval",
	})
}

// Login checks the credentials, opens a session and runs the page load for
// it. A rejected account is signed straight back out.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	p, err := h.gw.GetProfileByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			respondJSONError(w, profile.ErrInvalidCredentials.Error(), http.StatusUnauthorized)
			return
		}
		log.Printf("[API] Profile lookup failed: %v", err)
		respondJSONError(w, "Could not sign in", http.StatusBadGateway)
		return
	}

	if !auth.CheckPassword(req.Password, p.PasswordHash) {
		respondJSONError(w, profile.ErrInvalidCredentials.Error(), http.StatusUnauthorized)
		return
	}

	sessionID := uuid.New().String()
	if err := h.createSession(w, r, sessionID, p); err != nil {
		log.Printf("[API] Session for %s failed: %v", p.Email, err)
		respondJSONError(w, "Could not sign in", http.StatusBadGateway)
		return
	}

	_, res, err := h.registry.Open(r.Context(), sessionID)
	if err != nil {
		respondJSONError(w, err.Error(), http.StatusBadGateway)
		return
	}
	if res.State == gate.Rejected {
		clearAuthCookies(w)
		respondJSON(w, http.StatusForbidden, AuthResponse{
			User:    newUserResponse(p),
			State:   res.State,
			Message: "Account rejected",
		})
		return
	}

	respondJSON(w, http.StatusOK, AuthResponse{
		User:    newUserResponse(p),
		State:   res.State,
		Message: "Login successful",
	})
}

// Logout closes the console and the session. Cookies are cleared even when
// the request carries no valid session.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := middleware.GetSessionID(r.Context()); sessionID != "" {
		h.registry.Close(sessionID)
		if err := h.gw.SignOut(r.Context(), sessionID); err != nil {
			log.Printf("[API] Sign out of session %s failed: %v", sessionID, err)
		}
	}

	clearAuthCookies(w)

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Logout successful",
	})
}

// Me returns the current authenticated user's information
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	p, err := h.gw.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			respondJSONError(w, "User not found", http.StatusNotFound)
			return
		}
		respondJSONError(w, "Could not load profile", http.StatusBadGateway)
		return
	}

	respondJSON(w, http.StatusOK, newUserResponse(p))
}

// Helper methods

func (h *AuthHandlers) startSession(w http.ResponseWriter, r *http.Request, p *profile.Profile) error {
	return h.createSession(w, r, uuid.New().String(), p)
}

func (h *AuthHandlers) createSession(w http.ResponseWriter, r *http.Request, sessionID string, p *profile.Profile) error {
	token, expiresAt, err := h.tokens.Issue(sessionID, p.ID, p.Email)
	if err != nil {
		return err
	}

	err = h.gw.CreateSession(r.Context(), gateway.Session{
		ID:        sessionID,
		UserID:    p.ID,
		Email:     p.Email,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

func clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
