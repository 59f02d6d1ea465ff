package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dphs-ocr/apiserver/config"
	"github.com/dphs-ocr/apiserver/internal/services"
	"github.com/dphs-ocr/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const contextUserKey contextKey = "authUser"

// AuthUser is the identity a verified token attaches to the request context.
type AuthUser struct {
	UserID   string
	Username string
	Role     string
}

// authClaims is the JWT payload issued at login.
type authClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AuthHandler provides login, profile, and token-verification endpoints.
type AuthHandler struct {
	userService *services.UserService
	secret      []byte
	tokenTTL    time.Duration
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, cfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		secret:      []byte(cfg.Secret),
		tokenTTL:    cfg.Expiry,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, userService *services.UserService, cfg config.JWTConfig) {
	handler := NewAuthHandler(userService, cfg)

	r.Post("/login", handler.Login)
	r.With(handler.RequireAuth).Get("/profile", handler.Profile)
	r.Post("/verify", handler.Verify)
}

// RequireAuth enforces bearer authentication and injects the token's
// identity into the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required. Please provide a valid token.")
			return
		}

		claims, err := parseToken(tokenString, h.secret)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "Token has expired. Please login again.")
				return
			}
			writeError(w, http.StatusUnauthorized, "Invalid token. Please login again.")
			return
		}

		user := AuthUser{UserID: claims.UserID, Username: claims.Username, Role: claims.Role}
		ctx := context.WithValue(r.Context(), contextUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies credentials, stamps the last login, and returns a JWT.
// Unknown usernames and wrong passwords produce the same message so the
// endpoint cannot be used to enumerate accounts.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "Password is required")
		return
	}

	user, err := h.userService.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		writeError(w, http.StatusInternalServerError, "An error occurred during login")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	now := time.Now()
	if err := h.userService.RecordLogin(r.Context(), user.ID, now); err != nil {
		writeError(w, http.StatusInternalServerError, "An error occurred during login")
		return
	}
	user.LastLogin = &now

	token, err := h.issueToken(user.ID, user.Username, user.Role, now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "An error occurred during login")
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	}, "Login successful")
}

// Profile returns the authenticated user's record. A valid token whose user
// has since been deleted yields 404.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	authUser, ok := r.Context().Value(contextUserKey).(AuthUser)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required. Please provide a valid token.")
		return
	}

	user, err := h.userService.GetByID(r.Context(), authUser.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "An error occurred while retrieving profile")
		return
	}

	writeSuccess(w, http.StatusOK, user, "Profile retrieved successfully")
}

// Verify validates the presented bearer token and returns its user.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	tokenString, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	claims, err := parseToken(tokenString, h.secret)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	user, err := h.userService.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "An error occurred during token verification")
		return
	}

	writeSuccess(w, http.StatusOK, user, "Token is valid")
}

func (h *AuthHandler) issueToken(userID, username, role string, now time.Time) (string, error) {
	claims := authClaims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.secret)
}

func parseToken(tokenString string, secret []byte) (authClaims, error) {
	claims := authClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return authClaims{}, err
	}
	if !token.Valid {
		return authClaims{}, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return authClaims{}, errors.New("missing user id")
	}
	return claims, nil
}

func bearerToken(r *http.Request) (string, bool) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", false
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
