package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmcdole/viking-faceauth/pkg/authentication"
	"github.com/mmcdole/viking-faceauth/pkg/descriptor"
	"github.com/mmcdole/viking-faceauth/pkg/faceauth"
	"github.com/mmcdole/viking-faceauth/pkg/logging"
	"github.com/mmcdole/viking-faceauth/pkg/users"
)

// LoginRequest is the body of a password login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// FaceRequest carries a live face sample. Image is base64 in JSON.
type FaceRequest struct {
	Username  string                `json:"username,omitempty"`
	Password  string                `json:"password,omitempty"`
	Keypoints []descriptor.Keypoint `json:"keypoints,omitempty"`
	Image     []byte                `json:"image,omitempty"`
}

// AccountResponse describes an account after a successful operation
type AccountResponse struct {
	Username    string `json:"username"`
	FaceEnabled bool   `json:"face_enabled"`
}

// MatchRequest compares two descriptors
type MatchRequest struct {
	A         descriptor.Descriptor `json:"a"`
	B         descriptor.Descriptor `json:"b"`
	Threshold *float64              `json:"threshold,omitempty"`
}

func (f FaceRequest) input() authentication.FaceInput {
	return authentication.FaceInput{Keypoints: f.Keypoints, Image: f.Image}
}

// checkUsername rejects names no store can hold before they reach the logs
func checkUsername(w http.ResponseWriter, username string) bool {
	if err := users.ValidateUsername(username); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"face_images": s.auth.Faces().HasOracle(),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if !checkUsername(w, req.Username) {
		return
	}

	user, err := s.auth.Authenticate(req.Username, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, authentication.ErrInvalidCredentials.Error())
		return
	}

	respondJSON(w, http.StatusOK, AccountResponse{Username: user.Username, FaceEnabled: user.FaceEnabled})
}

func (s *Server) handleFaceLogin(w http.ResponseWriter, r *http.Request) {
	var req FaceRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" {
		respondError(w, http.StatusBadRequest, "username is required")
		return
	}
	if !checkUsername(w, req.Username) {
		return
	}
	if !s.checkImageSupport(w, req) {
		return
	}

	err := s.auth.AuthenticateFace(r.Context(), req.Username, req.input())
	if err == nil {
		s.faceAccepted.Add(1)
		respondJSON(w, http.StatusOK, AccountResponse{Username: users.CanonicalUsername(req.Username), FaceEnabled: true})
		return
	}

	if !errors.Is(err, authentication.ErrAttemptInProgress) {
		s.faceRejected.Add(1)
	}
	s.respondFaceError(w, req.Username, err)
}

func (s *Server) handleEnrollFace(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if !checkUsername(w, username) {
		return
	}

	var req FaceRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Password == "" {
		respondError(w, http.StatusBadRequest, "password is required")
		return
	}
	if !s.checkImageSupport(w, req) {
		return
	}

	if err := s.auth.EnrollFace(r.Context(), username, req.Password, req.input()); err != nil {
		s.respondFaceError(w, username, err)
		return
	}

	respondJSON(w, http.StatusOK, AccountResponse{Username: users.CanonicalUsername(username), FaceEnabled: true})
}

func (s *Server) handleDisableFace(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if !checkUsername(w, username) {
		return
	}

	var req FaceRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Password == "" {
		respondError(w, http.StatusBadRequest, "password is required")
		return
	}

	if err := s.auth.DisableFace(username, req.Password); err != nil {
		s.respondFaceError(w, username, err)
		return
	}

	respondJSON(w, http.StatusOK, AccountResponse{Username: users.CanonicalUsername(username), FaceEnabled: false})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	threshold := s.auth.Faces().Threshold()
	if req.Threshold != nil {
		if *req.Threshold < 0 {
			respondError(w, http.StatusBadRequest, "threshold must not be negative")
			return
		}
		threshold = *req.Threshold
	}

	respondJSON(w, http.StatusOK, descriptor.Match(req.A, req.B, threshold))
}

func (s *Server) checkImageSupport(w http.ResponseWriter, req FaceRequest) bool {
	if len(req.Keypoints) == 0 && len(req.Image) > 0 && !s.auth.Faces().HasOracle() {
		respondError(w, http.StatusBadRequest, "image input is not enabled, send keypoints")
		return false
	}
	return true
}

// respondFaceError maps authentication failures to responses. Face failures
// always carry the fixed user message.
func (s *Server) respondFaceError(w http.ResponseWriter, username string, err error) {
	switch {
	case errors.Is(err, authentication.ErrAttemptInProgress):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, authentication.ErrInvalidCredentials), faceauth.IsUserError(err):
		respondError(w, http.StatusUnauthorized, faceauth.UserMessage)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, faceauth.UserMessage)
	default:
		logging.App.Error("Face operation failed", "username", username, "error", err)
		respondError(w, http.StatusInternalServerError, faceauth.UserMessage)
	}
}
