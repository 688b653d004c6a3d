package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/viking-faceauth/pkg/authentication"
	"github.com/mmcdole/viking-faceauth/pkg/descriptor"
	"github.com/mmcdole/viking-faceauth/pkg/faceauth"
	"github.com/mmcdole/viking-faceauth/pkg/users"
)

var (
	enrolledFace = []descriptor.Keypoint{
		{X: 0.10, Y: 0.20}, {X: 0.40, Y: 0.20, Z: 0.01}, {X: 0.25, Y: 0.50, Z: 0.02},
		{X: 0.15, Y: 0.70}, {X: 0.35, Y: 0.70},
	}
	otherFace = []descriptor.Keypoint{
		{X: 0.90, Y: 0.10, Z: 0.30}, {X: 0.10, Y: 0.90, Z: -0.20}, {X: 0.50, Y: 0.50, Z: 0.50},
		{X: 0.20, Y: 0.30, Z: 0.90}, {X: 0.80, Y: 0.80},
	}
)

func newTestServer(t *testing.T, oracle faceauth.LandmarkOracle) (*Server, *users.MemorySource) {
	t.Helper()

	source := users.NewMemorySource()
	source.AddUser(&users.User{Username: "drake", PasswordHash: "GgHKjSw.CAsOo"}) // "billiards"

	auth, err := authentication.NewAuthenticator(
		users.NewRepository(source, time.Minute),
		nil,
		faceauth.NewService(oracle, faceauth.Config{}),
	)
	require.NoError(t, err)

	server, err := New(Config{Port: 0}, auth)
	require.NoError(t, err)
	return server, source
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestNewRequiresAuthenticator(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rec := doJSON(t, server.Handler(), http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["face_images"])
}

func TestRequestIDPassthrough(t *testing.T) {
	server, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestLogin(t *testing.T) {
	server, _ := newTestServer(t, nil)
	h := server.Handler()

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"valid credentials", LoginRequest{Username: "drake", Password: "billiards"}, http.StatusOK},
		{"wrong password", LoginRequest{Username: "drake", Password: "pool"}, http.StatusUnauthorized},
		{"unknown user", LoginRequest{Username: "nobody", Password: "billiards"}, http.StatusUnauthorized},
		{"missing password", LoginRequest{Username: "drake"}, http.StatusBadRequest},
		{"missing username", LoginRequest{Password: "billiards"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errInvalidRequestBody, errorMessage(t, rec))
	})
}

func TestFaceFlow(t *testing.T) {
	server, source := newTestServer(t, nil)
	h := server.Handler()

	t.Run("face login before enrollment", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/face-login", FaceRequest{Username: "drake", Keypoints: enrolledFace})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, faceauth.UserMessage, errorMessage(t, rec))
	})

	t.Run("enroll with wrong password", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/users/drake/face", FaceRequest{Password: "pool", Keypoints: enrolledFace})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("enroll", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/users/drake/face", FaceRequest{Password: "billiards", Keypoints: enrolledFace})
		require.Equal(t, http.StatusOK, rec.Code)

		var body AccountResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, AccountResponse{Username: "drake", FaceEnabled: true}, body)

		user, err := source.LoadUser("drake")
		require.NoError(t, err)
		assert.True(t, user.FaceEnabled)
	})

	t.Run("face login with same face", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/face-login", FaceRequest{Username: "drake", Keypoints: enrolledFace})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("face login with other face", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/face-login", FaceRequest{Username: "drake", Keypoints: otherFace})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, faceauth.UserMessage, errorMessage(t, rec))
	})

	t.Run("face login without sample", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/face-login", FaceRequest{Username: "drake"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, faceauth.UserMessage, errorMessage(t, rec))
	})

	t.Run("face login without username", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/face-login", FaceRequest{Keypoints: enrolledFace})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("image without oracle", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/face-login", FaceRequest{Username: "drake", Image: []byte("jpeg")})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		accepted, rejected := server.FaceLogins()
		assert.Equal(t, uint64(1), accepted)
		assert.Equal(t, uint64(3), rejected)
		assert.Equal(t, int32(0), server.ActiveRequests())
		assert.False(t, server.StartTime().IsZero())
	})

	t.Run("disable", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodDelete, "/api/v1/users/drake/face", FaceRequest{Password: "pool"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = doJSON(t, h, http.MethodDelete, "/api/v1/users/drake/face", FaceRequest{Password: "billiards"})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/face-login", FaceRequest{Username: "drake", Keypoints: enrolledFace})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestFaceLoginWithImage(t *testing.T) {
	oracle := faceauth.OracleFunc(func(ctx context.Context, image []byte) ([][]descriptor.Keypoint, error) {
		if string(image) == "drake.jpg" {
			return [][]descriptor.Keypoint{enrolledFace}, nil
		}
		return [][]descriptor.Keypoint{otherFace}, nil
	})
	server, _ := newTestServer(t, oracle)
	h := server.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/v1/users/drake/face", FaceRequest{Password: "billiards", Image: []byte("drake.jpg")})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/face-login", FaceRequest{Username: "drake", Image: []byte("drake.jpg")})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/face-login", FaceRequest{Username: "drake", Image: []byte("frogo.jpg")})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFaceLoginInProgress(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once

	oracle := faceauth.OracleFunc(func(ctx context.Context, image []byte) ([][]descriptor.Keypoint, error) {
		once.Do(func() { close(entered) })
		<-unblock
		return [][]descriptor.Keypoint{enrolledFace}, nil
	})
	server, _ := newTestServer(t, oracle)
	h := server.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/v1/users/drake/face", FaceRequest{Password: "billiards", Keypoints: enrolledFace})
	require.Equal(t, http.StatusOK, rec.Code)

	done := make(chan int)
	go func() {
		r := doJSON(t, h, http.MethodPost, "/api/v1/auth/face-login", FaceRequest{Username: "drake", Image: []byte("frame")})
		done <- r.Code
	}()

	<-entered
	assert.Equal(t, int32(1), server.ActiveRequests())

	for _, name := range []string{"drake", "DRAKE", "Drake"} {
		rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/face-login", FaceRequest{Username: name, Keypoints: enrolledFace})
		assert.Equal(t, http.StatusConflict, rec.Code, name)
	}

	close(unblock)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestUsernameCase(t *testing.T) {
	server, _ := newTestServer(t, nil)
	h := server.Handler()

	decodeAccount := func(t *testing.T, rec *httptest.ResponseRecorder) AccountResponse {
		t.Helper()
		require.Equal(t, http.StatusOK, rec.Code)
		var body AccountResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		return body
	}

	t.Run("login returns canonical name", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", LoginRequest{Username: "Drake", Password: "billiards"})
		assert.Equal(t, "drake", decodeAccount(t, rec).Username)
	})

	t.Run("enroll under a variant", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/users/DRAKE/face", FaceRequest{Password: "billiards", Keypoints: enrolledFace})
		assert.Equal(t, AccountResponse{Username: "drake", FaceEnabled: true}, decodeAccount(t, rec))
	})

	t.Run("face login returns canonical name", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/face-login", FaceRequest{Username: "DRAKE", Keypoints: enrolledFace})
		assert.Equal(t, AccountResponse{Username: "drake", FaceEnabled: true}, decodeAccount(t, rec))
	})

	t.Run("disable under a variant", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodDelete, "/api/v1/users/dRaKe/face", FaceRequest{Password: "billiards"})
		assert.Equal(t, AccountResponse{Username: "drake", FaceEnabled: false}, decodeAccount(t, rec))
	})
}

func TestInvalidUsernameRejected(t *testing.T) {
	server, _ := newTestServer(t, nil)
	h := server.Handler()
	forged := "x\nop=face-login user=admin status=success"

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"login", http.MethodPost, "/api/v1/auth/login", LoginRequest{Username: forged, Password: "billiards"}},
		{"face login", http.MethodPost, "/api/v1/auth/face-login", FaceRequest{Username: forged, Keypoints: enrolledFace}},
		{"enroll", http.MethodPost, "/api/v1/users/x%0Aadmin/face", FaceRequest{Password: "billiards", Keypoints: enrolledFace}},
		{"disable", http.MethodDelete, "/api/v1/users/x%0Dadmin/face", FaceRequest{Password: "billiards"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, users.ErrInvalidUsername.Error(), errorMessage(t, rec))
		})
	}
}

func TestMatch(t *testing.T) {
	server, _ := newTestServer(t, nil)
	h := server.Handler()

	a, err := descriptor.Extract(enrolledFace)
	require.NoError(t, err)
	b, err := descriptor.Extract(otherFace)
	require.NoError(t, err)

	decode := func(rec *httptest.ResponseRecorder) descriptor.MatchResult {
		var result descriptor.MatchResult
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
		return result
	}

	t.Run("identical", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/face/match", MatchRequest{A: a, B: a})
		require.Equal(t, http.StatusOK, rec.Code)
		result := decode(rec)
		assert.Zero(t, result.Distance)
		assert.True(t, result.IsMatch)
	})

	t.Run("different with custom threshold", func(t *testing.T) {
		huge := 1e9
		rec := doJSON(t, h, http.MethodPost, "/api/v1/face/match", MatchRequest{A: a, B: b, Threshold: &huge})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode(rec).IsMatch)

		rec = doJSON(t, h, http.MethodPost, "/api/v1/face/match", MatchRequest{A: a, B: b})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decode(rec).IsMatch)
	})

	t.Run("length mismatch", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/face/match", MatchRequest{A: a, B: a[:3]})
		require.Equal(t, http.StatusOK, rec.Code)
		result := decode(rec)
		assert.Equal(t, descriptor.MaxDistance, result.Distance)
		assert.False(t, result.IsMatch)
	})

	t.Run("negative threshold", func(t *testing.T) {
		neg := -1.0
		rec := doJSON(t, h, http.MethodPost, "/api/v1/face/match", MatchRequest{A: a, B: a, Threshold: &neg})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
