package faceauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/viking-faceauth/pkg/descriptor"
)

// ErrNoFace is returned by the service when the oracle finds no face in an image
var ErrNoFace = fmt.Errorf("no face detected: %w", descriptor.ErrEmptyInput)

// LandmarkOracle detects faces in an image and returns the keypoints of each
// face found. An empty result means no face was detected.
type LandmarkOracle interface {
	Landmarks(ctx context.Context, image []byte) ([][]descriptor.Keypoint, error)
}

// OracleFunc adapts a function to LandmarkOracle
type OracleFunc func(ctx context.Context, image []byte) ([][]descriptor.Keypoint, error)

// Landmarks implements LandmarkOracle
func (f OracleFunc) Landmarks(ctx context.Context, image []byte) ([][]descriptor.Keypoint, error) {
	return f(ctx, image)
}

type serializedOracle struct {
	mu     sync.Mutex
	oracle LandmarkOracle
}

// Serialized wraps an oracle so that at most one Landmarks call runs at a time
func Serialized(oracle LandmarkOracle) LandmarkOracle {
	return &serializedOracle{oracle: oracle}
}

func (s *serializedOracle) Landmarks(ctx context.Context, image []byte) ([][]descriptor.Keypoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.oracle.Landmarks(ctx, image)
}

const defaultOracleTimeout = 30 * time.Second

// RemoteOracle calls an external landmark detection service. The service
// accepts a multipart image upload on /landmarks and answers with
// {"faces": [[{"x":..,"y":..,"z":..}, ...]]}.
type RemoteOracle struct {
	baseURL string
	client  *http.Client
}

// NewRemoteOracle creates a client for the landmark service at baseURL
func NewRemoteOracle(baseURL string, timeout time.Duration) (*RemoteOracle, error) {
	if baseURL == "" {
		return nil, errors.New("landmark service URL is required")
	}
	if timeout <= 0 {
		timeout = defaultOracleTimeout
	}
	return &RemoteOracle{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type landmarksResponse struct {
	Faces [][]descriptor.Keypoint `json:"faces"`
}

// Landmarks implements LandmarkOracle
func (o *RemoteOracle) Landmarks(ctx context.Context, image []byte) ([][]descriptor.Keypoint, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "capture.jpg")
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("writing image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/landmarks", &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("landmark request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading landmark response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("landmark service error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed landmarksResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing landmark response: %w", err)
	}
	return parsed.Faces, nil
}
