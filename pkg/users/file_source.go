package users

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/afero"

	"github.com/mmcdole/viking-faceauth/pkg/logging"
)

// FileSource implements Store with one JSON file per user, sharded by the
// first character of the canonical username: <root>/d/drake.json
type FileSource struct {
	fs      afero.Fs
	rootDir string
}

// NewFileSource creates a FileSource rooted at rootDir on the OS filesystem
func NewFileSource(rootDir string) *FileSource {
	return NewFileSourceFs(afero.NewOsFs(), rootDir)
}

// NewFileSourceFs creates a FileSource on an arbitrary afero filesystem
func NewFileSourceFs(fs afero.Fs, rootDir string) *FileSource {
	return &FileSource{
		fs:      fs,
		rootDir: rootDir,
	}
}

// ValidateUsername rejects names that are empty or could escape the store
func ValidateUsername(username string) error {
	if username == "" || len(username) > 64 {
		return ErrInvalidUsername
	}
	for _, r := range username {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' || r == '@') {
			return ErrInvalidUsername
		}
	}
	if strings.HasPrefix(username, ".") {
		return ErrInvalidUsername
	}
	return nil
}

// userPath returns the full path to a user file
func (s *FileSource) userPath(username string) (string, error) {
	if err := ValidateUsername(username); err != nil {
		return "", err
	}
	name := CanonicalUsername(username)
	first, _ := utf8.DecodeRuneInString(name)
	return filepath.Join(s.rootDir, string(first), name+".json"), nil
}

// LoadUser implements Source
func (s *FileSource) LoadUser(username string) (*User, error) {
	path, err := s.userPath(username)
	if err != nil {
		logging.App.Debug("Invalid username provided", "username", username)
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.App.Debug("User file not found", "username", username, "path", path)
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("reading user file: %w", err)
	}

	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		logging.App.Debug("Error parsing user file", "username", username, "path", path, "error", err)
		return nil, fmt.Errorf("parsing user file: %w", err)
	}
	if user.PasswordHash == "" {
		logging.App.Debug("Password hash missing in user file", "username", username, "path", path)
		return nil, ErrInvalidHash
	}
	user.Username = CanonicalUsername(username)

	logging.App.Debug("Loaded user", "username", username, "face_enabled", user.FaceEnabled)
	return &user, nil
}

// SaveUser implements Store. The record is written to a temporary file and
// renamed into place so readers never observe a partial record.
func (s *FileSource) SaveUser(user *User) error {
	path, err := s.userPath(user.Username)
	if err != nil {
		return err
	}

	record := *user
	record.Username = CanonicalUsername(user.Username)
	data, err := json.MarshalIndent(&record, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}

	if err := s.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating user directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmpPath, data, 0600); err != nil {
		return fmt.Errorf("writing user file: %w", err)
	}
	if err := s.fs.Rename(tmpPath, path); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("replacing user file: %w", err)
	}

	logging.App.Debug("Saved user", "username", user.Username, "path", path)
	return nil
}
