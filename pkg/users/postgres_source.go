package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mmcdole/viking-faceauth/pkg/descriptor"
)

const defaultQueryTimeout = 5 * time.Second

// PostgresSource implements Store on a PostgreSQL table. Descriptors are
// stored as float8[] so they round-trip without loss of precision.
type PostgresSource struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresSource connects to the database and makes sure the credentials
// table exists
func NewPostgresSource(ctx context.Context, connString string) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initializing database schema: %w", err)
	}

	return &PostgresSource{pool: pool, timeout: defaultQueryTimeout}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS credentials (
			username TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			face_descriptor DOUBLE PRECISION[],
			face_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// Close releases all pooled connections
func (s *PostgresSource) Close() {
	s.pool.Close()
}

// LoadUser implements Source
func (s *PostgresSource) LoadUser(username string) (*User, error) {
	username = CanonicalUsername(username)
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var (
		hash    string
		face    []float64
		enabled bool
	)
	err := s.pool.QueryRow(ctx,
		`SELECT password_hash, face_descriptor, face_enabled FROM credentials WHERE username = $1`,
		username,
	).Scan(&hash, &face, &enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if hash == "" {
		return nil, ErrInvalidHash
	}

	return &User{
		Username:       username,
		PasswordHash:   hash,
		FaceDescriptor: descriptor.Descriptor(face),
		FaceEnabled:    enabled,
	}, nil
}

// SaveUser implements Store
func (s *PostgresSource) SaveUser(user *User) error {
	if err := ValidateUsername(user.Username); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var face []float64
	if len(user.FaceDescriptor) > 0 {
		face = []float64(user.FaceDescriptor)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO credentials (username, password_hash, face_descriptor, face_enabled, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (username) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			face_descriptor = EXCLUDED.face_descriptor,
			face_enabled = EXCLUDED.face_enabled,
			updated_at = NOW()
	`, CanonicalUsername(user.Username), user.PasswordHash, face, user.FaceEnabled)
	if err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	return nil
}
