package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/viking-faceauth/pkg/authentication"
	"github.com/mmcdole/viking-faceauth/pkg/faceauth"
	"github.com/mmcdole/viking-faceauth/pkg/logging"
	"github.com/mmcdole/viking-faceauth/pkg/users"
)

// openStore opens the configured credential store. The returned function
// releases it.
func openStore(ctx context.Context, config *Config) (users.Store, func(), error) {
	if config.DatabaseURL != "" {
		source, err := users.NewPostgresSource(ctx, config.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logging.App.Info("Using PostgreSQL credential store")
		return source, source.Close, nil
	}

	logging.App.Info("Using file credential store", "dir", config.UsersDir)
	return users.NewFileSource(config.UsersDir), func() {}, nil
}

// newFaceService builds the face service, with a landmark oracle when one
// is configured
func newFaceService(config *Config) (*faceauth.Service, error) {
	var oracle faceauth.LandmarkOracle
	if config.LandmarkURL != "" {
		remote, err := faceauth.NewRemoteOracle(config.LandmarkURL, time.Duration(config.LandmarkTimeout)*time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to create landmark client: %w", err)
		}
		oracle = faceauth.Serialized(remote)
	}

	return faceauth.NewService(oracle, faceauth.Config{
		Threshold:     config.Threshold,
		KeypointCount: config.keypointCount(),
	}), nil
}

// newAuthenticator wires store, cache and face service together
func newAuthenticator(ctx context.Context, config *Config) (*authentication.Authenticator, func(), error) {
	store, closeStore, err := openStore(ctx, config)
	if err != nil {
		return nil, nil, err
	}

	faces, err := newFaceService(config)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	repository := users.NewRepository(store, time.Duration(config.UserCacheTime)*time.Second)
	auth, err := authentication.NewAuthenticator(repository, nil, faces)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	return auth, closeStore, nil
}
