package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmcdole/viking-faceauth/pkg/authentication"
	"github.com/mmcdole/viking-faceauth/pkg/logging"
	"github.com/mmcdole/viking-faceauth/pkg/users"
)

var algorithm string

func newHasher(name string) (authentication.PasswordHasher, error) {
	switch name {
	case "argon2id", "":
		return authentication.NewArgon2ID(), nil
	case "bcrypt":
		return authentication.NewBcrypt(), nil
	case "crypt":
		return authentication.NewUnixCrypt(), nil
	}
	return nil, fmt.Errorf("unknown algorithm %q (argon2id, bcrypt, crypt)", name)
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Print a password hash for a user record",
	RunE: func(cmd *cobra.Command, args []string) error {
		hasher, err := newHasher(algorithm)
		if err != nil {
			return err
		}
		pw, err := readPassword(cmd.InOrStdin())
		if err != nil {
			return err
		}
		hash, err := hasher.Hash(pw)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var addUserCmd = &cobra.Command{
	Use:   "add-user",
	Short: "Create a user or reset its password",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		if err := users.ValidateUsername(username); err != nil {
			return err
		}
		hasher, err := newHasher(algorithm)
		if err != nil {
			return err
		}
		pw, err := readPassword(cmd.InOrStdin())
		if err != nil {
			return err
		}

		config, err := loadConfig()
		if err != nil {
			return err
		}
		defer logging.Close()

		store, closeStore, err := openStore(cmd.Context(), config)
		if err != nil {
			return err
		}
		defer closeStore()

		hash, err := hasher.Hash(pw)
		if err != nil {
			return err
		}

		name := users.CanonicalUsername(username)

		// Keep an existing face credential
		user, err := store.LoadUser(name)
		switch {
		case err == nil:
			user.PasswordHash = hash
		case errors.Is(err, users.ErrUserNotFound):
			user = &users.User{Username: name, PasswordHash: hash}
		default:
			return err
		}

		if err := store.SaveUser(user); err != nil {
			return err
		}
		logging.Access.LogAuth("add-user", name, "success")
		fmt.Fprintf(cmd.OutOrStdout(), "Saved user %s\n", name)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{hashPasswordCmd, addUserCmd} {
		cmd.Flags().StringVarP(&algorithm, "algorithm", "a", "argon2id", "hash algorithm: argon2id, bcrypt or crypt")
		cmd.Flags().StringVarP(&password, "password", "p", "", "password, read from stdin if empty")
	}
	addUserCmd.Flags().StringVarP(&username, "user", "u", "", "account name")

	rootCmd.AddCommand(hashPasswordCmd, addUserCmd)
}
