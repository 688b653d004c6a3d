package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmcdole/viking-faceauth/pkg/authentication"
	"github.com/mmcdole/viking-faceauth/pkg/descriptor"
	"github.com/mmcdole/viking-faceauth/pkg/faceauth"
	"github.com/mmcdole/viking-faceauth/pkg/logging"
	"github.com/mmcdole/viking-faceauth/pkg/users"
)

var (
	username      string
	password      string
	keypointsFile string
	imageFile     string
	threshold     float64
)

// readKeypoints reads a JSON array of {"x","y","z"} keypoints
func readKeypoints(path string) ([]descriptor.Keypoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keypoints: %w", err)
	}
	var keypoints []descriptor.Keypoint
	if err := json.Unmarshal(data, &keypoints); err != nil {
		return nil, fmt.Errorf("parsing keypoints %s: %w", path, err)
	}
	return keypoints, nil
}

// faceInput builds the face sample from --keypoints or --image
func faceInput() (authentication.FaceInput, error) {
	switch {
	case keypointsFile != "" && imageFile != "":
		return authentication.FaceInput{}, errors.New("use either --keypoints or --image")
	case keypointsFile != "":
		keypoints, err := readKeypoints(keypointsFile)
		return authentication.FaceInput{Keypoints: keypoints}, err
	case imageFile != "":
		image, err := os.ReadFile(imageFile)
		if err != nil {
			return authentication.FaceInput{}, fmt.Errorf("reading image: %w", err)
		}
		return authentication.FaceInput{Image: image}, nil
	}
	return authentication.FaceInput{}, errors.New("a face sample is required (use --keypoints or --image)")
}

// readPassword returns --password, or the first line of in
func readPassword(in io.Reader) (string, error) {
	if password != "" {
		return password, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password is required (use --password or stdin)")
	}
	return line, nil
}

func requireUser() error {
	if username == "" {
		return errors.New("--user is required")
	}
	return nil
}

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll or replace a user's face credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		input, err := faceInput()
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

		auth, closeStore, err := newAuthenticator(cmd.Context(), config)
		if err != nil {
			return err
		}
		defer closeStore()

		if err := auth.EnrollFace(cmd.Context(), username, pw, input); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Face enrolled for %s\n", users.CanonicalUsername(username))
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a face sample against a user's enrolled face",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		input, err := faceInput()
		if err != nil {
			return err
		}

		config, err := loadConfig()
		if err != nil {
			return err
		}
		defer logging.Close()

		auth, closeStore, err := newAuthenticator(cmd.Context(), config)
		if err != nil {
			return err
		}
		defer closeStore()

		if err := auth.AuthenticateFace(cmd.Context(), username, input); err != nil {
			if errors.Is(err, authentication.ErrInvalidCredentials) || faceauth.IsUserError(err) {
				return fmt.Errorf("%s (%w)", faceauth.UserMessage, err)
			}
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "match")
		return nil
	},
}

var disableFaceCmd = &cobra.Command{
	Use:   "disable-face",
	Short: "Remove a user's face credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
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

		auth, closeStore, err := newAuthenticator(cmd.Context(), config)
		if err != nil {
			return err
		}
		defer closeStore()

		if err := auth.DisableFace(username, pw); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Face login disabled for %s\n", users.CanonicalUsername(username))
		return nil
	},
}

var matchCmd = &cobra.Command{
	Use:   "match <keypoints-a.json> <keypoints-b.json>",
	Short: "Print the descriptor distance between two keypoint files",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		descriptors := make([]descriptor.Descriptor, 2)
		for i, path := range args {
			keypoints, err := readKeypoints(path)
			if err != nil {
				return err
			}
			descriptors[i], err = descriptor.Extract(keypoints)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}

		result := descriptor.Match(descriptors[0], descriptors[1], threshold)
		fmt.Fprintf(cmd.OutOrStdout(), "distance: %.6f\nmatch: %t\n", result.Distance, result.IsMatch)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{enrollCmd, verifyCmd, disableFaceCmd} {
		cmd.Flags().StringVarP(&username, "user", "u", "", "account name")
	}
	for _, cmd := range []*cobra.Command{enrollCmd, verifyCmd} {
		cmd.Flags().StringVarP(&keypointsFile, "keypoints", "k", "", "JSON file with the face keypoints")
		cmd.Flags().StringVarP(&imageFile, "image", "i", "", "image file, requires landmark_url")
	}
	for _, cmd := range []*cobra.Command{enrollCmd, disableFaceCmd} {
		cmd.Flags().StringVarP(&password, "password", "p", "", "account password, read from stdin if empty")
	}
	matchCmd.Flags().Float64VarP(&threshold, "threshold", "t", descriptor.DefaultThreshold, "match threshold")

	rootCmd.AddCommand(enrollCmd, verifyCmd, disableFaceCmd, matchCmd)
}
