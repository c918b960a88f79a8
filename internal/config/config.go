// Package config translates the CLI's required startup flags into a
// ServerConfig the rest of the supervisor builds from. Parsed with
// github.com/spf13/pflag (cmd/steamrunner wraps Parse in a cobra command)
// rather than the ambient platform/config's viper loader, since these are one-shot required
// startup parameters (app id, install location, control API address/auth),
// not environment-reloadable settings. Grounded on cobra flag idiom from
// teranos-QNTX's cmd/qntx/commands and Nehonix-Team-XyPriss's internal/cli.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
)

// AuthType selects how ServerConfig authenticates to the game's control API.
type AuthType string

const (
	AuthBasic AuthType = "basic"
	AuthToken AuthType = "token"
)

// ServerConfig is the fully validated set of parameters needed to build a
// managed server and engine instance.
type ServerConfig struct {
	AppID      int
	SteamPath  string
	InstallDir string
	APIBaseURL string
	AuthType   AuthType
	APIUsername string
	APIPassword string
	APIToken    string
	// GameArgs are the positional arguments and everything after "--",
	// passed verbatim to the game server executable. Unrecognized flags
	// before "--" are not included (see Parse).
	GameArgs []string
}

// ErrConfiguration marks a user-facing configuration error: missing or
// mutually-exclusive required flags. main.go exits 1 on this class of
// error.
var ErrConfiguration = errors.New("configuration error")

// Parse parses args (typically os.Args[1:]) into a ServerConfig.
// Positional arguments and everything after a literal "--" are collected
// as GameArgs. Unrecognized flags before "--" are not rejected, but they
// are dropped, together with a non-flag value that follows one; they do
// not reach GameArgs.
func Parse(args []string) (ServerConfig, error) {
	flagArgs, gameArgs := splitOnTerminator(args)

	fs := pflag.NewFlagSet("steamrunner", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true

	appID := fs.Int("app-id", 0, "Steam application id (required)")
	steamPath := fs.String("steam-path", "", "Steam library root containing steamapps/ (mutually exclusive with --install-dir)")
	installDir := fs.String("install-dir", "", "Game install directory (mutually exclusive with --steam-path)")
	apiBaseURL := fs.String("api-base-url", "", "Base URL of the game's REST control API (required)")
	authType := fs.String("auth-type", "basic", "Control API auth type: basic|token")
	apiUsername := fs.String("api-username", "", "Control API username (required if --auth-type=basic)")
	apiPassword := fs.String("api-password", "", "Control API password (required if --auth-type=basic)")
	apiToken := fs.String("api-token", "", "Control API bearer token (required if --auth-type=token)")

	if err := fs.Parse(flagArgs); err != nil {
		return ServerConfig{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	cfg := ServerConfig{
		AppID:       *appID,
		SteamPath:   *steamPath,
		InstallDir:  *installDir,
		APIBaseURL:  *apiBaseURL,
		AuthType:    AuthType(*authType),
		APIUsername: *apiUsername,
		APIPassword: *apiPassword,
		APIToken:    *apiToken,
		GameArgs:    append(fs.Args(), gameArgs...),
	}

	if err := cfg.validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// splitOnTerminator splits args on the first literal "--", per the
// conventional POSIX double-dash end-of-options marker: everything after
// it is passed verbatim as game server arguments, avoiding any ambiguity
// between steamrunner's own flags and the game's.
func splitOnTerminator(args []string) (flagArgs, gameArgs []string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

func (c ServerConfig) validate() error {
	if c.AppID == 0 {
		return fmt.Errorf("%w: --app-id is required", ErrConfiguration)
	}
	if (c.SteamPath == "") == (c.InstallDir == "") {
		return fmt.Errorf("%w: exactly one of --steam-path or --install-dir is required", ErrConfiguration)
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("%w: --api-base-url is required", ErrConfiguration)
	}

	switch c.AuthType {
	case AuthBasic:
		if c.APIUsername == "" || c.APIPassword == "" {
			return fmt.Errorf("%w: --api-username and --api-password are required for --auth-type=basic", ErrConfiguration)
		}
	case AuthToken:
		if c.APIToken == "" {
			return fmt.Errorf("%w: --api-token is required for --auth-type=token", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: --auth-type must be basic or token", ErrConfiguration)
	}

	return nil
}
