package auth

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment keys read by EnvProvider.
const (
	EnvEmail  = "TEAMCHAT_EMAIL"
	EnvName   = "TEAMCHAT_NAME"
	EnvAvatar = "TEAMCHAT_AVATAR"
)

// EnvProvider reads the identity from the process environment, with an
// optional .env file. Development stand-in for the hosted provider.
type EnvProvider struct {
	// DotenvFile, when non-empty, is loaded before the environment is
	// read. A missing file is not an error.
	DotenvFile string
}

func (p *EnvProvider) Identity() (Identity, error) {
	if p.DotenvFile != "" {
		if err := godotenv.Load(p.DotenvFile); err != nil && !os.IsNotExist(err) {
			return Identity{}, fmt.Errorf("auth: load %s: %w", p.DotenvFile, err)
		}
	}

	id := Identity{
		Email:  os.Getenv(EnvEmail),
		Name:   os.Getenv(EnvName),
		Avatar: os.Getenv(EnvAvatar),
	}
	return id.Validate()
}

// StaticProvider returns a fixed identity. Used by tests and the demo
// client's command line flags.
type StaticProvider struct {
	ID Identity
}

func (p *StaticProvider) Identity() (Identity, error) {
	return p.ID.Validate()
}
