package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read when no env file is named explicitly.
const DefaultEnvFile = ".env"

// LoadEnv loads variables from the given env files into the process
// environment without overriding variables that are already set. With no
// files it tries DefaultEnvFile and stays quiet when that file is absent.
func LoadEnv(files ...string) {
	explicit := len(files) > 0
	if !explicit {
		files = []string{DefaultEnvFile}
	}

	for _, file := range files {
		err := godotenv.Load(file)
		switch {
		case err == nil:
			Logger.Debug("Loaded environment from ", file)
		case errors.Is(err, fs.ErrNotExist) && !explicit:
			Logger.Debug("No ", file, " file, using environment variables only")
		default:
			// Don't call Fatal here - continue with what the environment has
			Logger.Warn("Error loading ", file, ", will use environment variables instead: ", err)
		}
	}
}
