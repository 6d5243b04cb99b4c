package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

var envFiles = []string{".env", ".env.local"}

// loadEnvFile loads the first existing env file. Variables already set in the
// process environment win. It returns the file loaded, if any.
func loadEnvFile() (string, error) {
	for _, name := range envFiles {
		if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
			continue
		}
		return name, godotenv.Load(name)
	}
	return "", nil
}
