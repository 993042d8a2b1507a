package env

import (
	"fmt"

	"github.com/joho/godotenv"
)

// LoadDotEnv parses a .env file and returns its key-value pairs. Quoting,
// "export" prefixes, trailing comments and ${VAR} references follow
// godotenv. Nothing is exported to the process environment.
func LoadDotEnv(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load env file %s: %w", path, err)
	}
	return vars, nil
}
