package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// envFiles in precedence order. godotenv never overrides a variable that is
// already set, so the first file to define a key wins, and the process
// environment beats both.
var envFiles = []string{".env.local", ".env"}

// loadEnvFiles loads the env files present in dir and returns their paths.
func loadEnvFiles(dir string) ([]string, error) {
	var present []string
	for _, name := range envFiles {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("checking %s: %w", p, err)
		}
		present = append(present, p)
	}
	if len(present) == 0 {
		return nil, nil
	}
	if err := godotenv.Load(present...); err != nil {
		return nil, fmt.Errorf("loading env files: %w", err)
	}
	return present, nil
}

func dirOf(path string) string {
	d := filepath.Dir(path)
	if d == "" {
		return "."
	}
	return d
}
