package env

import (
	"os"
	"path/filepath"
	"strings"
)

// WorkDir returns the root under which private install prefixes are created.
func WorkDir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userCacheDir, ".magicksys"), nil
}

// Lookup returns the value of key, treating an empty value as unset.
func Lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// SplitList splits a colon-separated list. Empty input yields nil.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ":")
}

// Guard holds a temporary override of one environment variable.
// Release restores the previous value, or unsets the variable if it had none.
type Guard struct {
	key      string
	prev     string
	hadPrev  bool
	released bool
}

// Set overrides key with value until the returned Guard is released.
func Set(key, value string) (*Guard, error) {
	prev, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		return nil, err
	}
	return &Guard{key: key, prev: prev, hadPrev: had}, nil
}

// Release restores the environment. It is safe to call more than once.
func (g *Guard) Release() error {
	if g == nil || g.released {
		return nil
	}
	g.released = true
	if g.hadPrev {
		return os.Setenv(g.key, g.prev)
	}
	return os.Unsetenv(g.key)
}
