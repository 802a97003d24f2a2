package internal

import (
	"log"
	"os"
	"strings"
)

// Env returns the trimmed value of key, or def when it is unset or blank.
func Env(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func MustEnv(key string) string {
	v := Env(key, "")
	if v == "" {
		log.Fatalf("missing env: %s", key)
	}
	return v
}

// EnvOneOf lowercases the value of key and falls back to def when it is not
// one of allowed.
func EnvOneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(Env(key, def))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	log.Printf("invalid %s: %q, using %s", key, v, def)
	return def
}
