package config

import (
	"github.com/joho/godotenv"
)

// Env builds the declared variable set used for expansion: the run config's
// env map overlaid by dotenv files in order. The process environment is not
// included; it stays reachable only as ${env.NAME}.
func Env(base map[string]string, envFiles ...string) (map[string]string, error) {
	env := make(map[string]string, len(base))
	for k, v := range base {
		env[k] = v
	}

	for _, f := range envFiles {
		if f == "" {
			continue
		}
		values, err := godotenv.Read(f)
		if err != nil {
			return nil, err
		}
		for k, v := range values {
			env[k] = v
		}
	}
	return env, nil
}
