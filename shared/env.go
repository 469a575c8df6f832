package shared

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotenv loads .env files into the process environment. A missing file
// is not an error; real variables always win over file values.
func LoadDotenv(filenames ...string) error {
	err := godotenv.Load(filenames...)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func GetenvString(v string) (string, error) {
	return strings.TrimSpace(v), nil
}

func GetenvInt(v string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(v))
}

func GetenvFloat(v string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(v), 64)
}

func GetenvBool(v string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(v))
}

func GetenvSeconds(v string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Getenv reads and parses an environment variable. When the variable is
// unset or empty: required yields an error, otherwise fallback is returned.
func Getenv[T any](parse func(string) (T, error), key string, required bool, fallback T) (T, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		if required {
			var zero T
			return zero, fmt.Errorf("environment variable %s is not set", key)
		}
		return fallback, nil
	}
	val, err := parse(raw)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("parsing environment variable %s: %w", key, err)
	}
	return val, nil
}

// MustGetenv is Getenv for startup paths where a bad value is fatal anyway.
func MustGetenv[T any](parse func(string) (T, error), key string, required bool, fallback T) T {
	val, err := Getenv(parse, key, required, fallback)
	if err != nil {
		panic(err)
	}
	return val
}
