// Package envx overlays configuration values from the process environment.
// A .env file, when present, is loaded first with godotenv; variables that are
// already set in the environment win over the file.
package envx

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads the given files (".env" when none are given). Missing
// files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Reader looks up variables under a common prefix, e.g. GOPHCHAT_.
type Reader struct {
	Prefix string
}

func (r Reader) lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(r.Prefix + name)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (r Reader) String(name string, dst *string) {
	if v, ok := r.lookup(name); ok {
		*dst = v
	}
}

func (r Reader) Int(name string, dst *int) error {
	v, ok := r.lookup(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", r.Prefix, name, err)
	}
	*dst = n
	return nil
}

func (r Reader) Float(name string, dst *float64) error {
	v, ok := r.lookup(name)
	if !ok {
		return nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s%s: %w", r.Prefix, name, err)
	}
	*dst = n
	return nil
}

func (r Reader) Duration(name string, dst *time.Duration) error {
	v, ok := r.lookup(name)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", r.Prefix, name, err)
	}
	*dst = d
	return nil
}

func (r Reader) Bool(name string, dst *bool) error {
	v, ok := r.lookup(name)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", r.Prefix, name, err)
	}
	*dst = b
	return nil
}

// List splits a comma-separated value, dropping empty items.
func (r Reader) List(name string, dst *[]string) {
	v, ok := r.lookup(name)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}
