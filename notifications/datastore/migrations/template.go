package migrations

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"text/template"

	"github.com/benbjohnson/clock"
)

const (
	migrationSeqFormat  = "20060102150405"
	migrationNameFormat = `\A[a-z0-9_]+\z`
)

// for test purposes (mocking)
var systemClock = clock.New()

const migrationTemplate = `package migrations

import migrate "github.com/rubenv/sql-migrate"

func init() {
	m := &Migration{
		Migration: &migrate.Migration{
			Id:   "{{ .Sequence }}_{{ .Name }}",
			Up:   []string{},
			Down: []string{},
		},
		PostDeployment: {{ .PostDeployment }},
	}

	register(m)
}
`

// NewFromTemplate creates a new migration file based on migrationTemplate under dir and returns its full path.
func NewFromTemplate(dir, name string, postDeployment bool) (string, error) {
	matched, err := regexp.MatchString(migrationNameFormat, name)
	if err != nil {
		return "", fmt.Errorf("unable to validate name: %w", err)
	}
	if !matched {
		return "", errors.New("name can only contain lowercase alphanumeric and underscore characters")
	}

	if stat, err := os.Stat(dir); err != nil || !stat.IsDir() {
		return "", fmt.Errorf("%q directory not found in path", dir)
	}

	tmpl, err := template.New("").Parse(migrationTemplate)
	if err != nil {
		return "", fmt.Errorf("failure loading template: %w", err)
	}

	t := systemClock.Now().UTC().Format(migrationSeqFormat)
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.go", t, name))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("unable to create file: %w", err)
	}
	defer f.Close()

	if err = tmpl.Execute(f, struct {
		Sequence       string
		Name           string
		PostDeployment bool
	}{
		Sequence:       t,
		Name:           name,
		PostDeployment: postDeployment,
	}); err != nil {
		return "", fmt.Errorf("failure processing template: %w", err)
	}

	return path, nil
}
