// Package packager turns a generated artifact into a deployable file set.
//
// Build and Archive are pure: the same artifact always yields byte-identical
// output. Writer is the only part that touches the file system.
package packager

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
	"time"

	"github.com/digkill/botforge/internal/models"
)

const (
	modeFile   fs.FileMode = 0o644
	modeScript fs.FileMode = 0o755
)

// Requirements is the production manifest shipped with every bundle.
var Requirements = []string{
	"python-telegram-bot==20.7",
	"python-dotenv==1.0.0",
	"requests==2.31.0",
	"aiohttp==3.9.1",
	"gunicorn==21.2.0",
}

var templates = template.Must(template.New("bundle").Option("missingkey=error").Parse(
	`{{define "README.md"}}` + readmeTemplate + `{{end}}` +
		`{{define "docker-compose.yml"}}` + composeTemplate + `{{end}}` +
		`{{define "deploy.sh"}}` + deployTemplate + `{{end}}` +
		`{{define "install_systemd.sh"}}` + systemdTemplate + `{{end}}`,
))

// File is one entry of a bundle.
type File struct {
	Path    string
	Content []byte
	Mode    fs.FileMode
}

// FileSet is an ordered bundle.
type FileSet []File

// Get returns the file at path.
func (s FileSet) Get(path string) (File, bool) {
	for _, f := range s {
		if f.Path == path {
			return f, true
		}
	}
	return File{}, false
}

type templateData struct {
	Name        string
	Slug        string
	Description string
}

// Slug is the service identifier derived from an artifact name.
func Slug(name string) string {
	return strings.ToLower(name) + "_bot"
}

// Build produces the full file set for a.
func Build(a *models.BotArtifact) (FileSet, error) {
	if a == nil {
		return nil, fmt.Errorf("nil artifact")
	}
	data := templateData{
		Name:        a.Name,
		Slug:        Slug(a.Name),
		Description: a.Description,
	}

	entry := a.Code
	if strings.TrimSpace(entry) == "" {
		entry = fallbackMain
	}

	rendered := make(map[string][]byte, 4)
	for _, name := range []string{"README.md", "docker-compose.yml", "deploy.sh", "install_systemd.sh"} {
		var buf bytes.Buffer
		if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		rendered[name] = buf.Bytes()
	}

	return FileSet{
		{Path: "main.py", Content: []byte(entry), Mode: modeFile},
		{Path: "config.py", Content: []byte(configPy), Mode: modeFile},
		{Path: ".env.example", Content: []byte(envExample), Mode: modeFile},
		{Path: "requirements.txt", Content: []byte(strings.Join(Requirements, "\n") + "\n"), Mode: modeFile},
		{Path: "README.md", Content: rendered["README.md"], Mode: modeFile},
		{Path: "Dockerfile", Content: []byte(dockerfile), Mode: modeFile},
		{Path: "docker-compose.yml", Content: rendered["docker-compose.yml"], Mode: modeFile},
		{Path: "deploy.sh", Content: rendered["deploy.sh"], Mode: modeScript},
		{Path: "install_systemd.sh", Content: rendered["install_systemd.sh"], Mode: modeScript},
	}, nil
}

// Archive zips set with every entry stamped at modTime.
func Archive(set FileSet, modTime time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range set {
		hdr := &zip.FileHeader{
			Name:     f.Path,
			Method:   zip.Deflate,
			Modified: modTime.UTC(),
		}
		hdr.SetMode(f.Mode)
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("zip header %s: %w", f.Path, err)
		}
		if _, err := w.Write(f.Content); err != nil {
			return nil, fmt.Errorf("zip write %s: %w", f.Path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip close: %w", err)
	}
	return buf.Bytes(), nil
}
