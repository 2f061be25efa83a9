package api

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v5"
	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIDoc []byte

type openAPI struct {
	Info struct {
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
		Version     string `yaml:"version"`
	} `yaml:"info"`
	Paths map[string]map[string]openAPIOperation `yaml:"paths"`
}

type openAPIOperation struct {
	Summary     string   `yaml:"summary"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	Responses   map[string]struct {
		Description string `yaml:"description"`
	} `yaml:"responses"`
}

type docOperation struct {
	Method      string
	Path        string
	Summary     string
	Description string
	Responses   []string
}

type docPage struct {
	Title       string
	Description string
	Version     string
	Operations  []docOperation
}

var docsTemplate = template.Must(template.New("docs").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}} <small>{{.Version}}</small></h1>
<p>{{.Description}}</p>
<p><a href="/openapi.yaml">openapi.yaml</a></p>
{{range .Operations}}<h2><code>{{.Method}} {{.Path}}</code></h2>
<p>{{.Summary}}</p>{{if .Description}}
<p>{{.Description}}</p>{{end}}
<ul>{{range .Responses}}<li>{{.}}</li>{{end}}</ul>
{{end}}</body>
</html>
`))

var docsHTML = mustRenderDocs(openAPIDoc)

func mustRenderDocs(raw []byte) []byte {
	page, err := buildDocPage(raw)
	if err != nil {
		panic(err)
	}
	var buf bytes.Buffer
	if err := docsTemplate.Execute(&buf, page); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func buildDocPage(raw []byte) (docPage, error) {
	var doc openAPI
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return docPage{}, fmt.Errorf("parse openapi.yaml: %w", err)
	}
	page := docPage{Title: doc.Info.Title, Description: doc.Info.Description, Version: doc.Info.Version}
	paths := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		methods := make([]string, 0, len(doc.Paths[p]))
		for m := range doc.Paths[p] {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		for _, m := range methods {
			op := doc.Paths[p][m]
			codes := make([]string, 0, len(op.Responses))
			for code := range op.Responses {
				codes = append(codes, code)
			}
			sort.Strings(codes)
			var responses []string
			for _, code := range codes {
				responses = append(responses, code+": "+op.Responses[code].Description)
			}
			page.Operations = append(page.Operations, docOperation{
				Method:      strings.ToUpper(m),
				Path:        p,
				Summary:     op.Summary,
				Description: op.Description,
				Responses:   responses,
			})
		}
	}
	return page, nil
}

func (s *Server) handleDocs(c *echo.Context) error {
	return c.Blob(http.StatusOK, "text/html; charset=utf-8", docsHTML)
}

func (s *Server) handleOpenAPI(c *echo.Context) error {
	return c.Blob(http.StatusOK, "application/yaml", openAPIDoc)
}
