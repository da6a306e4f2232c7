// Package ui holds the server-rendered pages of the dashboard.
package ui

import (
	"embed"
	"html/template"
	"io/fs"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

//go:embed "html"
var Files embed.FS

const dateLayout = "2006-01-02 15:04"

// Funcs returns the template functions used by the pages. Times are shown in loc.
func Funcs(loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"formatTime": func(t *time.Time) string {
			if t == nil {
				return "-"
			}
			return t.In(loc).Format(dateLayout)
		},
		"join": strings.Join,
		"add":  func(a, b int64) int64 { return a + b },
		// pageURL keeps the current filters and switches to another page.
		"pageURL": func(q url.Values, page int64) string {
			next := url.Values{}
			for key, values := range q {
				next[key] = append([]string(nil), values...)
			}
			next.Set("page", strconv.FormatInt(page, 10))
			return "/dashboard?" + next.Encode()
		},
		"pageSizes": func() []int { return []int{10, 20, 50, 100} },
	}
}

// NewTemplateCache parses every page together with the base layout, keyed by file name.
func NewTemplateCache(loc *time.Location) (map[string]*template.Template, error) {
	cache := map[string]*template.Template{}

	pages, err := fs.Glob(Files, "html/pages/*.tmpl")
	if err != nil {
		return nil, err
	}

	for _, page := range pages {
		name := filepath.Base(page)

		ts, err := template.New(name).Funcs(Funcs(loc)).ParseFS(Files, "html/base.tmpl", page)
		if err != nil {
			return nil, err
		}

		cache[name] = ts
	}

	return cache, nil
}
