// Package views holds the embedded HTML templates and installs them into gin.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"text/template/parse"
	"time"

	"github.com/gin-gonic/gin"
)

//go:embed templates
var files embed.FS

// Pages lists the templates handlers render by name.
var Pages = []string{
	"episode/index.html",
	"episode/new.html",
	"episode/show.html",
	"episode/edit.html",
	"comment/new.html",
	"error.html",
}

// URLBuilder resolves named routes, see router.Table.
type URLBuilder interface {
	URL(name string, params ...any) (string, error)
}

// Parse compiles every template. Page templates are addressed by the name
// given in their define block, e.g. "episode/show.html". A missing page or
// a {{ template }} call naming an undefined template is an error.
func Parse(urls URLBuilder) (*template.Template, error) {
	funcs := template.FuncMap{
		"url": urls.URL,
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02 15:04")
		},
	}
	t, err := template.New("castboard").Funcs(funcs).ParseFS(files,
		"templates/*.html",
		"templates/*/*.html",
	)
	if err != nil {
		return nil, err
	}
	for _, name := range Pages {
		if t.Lookup(name) == nil {
			return nil, fmt.Errorf("views: page %q is not defined", name)
		}
	}
	if err := checkRefs(t); err != nil {
		return nil, err
	}
	return t, nil
}

// checkRefs walks every template and fails on calls to undefined templates.
func checkRefs(root *template.Template) error {
	for _, t := range root.Templates() {
		if t.Tree == nil {
			continue
		}
		var missing string
		walk(t.Tree.Root, func(name string) {
			if missing == "" && root.Lookup(name) == nil {
				missing = name
			}
		})
		if missing != "" {
			return fmt.Errorf("views: %s calls undefined template %q", t.Name(), missing)
		}
	}
	return nil
}

func walk(n parse.Node, called func(string)) {
	switch n := n.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, c := range n.Nodes {
			walk(c, called)
		}
	case *parse.TemplateNode:
		called(n.Name)
	case *parse.IfNode:
		walk(n.List, called)
		walk(n.ElseList, called)
	case *parse.RangeNode:
		walk(n.List, called)
		walk(n.ElseList, called)
	case *parse.WithNode:
		walk(n.List, called)
		walk(n.ElseList, called)
	}
}

// Install sets the parsed templates as the engine's HTML renderer.
func Install(r *gin.Engine, urls URLBuilder) error {
	t, err := Parse(urls)
	if err != nil {
		return err
	}
	r.SetHTMLTemplate(t)
	return nil
}
