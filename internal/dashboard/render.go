package dashboard

import (
	"embed"
	"html/template"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jep-dashboard/internal/aggregate"
	"github.com/sells-group/jep-dashboard/internal/filter"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"lines": aggregate.Lines,
	"selected": func(current, option string) bool {
		return current == option
	},
	"contains": func(list []string, v string) bool {
		for _, s := range list {
			if s == v {
				return true
			}
		}
		return false
	},
}

// Renderer renders the dashboard and error pages.
type Renderer struct {
	indexTmpl *template.Template
	errorTmpl *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	indexTmpl, err := template.New("index.html").
		Funcs(templateFuncs).
		ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, eris.Wrap(err, "parse index template")
	}

	errorTmpl, err := template.New("error.html").
		ParseFS(templateFS, "templates/error.html")
	if err != nil {
		return nil, eris.Wrap(err, "parse error template")
	}

	return &Renderer{indexTmpl: indexTmpl, errorTmpl: errorTmpl}, nil
}

// IndexData is everything the dashboard page shows.
type IndexData struct {
	Source      string
	Selection   filter.Selection
	Choices     filter.Choices
	Summary     aggregate.Summary
	Quick       aggregate.QuickStats
	AllColumns  []string
	Columns     []string
	Rows        [][]string
	ExportQuery template.URL
}

// ErrorData is the guidance shown when the dataset cannot be loaded.
type ErrorData struct {
	Code    int
	Title   string
	Message string
}

// RenderIndex writes the dashboard page.
func (r *Renderer) RenderIndex(w io.Writer, data *IndexData) error {
	return r.indexTmpl.Execute(w, data)
}

// RenderError writes the error page.
func (r *Renderer) RenderError(w io.Writer, data *ErrorData) error {
	return r.errorTmpl.Execute(w, data)
}
