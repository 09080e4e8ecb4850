package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/k3a/html2text"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-meme-report/internal/blobcache"
	"github.com/tbourn/go-meme-report/internal/domain"
)

// Options are the texts and prepared blocks the page template consumes.
type Options struct {
	PageTitle       string
	Heading         string
	ChartBlock      template.HTML
	GeneratedAtText string
	TableHeading    string
	TableBlock      template.HTML
}

// Renderer turns Options into an artifact and returns its path.
type Renderer interface {
	Render(ctx context.Context, opts Options) (string, error)
}

// GeneratedAtText formats the report timestamp line.
func GeneratedAtText(t time.Time) string {
	return "This report is generated at " + t.UTC().Format("2006-01-02 15:04:05") + " UTC"
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.PageTitle}}</title>
<style>
@page {size: A4; margin: 1cm;}
body {font-family: sans-serif;}
.chart {width: 100%;}
table {border-collapse: collapse;}
th {text-align: center; border: 1px solid black;}
td {border: 1px solid black; padding: 4px;}
td img {width: 128px;}
</style>
</head>
<body>
<h1>{{.Heading}}</h1>
{{.ChartBlock}}
<p>{{.GeneratedAtText}}</p>
<h2>{{.TableHeading}}</h2>
{{.TableBlock}}
</body>
</html>
`))

var tableTmpl = template.Must(template.New("table").Parse(`<table>
<thead><tr><th></th><th>Title</th><th>Thumbnail</th><th>Net Votes</th><th>Link</th></tr></thead>
<tbody>
{{- range .}}
<tr><th>{{.Rank}}</th><td>{{.Title}}</td><td>{{if .Src}}<img src="{{.Src}}" alt="">{{end}}</td><td>{{.Net}}</td><td><a href="{{.URL}}">{{.URL}}</a></td></tr>
{{- end}}
</tbody>
</table>`))

type tableLine struct {
	TableRow
	Src template.URL
}

// TableBlock renders rows as an HTML table, inlining each row's image from
// blobs as a data URI. Missing images leave the cell empty.
func TableBlock(ctx context.Context, rows []TableRow, blobs blobcache.Store) (template.HTML, error) {
	lines := make([]tableLine, 0, len(rows))
	for _, r := range rows {
		tl := tableLine{TableRow: r}
		if r.Image != "" && blobs != nil {
			b, err := blobs.Read(ctx, r.Image)
			if err != nil {
				log.Warn().Str("component", "report").Str("image", r.Image).Err(err).Msg("image unavailable")
			} else {
				tl.Src = dataURI(b)
			}
		}
		lines = append(lines, tl)
	}
	var buf bytes.Buffer
	if err := tableTmpl.Execute(&buf, lines); err != nil {
		return "", fmt.Errorf("%w: table: %w", domain.ErrRender, err)
	}
	return template.HTML(buf.String()), nil
}

// ChartBlock embeds an SVG chart as an image with the "chart" class.
func ChartBlock(svg []byte) template.HTML {
	src := "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(svg)
	return template.HTML(`<img class="chart" src="` + src + `" alt="chart">`)
}

func dataURI(b []byte) template.URL {
	return template.URL("data:" + http.DetectContentType(b) + ";base64," + base64.StdEncoding.EncodeToString(b))
}

// HTMLRenderer writes "<Name>.html" and a plain-text "<Name>.txt" into Dir.
type HTMLRenderer struct {
	Dir  string
	Name string // base file name, "report" when empty
}

// Render implements Renderer. Files are replaced atomically; the HTML path is
// returned. Failures wrap domain.ErrRender.
func (r *HTMLRenderer) Render(ctx context.Context, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := r.Name
	if name == "" {
		name = "report"
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrRender, err)
	}

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, opts); err != nil {
		return "", fmt.Errorf("%w: page: %w", domain.ErrRender, err)
	}
	htmlPath := filepath.Join(r.Dir, name+".html")
	text := html2text.HTML2TextWithOptions(buf.String(), html2text.WithUnixLineBreaks())

	// Both files are staged before either replaces the previous artifact.
	htmlTmp, err := stage(r.Dir, buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrRender, err)
	}
	textTmp, err := stage(r.Dir, []byte(text))
	if err != nil {
		_ = os.Remove(htmlTmp)
		return "", fmt.Errorf("%w: %w", domain.ErrRender, err)
	}
	if err := os.Rename(textTmp, TextPath(htmlPath)); err != nil {
		_ = os.Remove(htmlTmp)
		_ = os.Remove(textTmp)
		return "", fmt.Errorf("%w: %w", domain.ErrRender, err)
	}
	if err := os.Rename(htmlTmp, htmlPath); err != nil {
		_ = os.Remove(htmlTmp)
		return "", fmt.Errorf("%w: %w", domain.ErrRender, err)
	}
	return htmlPath, nil
}

// TextPath returns the plain-text sibling of an HTML artifact path.
func TextPath(htmlPath string) string {
	ext := filepath.Ext(htmlPath)
	return htmlPath[:len(htmlPath)-len(ext)] + ".txt"
}

// stage writes data to a temporary file in dir and returns its path.
func stage(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}
