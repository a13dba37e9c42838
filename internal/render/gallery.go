package render

import (
	"html/template"
	"io"
	"sort"
	"strings"

	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/textnorm"
)

type figure struct {
	Author    string
	Title     string
	RecordURL string
	CoverURL  template.URL
	Source    string
	Available int
}

var galleryPage = template.Must(template.New("gallery").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Kaanepildid</title>
<style>
 body{font-family:sans-serif;margin:1rem;}
 .grid{display:grid;grid-template-columns:repeat(auto-fill,minmax(160px,1fr));gap:1rem;}
 figure{margin:0;text-align:center;font-size:.85rem;}
 figure img{max-width:100%;height:220px;object-fit:contain;}
 .nocover{height:220px;display:flex;align-items:center;justify-content:center;background:#eee;color:#888;}
 .src{color:#999;font-size:.75rem;}
</style>
</head>
<body>
<h1>Kaanepildid ({{len .}})</h1>
<div class="grid">
{{- range .}}
<figure>
{{- if .CoverURL}}
<img src="{{.CoverURL}}" alt="{{.Title}}" loading="lazy">
{{- else}}
<div class="nocover">no cover</div>
{{- end}}
<figcaption>{{if .RecordURL}}<a href="{{.RecordURL}}" target="_blank">{{.Author}} – {{.Title}}</a>{{else}}{{.Author}} – {{.Title}}{{end}}
{{- if .Available}}<br>{{.Available}} available{{end}}
{{- if .Source}}<br><span class="src">{{.Source}}</span>{{end}}</figcaption>
</figure>
{{- end}}
</div>
</body>
</html>
`))

// WriteGallery renders one figure per resolved title sorted by author
// surname, then title
func WriteGallery(w io.Writer, titles []models.ResolvedTitle) error {
	var figures []figure
	for _, t := range titles {
		if t.Match != models.MatchResolved {
			continue
		}
		f := figure{Author: t.Record.Author, Title: t.Record.Title, Available: len(t.Available())}
		if t.Hit != nil {
			f.RecordURL = t.Hit.RecordURL
		}
		if t.Cover != nil {
			// data: URIs from the catalogue are trusted
			f.CoverURL = template.URL(t.Cover.URL)
			f.Source = string(t.Cover.Source)
		}
		figures = append(figures, f)
	}
	sort.SliceStable(figures, func(i, j int) bool {
		si, sj := textnorm.Surname(figures[i].Author), textnorm.Surname(figures[j].Author)
		if si != sj {
			return si < sj
		}
		return strings.ToLower(figures[i].Title) < strings.ToLower(figures[j].Title)
	})
	return galleryPage.Execute(w, figures)
}

// WriteGalleryFile is WriteGallery into path
func WriteGalleryFile(path string, titles []models.ResolvedTitle) error {
	return writeFile(path, func(w io.Writer) error { return WriteGallery(w, titles) })
}
