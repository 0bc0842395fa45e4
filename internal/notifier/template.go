package notifier

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// DigestMatch is one row of the digest email.
type DigestMatch struct {
	Title    string
	Company  string
	Location string
	Score    float64
	URL      string
}

type DigestData struct {
	Name    string
	Matches []DigestMatch
}

var digestTemplate = template.Must(template.New("digest").Funcs(template.FuncMap{
	"pct": func(score float64) string {
		return fmt.Sprintf("%.0f%%", score*100)
	},
}).Parse(`<html>
<body style="font-family: Arial, sans-serif; color: #222;">
	<h2>New job matches for you</h2>
	<p>Hi {{.Name}},</p>
	<p>We found {{len .Matches}} new job{{if gt (len .Matches) 1}}s{{end}} matching your CV:</p>
	{{range .Matches}}
	<div style="border: 1px solid #ddd; border-radius: 6px; padding: 12px; margin-bottom: 10px;">
		<strong>{{.Title}}</strong><br>
		{{if .Company}}{{.Company}}{{end}}{{if .Location}} &middot; {{.Location}}{{end}}<br>
		Match score: {{pct .Score}}<br>
		<a href="{{.URL}}">View posting</a>
	</div>
	{{end}}
	<p style="color: #888; font-size: 12px;">You receive this because job alerts are enabled for your account.</p>
</body>
</html>`))

// RenderDigest builds the subject and HTML body for a per-user digest.
func RenderDigest(data DigestData) (subject string, html string, err error) {
	if len(data.Matches) == 0 {
		return "", "", fmt.Errorf("empty digest")
	}
	if strings.TrimSpace(data.Name) == "" {
		data.Name = "there"
	}

	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, data); err != nil {
		return "", "", err
	}

	if len(data.Matches) == 1 {
		subject = fmt.Sprintf("New job match: %s", data.Matches[0].Title)
	} else {
		subject = fmt.Sprintf("%d new job matches for you", len(data.Matches))
	}
	return subject, buf.String(), nil
}
