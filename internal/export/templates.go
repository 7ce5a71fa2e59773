package export

import (
	"bytes"
	"html/template"
	"time"
)

var resumeTemplate = template.Must(template.New("resume").Parse(resumeHTML))

// ResumeData holds data for resume template rendering
type ResumeData struct {
	Name        string
	Headline    string
	Email       string
	About       string
	GeneratedAt time.Time
	SkillGroups []SkillGroup
	Timeline    []TimelineEntry
}

// SkillGroup is one skill category with its skills in display order
type SkillGroup struct {
	Category string
	Skills   []string
}

// TimelineEntry is one experience or education item
type TimelineEntry struct {
	Header      string
	Subheader   string
	Date        string
	Description string
}

// RenderResumeHTML renders the resume template with provided data
func RenderResumeHTML(data ResumeData) (string, error) {
	var buf bytes.Buffer
	if err := resumeTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const resumeHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Name}}</title>
  <style>
    body { font-family: Georgia, 'Times New Roman', serif; line-height: 1.5; color: #222; max-width: 760px; margin: 1.5rem auto; }
    h1 { margin-bottom: 0; }
    h2 { border-bottom: 1px solid #999; padding-bottom: 0.25rem; margin-top: 1.5rem; }
    .headline { color: #555; font-size: 1.1em; margin-top: 0.25rem; }
    .contact { color: #666; font-size: 0.9em; margin-bottom: 1.5rem; }
    .entry { margin-bottom: 1rem; }
    .entry-head { display: flex; justify-content: space-between; }
    .entry-date { color: #666; font-style: italic; }
    .skills span { display: inline-block; background: #f0f0f0; border-radius: 3px; padding: 2px 8px; margin: 2px; font-size: 0.9em; }
    .footer { margin-top: 2rem; color: #999; font-size: 0.75em; }
  </style>
</head>
<body>
  <h1>{{.Name}}</h1>
  {{if .Headline}}<p class="headline">{{.Headline}}</p>{{end}}
  {{if .Email}}<p class="contact">{{.Email}}</p>{{end}}

  {{if .About}}
  <h2>About</h2>
  <p>{{.About}}</p>
  {{end}}

  {{if .SkillGroups}}
  <h2>Skills</h2>
  {{range .SkillGroups}}
  <div class="entry">
    <strong>{{.Category}}</strong>
    <div class="skills">{{range .Skills}}<span>{{.}}</span>{{end}}</div>
  </div>
  {{end}}
  {{end}}

  {{if .Timeline}}
  <h2>Experience &amp; Education</h2>
  {{range .Timeline}}
  <div class="entry">
    <div class="entry-head">
      <strong>{{.Header}}</strong>
      <span class="entry-date">{{.Date}}</span>
    </div>
    {{if .Subheader}}<div>{{.Subheader}}</div>{{end}}
    {{if .Description}}<p>{{.Description}}</p>{{end}}
  </div>
  {{end}}
  {{end}}

  <div class="footer">Generated {{.GeneratedAt.Format "Jan 2, 2006"}}</div>
</body>
</html>`
