package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

const layoutHTML = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h1 style="color: #6b46c1;">{{.Heading}}</h1>
<p>Hello {{.Name}},</p>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{if .Link}}<p><a href="{{.Link}}" style="display: inline-block; background: #6b46c1; color: #fff; padding: 12px 24px; text-decoration: none; border-radius: 4px;">{{.LinkLabel}}</a></p>
<p>Or paste this link into your browser:<br><code>{{.Link}}</code></p>
{{end}}<p style="color: #666; font-size: 12px;">FleurEase. This is an automated message, please do not reply.</p>
</div>
</body>
</html>
`

const layoutText = `{{.Heading}}

Hello {{.Name}},
{{range .Paragraphs}}
{{.}}
{{end}}{{if .Link}}
{{.LinkLabel}}: {{.Link}}
{{end}}
FleurEase. This is an automated message, please do not reply.
`

var (
	htmlLayout = htmltemplate.Must(htmltemplate.New("html").Parse(layoutHTML))
	textLayout = texttemplate.Must(texttemplate.New("text").Parse(layoutText))
)

type content struct {
	Heading    string
	Name       string
	Paragraphs []string
	Link       string
	LinkLabel  string
}

func render(to, subject string, c content) (Message, error) {
	var html, text bytes.Buffer
	if err := htmlLayout.Execute(&html, c); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	if err := textLayout.Execute(&text, c); err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}
	return Message{To: to, Subject: subject, HTML: html.String(), Text: text.String()}, nil
}
