package handlers

import (
	"html/template"
	"net/http"
)

type verifyPage struct {
	Success  bool
	Name     string
	LoginURL string
}

var verifyPageTemplate = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{if .Success}}Email Verified{{else}}Verification Failed{{end}} - FleurEase</title>
<style>
body{font-family:Arial,sans-serif;background:#f4f0fb;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0}
.card{background:#fff;padding:40px;border-radius:12px;box-shadow:0 4px 12px rgba(0,0,0,.1);max-width:480px;text-align:center}
h1{color:{{if .Success}}#6b46c1{{else}}#c53030{{end}}}
a.button{display:inline-block;margin-top:24px;padding:12px 32px;border-radius:24px;background:#6b46c1;color:#fff;text-decoration:none;font-weight:bold}
</style>
</head>
<body>
<div class="card">
{{if .Success}}
<h1>Email verified</h1>
<p>Thank you{{if .Name}}, {{.Name}}{{end}}! Your email address has been verified and you can now sign in.</p>
{{else}}
<h1>Verification failed</h1>
<p>This verification link is invalid or has expired. You can request a new one from the sign-in page.</p>
{{end}}
<a class="button" href="{{.LoginURL}}">Go to sign in</a>
</div>
</body>
</html>
`))

func renderVerifyPage(w http.ResponseWriter, status int, page verifyPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = verifyPageTemplate.Execute(w, page)
}
