package http

import (
	"html/template"
	"net/http"
)

var successPage = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Payment Successful</title>
<style>
body { font-family: sans-serif; background: #f4f6f8; display: flex; justify-content: center; padding-top: 10vh; }
.card { background: #fff; border-radius: 8px; padding: 2rem 3rem; box-shadow: 0 1px 4px rgba(0,0,0,.12); text-align: center; }
.mark { font-size: 3rem; color: #2e9e5b; }
.ref { color: #667; font-size: .9rem; margin-top: 1rem; }
</style>
</head>
<body>
<div class="card">
	<div class="mark">&#10003;</div>
	<h1>Payment Successful</h1>
	<p>Thank you, your payment has been received.</p>
	{{if .OrderID}}<p class="ref">Order reference: {{.OrderID}}</p>{{end}}
</div>
</body>
</html>
`))

var failurePage = template.Must(template.New("failure").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Payment Failed</title>
<style>
body { font-family: sans-serif; background: #f4f6f8; display: flex; justify-content: center; padding-top: 10vh; }
.card { background: #fff; border-radius: 8px; padding: 2rem 3rem; box-shadow: 0 1px 4px rgba(0,0,0,.12); text-align: center; }
.mark { font-size: 3rem; color: #c43d3d; }
.ref { color: #667; font-size: .9rem; margin-top: 1rem; }
</style>
</head>
<body>
<div class="card">
	<div class="mark">&#10007;</div>
	<h1>Payment Failed</h1>
	<p>Your payment was not completed. No money has been taken.</p>
	{{if .OrderID}}<p class="ref">Order reference: {{.OrderID}}</p>{{end}}
</div>
</body>
</html>
`))

func renderPage(w http.ResponseWriter, page *template.Template, orderID string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = page.Execute(w, struct{ OrderID string }{OrderID: orderID})
}
