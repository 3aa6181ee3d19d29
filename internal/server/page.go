package server

import "html/template"

type hostPageData struct {
	Location string
	Surface  string
}

// The container fills the viewport; the page image is centered by the flex
// parent's auto margins and clipped by overflow:hidden.
var hostPage = template.Must(template.New("host").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Location}}</title>
<style>
html, body { margin: 0; height: 100vh; width: 100vw; }
.viewer { position: relative; height: 100%; width: 100%; overflow: hidden; }
.pages { position: absolute; left: 0; right: 0; top: 0; bottom: 0; display: flex; min-height: 100%; }
.pages img { margin: auto; }
</style>
</head>
<body>
<div class="viewer">
{{/* TODO: toolbar, visible only after the document has rendered */}}
<div class="pages"><img src="{{.Surface}}" alt=""></div>
</div>
</body>
</html>
`))
