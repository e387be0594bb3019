package server

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/model"
	"github.com/sells-group/choropleth/internal/render"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>California Counties</title>
<style>
body { font-family: sans-serif; margin: 0 1em; }
#dropdown { margin: 1em 0; font-size: 1em; }
.maps { display: flex; flex-wrap: wrap; gap: 1em; }
.gratBackground { fill: #D5E3FF; }
.gratLines { fill: none; stroke: #999; stroke-width: 1px; }
.states { fill: #f2f2f2; stroke: #aaa; stroke-width: 0.5px; }
.counties { stroke: #fff; stroke-width: 0.5px; transition: fill {{.FillMillis}}ms; }
.chartBackground { fill: #eee; }
.chartFrame { fill: none; stroke: #999; stroke-width: 1px; }
.chartTitle { font-size: 1.4em; font-weight: bold; }
.bar { transition: y {{.BarMillis}}ms, height {{.BarMillis}}ms, fill {{.BarMillis}}ms; }
</style>
</head>
<body>
<select id="dropdown">
<option class="titleOption" disabled>Select Attribute</option>
{{- range .Attributes}}
<option value="{{.Name}}"{{if .Selected}} selected{{end}}>{{.Name}}</option>
{{- end}}
</select>
<div class="maps">
<div id="map"></div>
<div id="chart"></div>
</div>
<script>
async function load(id, url) {
  const res = await fetch(url);
  if (res.ok) document.getElementById(id).innerHTML = await res.text();
}
function recolor(frame) {
  document.querySelectorAll("#map path.counties").forEach(function (p) {
    const unit = frame.units[p.dataset.key];
    p.setAttribute("fill", unit ? unit.color : frame.no_data_color);
  });
}
document.getElementById("dropdown").addEventListener("change", async function (e) {
  const res = await fetch("api/selection", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({attribute: e.target.value})
  });
  if (!res.ok) return;
  recolor(await res.json());
  load("chart", "chart.svg");
});
load("map", "map.svg");
load("chart", "chart.svg");
</script>
</body>
</html>
`))

type pageData struct {
	Attributes []attributeInfo
	FillMillis int
	BarMillis  int
}

func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	current := s.session.Controller.Attribute()
	data := pageData{FillMillis: render.FillDurationMillis, BarMillis: render.BarDurationMillis}
	for _, a := range model.Attributes() {
		data.Attributes = append(data.Attributes, attributeInfo{Name: a, Slug: a.Slug(), Selected: a == current})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		zap.L().Error("render page", zap.String("component", "server"), zap.Error(err))
	}
}
