package render

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"

	"github.com/codeyoulateralligator/goodreader/internal/geocode"
)

// ErrNothingToMap is returned when no branch with available copies could be
// placed on the map
var ErrNothingToMap = errors.New("nothing available to map")

type marker struct {
	Lat     float64
	Lon     float64
	Name    string
	Colour  string
	Entries []markerEntry
}

type markerEntry struct {
	Display   string
	RecordURL string
	CoverURL  string
}

var mapPage = template.Must(template.New("map").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Goodreads → ESTER</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<link rel="stylesheet" href="https://cdnjs.cloudflare.com/ajax/libs/Leaflet.awesome-markers/2.0.2/leaflet.awesome-markers.css">
<link rel="stylesheet" href="https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.5.1/css/all.min.css">
<style>
 html,body{height:100%;margin:0;font-family:sans-serif;}
 #map{position:absolute;top:0;bottom:0;left:0;right:320px;}
 #panel{position:absolute;top:0;bottom:0;right:0;width:320px;overflow:auto;padding:.6rem;box-sizing:border-box;border-left:1px solid #ccc;}
 #panel figure{margin:0 0 .8rem;text-align:center;}
 #panel img{max-height:160px;max-width:100%;}
 .leaflet-popup-content{max-width:1000px;max-height:400px;overflow:auto;white-space:nowrap;font-size:1.2em;}
 .leaflet-popup-content li{cursor:pointer;color:#06c;}
</style>
</head>
<body>
<div id="map"></div>
<div id="panel"><b>Valitud raamatud</b></div>
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<script src="https://cdnjs.cloudflare.com/ajax/libs/Leaflet.awesome-markers/2.0.2/leaflet.awesome-markers.min.js"></script>
<script>
const markers = {{.Markers}};
const map = L.map('map').setView([{{.CentreLat}}, {{.CentreLon}}], 13);
L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);

const esc = s => String(s).replace(/[&<>"']/g, c => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;',"'":'&#39;'}[c]));
const panel = document.getElementById('panel');
const selected = new Map();

function toggleBook(id, e) {
  if (selected.has(id)) {
    selected.get(id).remove();
    selected.delete(id);
    return;
  }
  const fig = document.createElement('figure');
  const img = e.CoverURL ? '<img src="' + esc(e.CoverURL) + '">' : '<div>– no cover –</div>';
  const caption = e.RecordURL ? '<a href="' + esc(e.RecordURL) + '" target="_blank">' + esc(e.Display) + '</a>' : esc(e.Display);
  fig.innerHTML = img + '<figcaption>' + caption + '</figcaption>';
  panel.appendChild(fig);
  selected.set(id, fig);
}

markers.forEach((m, mi) => {
  const list = document.createElement('div');
  list.innerHTML = '<b>' + esc(m.Name) + '</b> <span style="color:#666;font-size:90%">(' + m.Entries.length + ' pealkirja)</span>';
  const ul = document.createElement('ul');
  m.Entries.forEach((e, ei) => {
    const li = document.createElement('li');
    li.textContent = e.Display;
    li.onclick = ev => { ev.stopPropagation(); toggleBook(mi + '-' + ei, e); };
    ul.appendChild(li);
  });
  list.appendChild(ul);
  L.marker([m.Lat, m.Lon], {
    icon: L.AwesomeMarkers.icon({icon: 'book', prefix: 'fa', markerColor: m.Colour})
  }).bindPopup(list, {maxWidth: 1600, minWidth: 300}).addTo(map);
});
</script>
</body>
</html>
`))

// WriteMap renders one marker per branch with known coordinates, centred
// on their mean position
func WriteMap(w io.Writer, groups []Branch, coords map[string]geocode.Coord) error {
	var markers []marker
	var sumLat, sumLon float64
	for _, g := range groups {
		c, ok := coords[g.Place.Key()]
		if !ok {
			continue
		}
		m := marker{Lat: c.Lat, Lon: c.Lon, Name: g.Place.Name, Colour: g.Colour()}
		for _, e := range g.Entries {
			m.Entries = append(m.Entries, markerEntry{Display: e.Display(), RecordURL: e.RecordURL, CoverURL: e.CoverURL})
		}
		markers = append(markers, m)
		sumLat += c.Lat
		sumLon += c.Lon
	}
	if len(markers) == 0 {
		return ErrNothingToMap
	}

	return mapPage.Execute(w, struct {
		Markers   []marker
		CentreLat float64
		CentreLon float64
	}{markers, sumLat / float64(len(markers)), sumLon / float64(len(markers))})
}

// WriteMapFile is WriteMap into path
func WriteMapFile(path string, groups []Branch, coords map[string]geocode.Coord) error {
	return writeFile(path, func(w io.Writer) error { return WriteMap(w, groups, coords) })
}

// writeFile renders into memory first so a failed render leaves no file
func writeFile(path string, fn func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
