package web

import (
	"fmt"
	"html/template"
	"io"
	"math"
	"time"

	"github.com/sweeney/heat-controller/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"minutes": func(d time.Duration) int64 {
		return int64(math.Round(d.Minutes()))
	},
	"powerClass": func(s string) string {
		switch s {
		case "ON":
			return "on"
		case "OFF":
			return "off"
		}
		return "unknown"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Heat Controller</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.forced { color: #c60; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Heat Controller</h1>

<h2>Heater</h2>
<table>
<tr><th>Power</th><td id="power" class="{{powerClass .Power}}">{{.Power}}</td></tr>
<tr><th>Awaiting ack</th><td>{{if .AwaitingAck}}yes{{else}}no{{end}}</td></tr>
<tr><th>Mode</th><td>{{if .OverrideActive}}<span class="forced">forced, {{minutes .OverrideRemaining}} minutes left</span>{{else}}automatic{{end}}</td></tr>
<tr><th>Comfort period</th><td>{{if .Comfort}}yes{{else}}no{{end}}</td></tr>
{{if .LastAction}}<tr><th>Last decision</th><td>{{.LastAction}}</td></tr>{{end}}
{{if not .LastForcedAt.IsZero}}<tr><th>Last forced</th><td>{{.LastForcedAt.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
</table>

<h2>Climate</h2>
<table>
{{with .LastReading}}<tr><th>Temperature</th><td>{{printf "%.1f" .Temperature}} &deg;C</td></tr>
<tr><th>Humidity</th><td>{{printf "%.1f" .Humidity}} %</td></tr>
<tr><th>Reading time</th><td>{{.Timestamp.Format "2006-01-02T15:04:05"}}</td></tr>{{else}}<tr><th>Temperature</th><td class="unknown">no reading yet</td></tr>{{end}}
<tr><th>Setpoint</th><td>{{printf "%.1f" .Config.Setpoint}} &plusmn; {{printf "%.1f" .Config.Hysteresis}} &deg;C</td></tr>
<tr><th>Comfort windows</th><td>{{.Config.ComfortWindows}}</td></tr>
<tr><th>History</th><td>{{.HistoryLen}} / {{.Config.HistoryCapacity}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Device</th><td>{{.Config.Device}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Telemetry</th><td>{{.Counts.Telemetry}}</td></tr>
<tr><th>Malformed</th><td>{{.Counts.Malformed}}</td></tr>
<tr><th>Commands</th><td>{{.Counts.Commands}}</td></tr>
<tr><th>Overrides</th><td>{{.Counts.Overrides}}</td></tr>
<tr><th>Persist errors</th><td>{{.Counts.PersistErrors}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Override cooldown</th><td>{{.Config.OverrideCooldown}}</td></tr>
<tr><th>History file</th><td>{{.Config.HistoryFile}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

// view flattens the snapshot's derived values into fields for the template.
type view struct {
	status.Snapshot
	Power             string
	Uptime            time.Duration
	OverrideActive    bool
	OverrideRemaining time.Duration
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	power := string(snap.Power)
	if power == "" {
		power = "UNKNOWN"
	}
	indexTmpl.Execute(w, view{
		Snapshot:          snap,
		Power:             power,
		Uptime:            snap.Uptime(),
		OverrideActive:    snap.OverrideActive(),
		OverrideRemaining: snap.OverrideRemaining(),
	})
}
