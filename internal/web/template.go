package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/range-monitor/internal/status"
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
	"onOff": func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	},
	"cm": func(v float64) string { return fmt.Sprintf("%.2f", v) },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Range Monitor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
pre.lcd { display: inline-block; background: #1f3b8c; color: #e8f0ff; padding: 8px 12px; font-size: 1.2em; margin: 0; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.lock { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Range Monitor<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<pre class="lcd" id="lcd">{{index .Display 0}}
{{index .Display 1}}</pre>

<h2>State</h2>
<table>
<tr><th>Mode</th><td id="mode" class="{{if eq .Mode.String "LOCK"}}lock{{end}}">{{.Mode}}</td></tr>
<tr><th>Unit</th><td id="unit">{{.Unit}}</td></tr>
<tr><th>Distance</th><td id="distance">{{if .Valid}}{{cm .Reading.Centimeters}} cm / {{cm .Reading.Inches}} in{{else}}--{{end}}</td></tr>
<tr><th>Luminosity</th><td id="light">{{.Light}} (ambient {{.Ambient}})</td></tr>
<tr><th>Activity LED</th><td id="led-activity" class="{{onOff .Activity}}">{{onOff .Activity}}</td></tr>
<tr><th>Alert LED</th><td id="led-alert" class="{{onOff .Alert}}">{{onOff .Alert}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td id="mqtt" class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}none{{end}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Mode changes</th><td id="count-modes">{{.Counts.ModeChanges}}</td></tr>
<tr><th>Unit changes</th><td id="count-units">{{.Counts.UnitChanges}}</td></tr>
<tr><th>Locks</th><td id="count-locks">{{.Counts.Locks}}</td></tr>
<tr><th>Unlocks</th><td id="count-unlocks">{{.Counts.Unlocks}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Board</th><td>{{.Config.Board}}</td></tr>
<tr><th>Boot</th><td>{{.BootID}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Ranging</th><td>{{.Config.RangingMs}}ms</td></tr>
<tr><th>Remote poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Lock zone</th><td>{{.Config.LockZoneCm}} cm</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }
  function text(id, v) {
    document.getElementById(id).textContent = v;
  }
  function led(id, on) {
    var el = document.getElementById(id);
    el.textContent = on ? "on" : "off";
    el.className = on ? "on" : "off";
  }
  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var s = JSON.parse(ev.data).status;
        document.getElementById("lcd").textContent = s.display.join("\n");
        text("mode", s.mode);
        document.getElementById("mode").className = s.mode === "LOCK" ? "lock" : "";
        text("unit", s.unit);
        text("distance", s.distance.valid ? s.distance.cm.toFixed(2) + " cm / " + s.distance.in.toFixed(2) + " in" : "--");
        text("light", s.luminosity + " (ambient " + s.ambient_level + ")");
        led("led-activity", s.leds.activity);
        led("led-alert", s.leds.alert);
        var mq = document.getElementById("mqtt");
        mq.textContent = s.mqtt.connected ? "connected" : "disconnected";
        mq.className = s.mqtt.connected ? "connected" : "disconnected";
        text("count-modes", s.event_counts.mode_changes);
        text("count-units", s.event_counts.unit_changes);
        text("count-locks", s.event_counts.locks);
        text("count-unlocks", s.event_counts.unlocks);
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
