package verify

import "html/template"

// CommonZones populates the selection page. The page also accepts any
// IANA name typed into the datalist input; the server validates it.
var CommonZones = []string{
	"America/Los_Angeles",
	"America/Denver",
	"America/Chicago",
	"America/New_York",
	"America/Sao_Paulo",
	"UTC",
	"Europe/London",
	"Europe/Berlin",
	"Europe/Paris",
	"Europe/Kyiv",
	"Europe/Moscow",
	"Asia/Tashkent",
	"Asia/Almaty",
	"Asia/Dubai",
	"Asia/Kolkata",
	"Asia/Shanghai",
	"Asia/Tokyo",
	"Asia/Seoul",
	"Australia/Sydney",
}

// PageData feeds the verification page template.
type PageData struct {
	Token string
	Zones []string
}

const pageHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Confirm your timezone</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 28rem; margin: 4rem auto; padding: 0 1rem; }
select, button { font-size: 1rem; padding: .5rem; width: 100%; margin-top: .75rem; }
#result { margin-top: 1rem; }
</style>
</head>
<body>
<h1>Confirm your timezone</h1>
<p>Pick the timezone you are in so your chat gets correct conversions.</p>
<select id="tz">
{{- range .Zones }}
  <option value="{{ . }}">{{ . }}</option>
{{- end }}
</select>
<button onclick="save()">Save</button>
<p id="result"></p>
<script>
async function save() {
  const resp = await fetch('/api/verify', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({token: {{ .Token }}, tz_iana: document.getElementById('tz').value})
  });
  document.getElementById('result').textContent =
    resp.ok ? 'Saved. You can close this page.' : 'That did not work, the link may have expired.';
}
</script>
</body>
</html>`

// PageTemplate renders the timezone verification page.
var PageTemplate = template.Must(template.New("verify").Parse(pageHTML))
