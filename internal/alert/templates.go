package alert

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var manualTmpl = template.Must(template.New("manual").Parse(`<div style="font-family: Arial, sans-serif; padding: 20px; background: #f5f5f5;">
  <div style="max-width: 600px; margin: 0 auto; background: white; border-radius: 10px; overflow: hidden;">
    <div style="background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 20px;">
      <h1 style="margin: 0;">Cyber Monitor Alert</h1>
    </div>
    <div style="padding: 20px;">
      <h2 style="color: #333;">Priority: {{.Priority}}</h2>
      <p style="color: #666; line-height: 1.6;">{{.Message}}</p>
      <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
      <p style="color: #999; font-size: 12px;">
        Timestamp: {{.SentAt}}<br>
        This is an automated alert from Cyber Monitor System
      </p>
    </div>
  </div>
</div>`))

var severityTmpl = template.Must(template.New("severity").Parse(`<h2>Security Alert</h2>
<p><strong>Type:</strong> {{.Kind}}</p>
<p><strong>Device:</strong> {{.DeviceID}}{{with .Hostname}} ({{.}}){{end}}</p>
<p><strong>Severity:</strong> {{.Severity}}</p>
<p><strong>Data:</strong></p>
<pre>{{.Payload}}</pre>
<p><strong>Time:</strong> {{.OccurredAt}}</p>`))

type manualView struct {
	Priority string
	Message  string
	SentAt   string
}

type severityView struct {
	Kind       string
	DeviceID   string
	Hostname   string
	Severity   string
	Payload    string
	OccurredAt string
}

func render(t *template.Template, v any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderManual(priority, message string, sentAt time.Time) (string, error) {
	return render(manualTmpl, manualView{
		Priority: strings.ToUpper(priority),
		Message:  message,
		SentAt:   sentAt.Format(time.RFC1123),
	})
}
