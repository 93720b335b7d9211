// internal/notify/mailqueue/render.go
package mailqueue

import (
	"bytes"
	"html/template"

	"inspection-notifications/internal/common/config"
	"inspection-notifications/internal/models"
)

// emailTemplate mirrors the product's transactional email layout: header,
// message card, optional inspection details block, dashboard link and a
// preference-management footer.
var emailTemplate = template.Must(template.New("notification-email").Parse(`
<html>
  <body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
    <div style="background-color: #f8f9fa; padding: 20px; border-radius: 8px;">
      <div style="background-color: #2563eb; color: white; padding: 15px; border-radius: 6px; margin-bottom: 20px;">
        <h1 style="margin: 0; font-size: 24px;">{{.ProductName}}</h1>
      </div>

      <h2 style="color: #1f2937; margin-bottom: 15px;">{{.Title}}</h2>

      <div style="background-color: white; padding: 20px; border-radius: 6px; border-left: 4px solid #2563eb;">
        <p style="color: #374151; line-height: 1.6; margin: 0;">{{.Message}}</p>
      </div>

      {{if .InspectionID}}
      <div style="margin-top: 20px; padding: 15px; background-color: #e5e7eb; border-radius: 6px;">
        <p style="margin: 0; color: #6b7280; font-size: 14px;">
          <strong>Inspection Details:</strong><br>
          {{if .ClientName}}Client: {{.ClientName}}<br>{{end}}
          {{if .InspectorName}}Inspector: {{.InspectorName}}<br>{{end}}
          Inspection ID: {{.InspectionID}}
        </p>
      </div>
      {{end}}

      <div style="margin-top: 30px; text-align: center;">
        <a href="{{.DashboardURL}}/dashboard"
           style="background-color: #2563eb; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">
          View Dashboard
        </a>
      </div>

      <div style="margin-top: 30px; padding-top: 20px; border-top: 1px solid #e5e7eb; text-align: center;">
        <p style="color: #6b7280; font-size: 12px; margin: 0;">
          You received this email because you have notifications enabled for this type of update.
          <br>
          <a href="{{.DashboardURL}}/dashboard/settings/notifications"
             style="color: #2563eb;">Manage your notification preferences</a>
        </p>
      </div>
    </div>
  </body>
</html>
`))

type emailData struct {
	ProductName   string
	DashboardURL  string
	Title         string
	Message       string
	InspectionID  string
	ClientName    string
	InspectorName string
}

func renderBody(cfg config.EmailConfig, n *models.Notification, _ *models.Recipient) (string, error) {
	data := emailData{
		ProductName:   cfg.ProductName,
		DashboardURL:  cfg.DashboardURL,
		Title:         n.Title,
		Message:       n.Message,
		InspectionID:  stringField(n.Data, "inspection_id"),
		ClientName:    stringField(n.Data, "client_name"),
		InspectorName: stringField(n.Data, "inspector_name"),
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func stringField(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
