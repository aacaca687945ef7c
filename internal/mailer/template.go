package mailer

import (
	"bytes"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"github.com/revo-marketplace/waitlist/internal/domain"
)

// Message is a rendered email ready for a transport.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// TemplateData feeds the confirmation templates. Every string field is user
// controlled or derived from user input and is escaped by html/template.
type TemplateData struct {
	Email          string
	Name           string
	Role           domain.Role
	Locale         domain.Locale
	UnsubscribeURL string
	ExpiresAt      time.Time
}

type copyText struct {
	Subject      string
	Fallback     string
	Greeting     string
	Intro        string
	RoleLine     string
	NextSteps    string
	Unsubscribe  string
	LinkValidity string
	Signature    string
	Roles        map[domain.Role]string
}

var translations = map[domain.Locale]copyText{
	domain.LocaleEN: {
		Subject:      "Welcome to the Revo Marketplace waitlist!",
		Fallback:     "Friend",
		Greeting:     "Hi",
		Intro:        "Thanks for joining the Revo Marketplace waitlist. You're officially on the list!",
		RoleLine:     "You signed up as:",
		NextSteps:    "We'll email you as soon as early access opens, along with updates on farmers, harvests and launch news.",
		Unsubscribe:  "Don't want to hear from us? Unsubscribe",
		LinkValidity: "This unsubscribe link is valid for 24 hours.",
		Signature:    "The Revo Marketplace team",
		Roles: map[domain.Role]string{
			domain.RoleFarmer:   "Farmer",
			domain.RoleInvestor: "Investor",
			domain.RoleConsumer: "Consumer",
			domain.RolePartner:  "Partner",
			domain.RoleOther:    "Other",
		},
	},
	domain.LocaleES: {
		Subject:      "¡Bienvenido a la lista de espera de Revo Marketplace!",
		Fallback:     "Amigo",
		Greeting:     "Hola",
		Intro:        "Gracias por unirte a la lista de espera de Revo Marketplace. ¡Ya estás en la lista!",
		RoleLine:     "Te registraste como:",
		NextSteps:    "Te escribiremos en cuanto abra el acceso anticipado, junto con novedades sobre agricultores, cosechas y el lanzamiento.",
		Unsubscribe:  "¿No quieres recibir más correos? Darse de baja",
		LinkValidity: "Este enlace para darse de baja es válido durante 24 horas.",
		Signature:    "El equipo de Revo Marketplace",
		Roles: map[domain.Role]string{
			domain.RoleFarmer:   "Agricultor",
			domain.RoleInvestor: "Inversionista",
			domain.RoleConsumer: "Consumidor",
			domain.RolePartner:  "Socio",
			domain.RoleOther:    "Otro",
		},
	},
}

type view struct {
	TemplateData
	Copy      copyText
	Display   string
	RoleLabel string
	Year      int
}

var htmlTemplate = htmltemplate.Must(htmltemplate.New("confirmation.html").Parse(`<!DOCTYPE html>
<html lang="{{.Locale}}">
<head>
    <meta charset="UTF-8">
    <title>{{.Copy.Subject}}</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #1f2933; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #2f855a;">{{.Copy.Greeting}} {{.Display}},</h2>
    <p>{{.Copy.Intro}}</p>
    {{- if .RoleLabel}}
    <p>{{.Copy.RoleLine}} <strong>{{.RoleLabel}}</strong></p>
    {{- end}}
    <p>{{.Copy.NextSteps}}</p>
    <p>{{.Copy.Signature}}</p>
    <hr style="border: none; border-top: 1px solid #e2e8f0;">
    <p style="font-size: 12px; color: #718096;">
        <a href="{{.UnsubscribeURL}}">{{.Copy.Unsubscribe}}</a><br>
        {{.Copy.LinkValidity}}<br>
        &copy; {{.Year}} Revo Marketplace
    </p>
</body>
</html>
`))

var textTemplate = texttemplate.Must(texttemplate.New("confirmation.txt").Parse(`{{.Copy.Greeting}} {{.Display}},

{{.Copy.Intro}}
{{if .RoleLabel}}
{{.Copy.RoleLine}} {{.RoleLabel}}
{{end}}
{{.Copy.NextSteps}}

{{.Copy.Signature}}

{{.Copy.Unsubscribe}}: {{.UnsubscribeURL}}
{{.Copy.LinkValidity}}
`))

// Render produces the localized confirmation email.
func Render(data TemplateData) (Message, error) {
	text, ok := translations[data.Locale]
	if !ok {
		data.Locale = domain.LocaleEN
		text = translations[domain.LocaleEN]
	}

	v := view{
		TemplateData: data,
		Copy:         text,
		Display:      data.Name,
		RoleLabel:    text.Roles[data.Role],
		Year:         time.Now().Year(),
	}
	if v.Display == "" {
		v.Display = text.Fallback
	}
	if v.RoleLabel == "" && data.Role != "" {
		v.RoleLabel = string(data.Role)
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := htmlTemplate.Execute(&htmlBuf, v); err != nil {
		return Message{}, err
	}
	if err := textTemplate.Execute(&textBuf, v); err != nil {
		return Message{}, err
	}

	return Message{
		To:      data.Email,
		Subject: text.Subject,
		HTML:    htmlBuf.String(),
		Text:    textBuf.String(),
	}, nil
}
