package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	texttpl "text/template"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

// InvitationVars son las variables del email de invitación.
type InvitationVars struct {
	Email       string
	InviterName string
	Role        string
	Product     string
	Link        string
	TTL         string
}

// Templates agrupa las plantillas html y texto plano.
type Templates struct {
	invitationHTML *template.Template
	invitationTXT  *texttpl.Template
}

// LoadTemplates parsea las plantillas embebidas.
func LoadTemplates() (*Templates, error) {
	h, err := template.ParseFS(templateFS, "templates/invitation.html")
	if err != nil {
		return nil, fmt.Errorf("email: parse invitation html: %w", err)
	}
	t, err := texttpl.ParseFS(templateFS, "templates/invitation.txt")
	if err != nil {
		return nil, fmt.Errorf("email: parse invitation txt: %w", err)
	}
	return &Templates{invitationHTML: h, invitationTXT: t}, nil
}

// MustLoadTemplates es LoadTemplates para inicialización.
func MustLoadTemplates() *Templates {
	t, err := LoadTemplates()
	if err != nil {
		panic(err)
	}
	return t
}

// Invitation arma el mensaje de invitación listo para Send.
func (t *Templates) Invitation(v InvitationVars) (Message, error) {
	var hb, tb bytes.Buffer
	if err := t.invitationHTML.Execute(&hb, v); err != nil {
		return Message{}, fmt.Errorf("email: render invitation html: %w", err)
	}
	if err := t.invitationTXT.Execute(&tb, v); err != nil {
		return Message{}, fmt.Errorf("email: render invitation txt: %w", err)
	}
	return Message{
		To:      v.Email,
		Subject: fmt.Sprintf("Te invitaron a %s", v.Product),
		Text:    tb.String(),
		HTML:    hb.String(),
	}, nil
}
