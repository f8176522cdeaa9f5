// Package email envía notificaciones transaccionales. Hoy el único caso es
// la invitación a un nuevo miembro del equipo.
package email

import (
	"context"
	"errors"
	"strings"
)

// Message es un email listo para enviar.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Receipt identifica un envío aceptado por el proveedor.
type Receipt struct {
	MessageID string
}

// Dispatcher entrega mensajes. Debe respetar la cancelación de ctx.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// ErrInvalidMessage se devuelve si falta destinatario, asunto o cuerpo.
var ErrInvalidMessage = errors.New("email: message needs recipient, subject and body")

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" || m.Subject == "" || (m.Text == "" && m.HTML == "") {
		return ErrInvalidMessage
	}
	return nil
}
