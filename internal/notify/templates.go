package notify

import (
	"fmt"
	"strings"
	"time"

	"agendazap/internal/appointments"
)

// Business carries the shop identity rendered into every message.
type Business struct {
	Name       string
	Address    []string
	Contact    string
	BookingURL string
}

// Templates renders the pt-BR WhatsApp message bodies. Scheduled times
// are shown in the shop's timezone, not UTC.
type Templates struct {
	Business Business
	Location *time.Location
}

var ptMonths = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

func (t *Templates) local(at time.Time) time.Time {
	if t.Location != nil {
		return at.In(t.Location)
	}
	return at
}

func (t *Templates) longDate(at time.Time) string {
	at = t.local(at)
	return fmt.Sprintf("%02d de %s às %02d:%02d",
		at.Day(), ptMonths[at.Month()-1], at.Hour(), at.Minute())
}

// Render produces the message body for one notification kind.
func (t *Templates) Render(kind Kind, a *appointments.Appointment) string {
	switch kind {
	case KindConfirmation:
		return t.confirmation(a)
	case KindReminder:
		return t.reminder(a)
	case KindCancellation:
		return t.cancellation(a)
	default:
		return ""
	}
}

func (t *Templates) confirmation(a *appointments.Appointment) string {
	var b strings.Builder
	b.WriteString("🎉 *Agendamento Confirmado!*\n\n")
	fmt.Fprintf(&b, "Olá, *%s*!\n\n", a.Customer.Name)
	b.WriteString("Seu agendamento foi confirmado com sucesso:\n\n")
	fmt.Fprintf(&b, "👨‍💼 *Profissional:* %s\n", a.Provider.Name)
	fmt.Fprintf(&b, "✂️ *Serviço:* %s\n", a.Service.Name)
	fmt.Fprintf(&b, "💰 *Valor:* R$ %.2f\n", a.Service.Price)
	fmt.Fprintf(&b, "📅 *Data:* %s\n", t.longDate(a.ScheduledAt))
	if a.Notes != "" {
		fmt.Fprintf(&b, "📝 *Observações:* %s\n", a.Notes)
	}
	t.writeAddress(&b)
	b.WriteString("⏰ Por favor, chegue com 5 minutos de antecedência.\n\n")
	fmt.Fprintf(&b, "Precisa reagendar? Entre em contato:\n📱 %s\n\n", t.Business.Contact)
	fmt.Fprintf(&b, "Nos vemos em breve! 💈\n*%s*", t.Business.Name)
	return b.String()
}

func (t *Templates) reminder(a *appointments.Appointment) string {
	at := t.local(a.ScheduledAt)
	hour := fmt.Sprintf("%02d:%02d", at.Hour(), at.Minute())

	var b strings.Builder
	b.WriteString("⏰ *Lembrete: Seu horário está chegando!*\n\n")
	fmt.Fprintf(&b, "Olá, *%s*! 👋\n\n", a.Customer.Name)
	fmt.Fprintf(&b, "Seu agendamento é *HOJE* às *%sh*!\n\n", hour)
	b.WriteString("📋 *Detalhes:*\n")
	fmt.Fprintf(&b, "👨‍💼 Profissional: %s\n", a.Provider.Name)
	fmt.Fprintf(&b, "✂️ Serviço: %s\n", a.Service.Name)
	fmt.Fprintf(&b, "📅 Data: %02d/%02d\n", at.Day(), int(at.Month()))
	fmt.Fprintf(&b, "🕐 Horário: %sh\n", hour)
	t.writeAddress(&b)
	b.WriteString("💡 *Dica:* Chegue com 5 minutos de antecedência!\n\n")
	fmt.Fprintf(&b, "❌ Não poderá comparecer?\nAvise-nos: %s\n\n", t.Business.Contact)
	fmt.Fprintf(&b, "Estamos te esperando! 💈✨\n*%s*", t.Business.Name)
	return b.String()
}

func (t *Templates) cancellation(a *appointments.Appointment) string {
	var b strings.Builder
	b.WriteString("❌ *Agendamento Cancelado*\n\n")
	fmt.Fprintf(&b, "Olá, *%s*,\n\n", a.Customer.Name)
	b.WriteString("Seu agendamento foi cancelado:\n\n")
	fmt.Fprintf(&b, "👨‍💼 *Profissional:* %s\n", a.Provider.Name)
	fmt.Fprintf(&b, "✂️ *Serviço:* %s\n", a.Service.Name)
	fmt.Fprintf(&b, "📅 *Data:* %s\n\n", t.longDate(a.ScheduledAt))
	fmt.Fprintf(&b, "Se deseja reagendar, entre em contato:\n📱 %s\n\n", t.Business.Contact)
	if t.Business.BookingURL != "" {
		fmt.Fprintf(&b, "Ou agende online:\n🌐 %s\n\n", t.Business.BookingURL)
	}
	fmt.Fprintf(&b, "*%s*", t.Business.Name)
	return b.String()
}

func (t *Templates) writeAddress(b *strings.Builder) {
	if len(t.Business.Address) == 0 {
		b.WriteString("\n")
		return
	}
	b.WriteString("\n📍 *Endereço:*\n")
	for _, line := range t.Business.Address {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
