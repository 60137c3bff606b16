package notify

import (
	"strings"
	"testing"
	"time"
)

func TestTemplatesRenderInShopTimezone(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("BRT", -3*60*60)
	tpl := &Templates{
		Business: Business{
			Name:    "Mr.Borges",
			Address: []string{"Avenida Dom Severino 1524", "Teresina - PI"},
			Contact: "(86) 94061-106",
		},
		Location: loc,
	}
	a := testAppointment()
	a.ScheduledAt = time.Date(2026, 3, 10, 18, 30, 0, 0, time.UTC) // 15:30 BRT
	a.Notes = "sem máquina"

	got := tpl.Render(KindConfirmation, a)
	for _, want := range []string{
		"*João*",
		"Carlos",
		"Corte",
		"R$ 45.00",
		"10 de março às 15:30",
		"sem máquina",
		"Avenida Dom Severino 1524",
		"*Mr.Borges*",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("confirmation missing %q in:\n%s", want, got)
		}
	}

	reminder := tpl.Render(KindReminder, a)
	if !strings.Contains(reminder, "*15:30h*") {
		t.Fatalf("reminder missing local hour:\n%s", reminder)
	}
	if !strings.Contains(reminder, "10/03") {
		t.Fatalf("reminder missing day:\n%s", reminder)
	}

	cancel := tpl.Render(KindCancellation, a)
	if strings.Contains(cancel, "agende online") {
		t.Fatal("cancellation must omit booking link when unset")
	}
}

func TestTemplatesOmitEmptyNotes(t *testing.T) {
	t.Parallel()

	tpl := &Templates{Business: Business{Name: "Mr.Borges"}}
	a := testAppointment()
	a.Notes = ""

	if got := tpl.Render(KindConfirmation, a); strings.Contains(got, "Observações") {
		t.Fatalf("unexpected notes line:\n%s", got)
	}
}
