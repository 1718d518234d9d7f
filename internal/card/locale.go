package card

import (
	"fmt"
	"time"
)

// Msgs holds the user-facing flow texts for one language.
type Msgs struct {
	SlotsFound       string
	PickFromList     string
	NoAvailability   string
	ConfirmPrompt    string
	ConfirmLabel     string
	CancelLabel      string
	WaitlistLabel    string
	WaitlistJoined   string
	Booked           string
	SlotTaken        string
	SlotGoneReoffer  string
	Cancelled        string
	SessionExpired   string
	AlreadyConfirmed string
	TryAgainLater    string
	SomethingWrong   string
	ClarifyService   string
	NoMoreSlots      string
	Help             string
}

// locale bundles date/time/currency formatting with the message table.
type locale struct {
	dateLayout string
	clock24h   bool
	currency   map[string]string
	msgs       Msgs
}

func (loc locale) date(t time.Time) string {
	return t.Format(loc.dateLayout)
}

func (loc locale) clock(t time.Time) string {
	if loc.clock24h {
		return t.Format("15:04")
	}
	return t.Format("3:04 PM")
}

func (loc locale) price(cents int, currency string) string {
	symbol, ok := loc.currency[currency]
	if !ok {
		symbol = currency + " "
	}
	return fmt.Sprintf("%s%d.%02d", symbol, cents/100, cents%100)
}

var locales = map[string]locale{
	"en": {
		dateLayout: "Mon, Jan 2",
		clock24h:   false,
		currency:   map[string]string{"USD": "$", "EUR": "€", "GBP": "£"},
		msgs: Msgs{
			SlotsFound:       "Here are the closest openings with %s around %s. Tap a time to pick it.",
			PickFromList:     "Here's what's open. Tap a time to pick it.",
			NoAvailability:   "Sorry, no openings in the next two weeks. Want us to put you on the waitlist?",
			ConfirmPrompt:    "%s at %s with %s (%s). Confirm?",
			ConfirmLabel:     "Confirm",
			CancelLabel:      "Change / cancel",
			WaitlistLabel:    "Join waitlist",
			WaitlistJoined:   "You're on the waitlist. We'll message you when a spot opens.",
			Booked:           "You're booked! Your code is %s. See you %s at %s.",
			SlotTaken:        "Sorry, that slot was just taken. Send a new message to see fresh times.",
			SlotGoneReoffer:  "That time was just taken. Here are the closest times still open.",
			Cancelled:        "No problem, nothing was booked. Message us any time.",
			SessionExpired:   "That request expired. Please send a new message to start over.",
			AlreadyConfirmed: "That booking was already confirmed or has expired.",
			TryAgainLater:    "We couldn't reach the calendar just now. Please tap confirm again shortly.",
			SomethingWrong:   "Something went wrong, please try again.",
			ClarifyService:   "What would you like to book? For example: \"Haircut Friday 3pm\".",
			NoMoreSlots:      "No more times in that direction.",
			Help:             "Tell us what you'd like to book and when, e.g. \"Haircut Friday 3pm\".",
		},
	},
	"es": {
		dateLayout: "Mon 2 Jan",
		clock24h:   true,
		currency:   map[string]string{"USD": "$", "EUR": "€"},
		msgs: Msgs{
			SlotsFound:       "Estos son los horarios más cercanos con %s alrededor del %s. Toca uno para elegirlo.",
			PickFromList:     "Esto es lo que hay libre. Toca un horario para elegirlo.",
			NoAvailability:   "Lo sentimos, no hay huecos en las próximas dos semanas. ¿Te apuntamos a la lista de espera?",
			ConfirmPrompt:    "%s a las %s con %s (%s). ¿Confirmar?",
			ConfirmLabel:     "Confirmar",
			CancelLabel:      "Cambiar / cancelar",
			WaitlistLabel:    "Lista de espera",
			WaitlistJoined:   "Estás en la lista de espera. Te avisaremos cuando se libere un hueco.",
			Booked:           "¡Reservado! Tu código es %s. Nos vemos el %s a las %s.",
			SlotTaken:        "Lo sentimos, ese hueco se acaba de ocupar. Envía un mensaje nuevo para ver horarios.",
			SlotGoneReoffer:  "Ese horario se acaba de ocupar. Estos son los más cercanos que siguen libres.",
			Cancelled:        "Sin problema, no se reservó nada. Escríbenos cuando quieras.",
			SessionExpired:   "Esa solicitud caducó. Envía un mensaje nuevo para empezar de nuevo.",
			AlreadyConfirmed: "Esa reserva ya fue confirmada o ha caducado.",
			TryAgainLater:    "No pudimos acceder al calendario. Vuelve a tocar confirmar en un momento.",
			SomethingWrong:   "Algo salió mal, inténtalo de nuevo.",
			ClarifyService:   "¿Qué te gustaría reservar? Por ejemplo: \"Corte viernes 15:00\".",
			NoMoreSlots:      "No hay más horarios en esa dirección.",
			Help:             "Dinos qué quieres reservar y cuándo, p. ej. \"Corte viernes 15:00\".",
		},
	},
	"de": {
		dateLayout: "Mon, 2. Jan",
		clock24h:   true,
		currency:   map[string]string{"EUR": "€", "USD": "$"},
		msgs: Msgs{
			SlotsFound:       "Hier sind die nächsten freien Termine bei %s um den %s. Tippe auf eine Zeit.",
			PickFromList:     "Diese Zeiten sind frei. Tippe auf eine Zeit.",
			NoAvailability:   "Leider keine freien Termine in den nächsten zwei Wochen. Sollen wir dich auf die Warteliste setzen?",
			ConfirmPrompt:    "%s um %s bei %s (%s). Bestätigen?",
			ConfirmLabel:     "Bestätigen",
			CancelLabel:      "Ändern / stornieren",
			WaitlistLabel:    "Warteliste",
			WaitlistJoined:   "Du stehst auf der Warteliste. Wir melden uns, sobald ein Platz frei wird.",
			Booked:           "Gebucht! Dein Code ist %s. Bis %s um %s.",
			SlotTaken:        "Der Termin wurde gerade vergeben. Schick eine neue Nachricht für aktuelle Zeiten.",
			SlotGoneReoffer:  "Diese Zeit wurde gerade vergeben. Hier sind die nächsten noch freien Zeiten.",
			Cancelled:        "Kein Problem, es wurde nichts gebucht. Melde dich jederzeit.",
			SessionExpired:   "Die Anfrage ist abgelaufen. Bitte schick eine neue Nachricht.",
			AlreadyConfirmed: "Diese Buchung wurde bereits bestätigt oder ist abgelaufen.",
			TryAgainLater:    "Der Kalender ist gerade nicht erreichbar. Bitte tippe gleich erneut auf Bestätigen.",
			SomethingWrong:   "Etwas ist schiefgelaufen, bitte versuche es erneut.",
			ClarifyService:   "Was möchtest du buchen? Zum Beispiel: \"Haarschnitt Freitag 15:00\".",
			NoMoreSlots:      "Keine weiteren Zeiten in dieser Richtung.",
			Help:             "Sag uns, was du buchen möchtest und wann, z. B. \"Haarschnitt Freitag 15:00\".",
		},
	},
}
