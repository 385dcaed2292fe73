package conversation

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/blueberrycongee/supportdesk/pkg/types"
)

const contactGuidance = "You can also reach our support team at support@cobcompany.com or 1-800-COB-HELP."

// ApologyReply is returned whenever a turn cannot be processed normally.
const ApologyReply = "I apologize, but I'm having trouble processing your request right now. " + contactGuidance

const (
	greetingReply = "Hello! Welcome to COB Company. I can answer questions about our services, " +
		"help you book an appointment or connect you with a member of our team. How can I help you today?"
	goodbyeReply = "Thank you for contacting COB Company! If you need anything else, reach us at " +
		"support@cobcompany.com or 1-800-COB-HELP. Have a great day!"
	escalationReply = "I understand you'd like additional help. I'm connecting you with one of our " +
		"human agents, who will be with you shortly. " + contactGuidance
	acknowledgementReply = "Thanks for confirming! Is there anything else I can help you with?"
	genericActionReply   = "I'd be happy to help with that. Right now I can book appointments such as a " +
		"Product Demo, Technical Consultation, Sales Meeting or Support Session. For anything else, " +
		"please contact support@cobcompany.com or 1-800-COB-HELP."
	abandonedReply = "No problem, I've cancelled that booking and cleared the details. " +
		"Whenever you're ready, just tell me you'd like to schedule an appointment and we can start again."
)

var appointmentTypes = []string{"Product Demo (30 minutes)", "Technical Consultation (45 minutes)",
	"Sales Meeting (60 minutes)", "Support Session (30 minutes)"}

var titleCaser = cases.Title(language.English)

// slotLabel renders a slot key for customers, e.g. service_type becomes "Service Type".
func slotLabel(slot string) string {
	return titleCaser.String(strings.ReplaceAll(slot, "_", " "))
}

// missingSlotsReply asks for exactly the slots in missing.
func missingSlotsReply(missing []string, starting bool) string {
	labels := make([]string, len(missing))
	for i, slot := range missing {
		labels[i] = slotLabel(slot)
	}

	var b strings.Builder
	if starting {
		b.WriteString("I'd be happy to help you schedule an appointment! ")
	} else {
		b.WriteString("Thanks! ")
	}
	fmt.Fprintf(&b, "I still need the following: %s.", strings.Join(labels, ", "))
	for _, slot := range missing {
		if slot == types.SlotServiceType {
			fmt.Fprintf(&b, " Available appointment types: %s.", strings.Join(appointmentTypes, ", "))
			break
		}
	}
	return b.String()
}

// confirmationSummary lists every collected field and the reference id.
func confirmationSummary(info types.Entities, required []string, referenceID string) string {
	var b strings.Builder
	b.WriteString("Great, I have everything I need. Please confirm your appointment details:\n")
	seen := make(map[string]bool, len(required))
	for _, slot := range required {
		seen[slot] = true
		fmt.Fprintf(&b, "- %s: %s\n", slotLabel(slot), info.Get(slot))
	}
	for _, key := range info.Keys() {
		if seen[key] || !info.Has(key) {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", slotLabel(key), info.Get(key))
	}
	fmt.Fprintf(&b, "Reference: %s\nReply \"yes\" to confirm or \"no\" to cancel.", referenceID)
	return b.String()
}

func bookedReply(info types.Entities, referenceID string) string {
	return fmt.Sprintf("Your %s is confirmed for %s at %s. Your reference number is %s. "+
		"A confirmation will be sent to %s.",
		info.Get(types.SlotServiceType), info.Get(types.SlotDate), info.Get(types.SlotTime),
		referenceID, info.Get(types.SlotEmail))
}
