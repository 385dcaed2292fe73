package oracle

import (
	"fmt"
	"strings"

	"github.com/blueberrycongee/supportdesk/pkg/types"
)

// SystemPrompt frames every oracle call as the COB Company support assistant.
const SystemPrompt = `You are a professional customer service assistant for COB Company, a technology solutions provider.
You answer questions about COB Company's products, services and policies, help customers schedule
appointments, and hand conversations to human agents when appropriate.
Be professional, helpful and concise. Never invent policies, prices or appointment slots.

Available appointment types:
- Product Demo (30 min)
- Technical Consultation (45 min)
- Sales Meeting (60 min)
- Support Session (30 min)`

const classifyInstruction = `Classify the customer's message into exactly one intent:
- greeting: the customer says hello or starts the conversation
- goodbye: the customer ends the conversation
- knowledge_query: the customer asks about products, services, policies or company information
- action_request: the customer wants to schedule an appointment or take another action
- human_escalation: the customer is frustrated, needs complex help or asks for a human agent
- confirmation: the customer confirms or provides requested information

Respond with a single JSON object and nothing else:
{"intent": "<intent>", "confidence": <number between 0 and 1>, "entities": {<slot>: <value>}}
Only include entities that are clearly mentioned.`

const extractInstruction = `Extract appointment details from the customer's message.
Use these keys: name, email, phone, date, time, service_type, requirements.
service_type is one of: Product Demo, Technical Consultation, Sales Meeting, Support Session.
Dates and times may be relative ("next Tuesday", "afternoon"); keep them as written.
Only include fields that are clearly mentioned and use null for anything missing.
Respond with a single JSON object and nothing else, for example:
{"name": "John Smith", "email": "john@email.com", "phone": null, "date": "next Tuesday", "time": "2 PM", "service_type": "Product Demo", "requirements": null}`

// roleInstructions shape free-text generation per reply role.
var roleInstructions = map[Role]string{
	RoleGreeting: "Write a warm, professional greeting. Welcome the customer, mention briefly " +
		"what you can help with and invite them to ask a question. Keep it to two sentences.",
	RoleGoodbye: "Write a professional goodbye. Thank the customer, mention support@cobcompany.com " +
		"and 1-800-COB-HELP for future needs and close warmly. Keep it to two sentences.",
	RoleKnowledge: "Answer the customer's question using only the reference information provided. " +
		"If the reference does not contain the answer, say so and offer to connect a human agent. " +
		"Be concise and specific.",
	RoleEscalation: "Write a reassuring message explaining that the conversation is being handed to " +
		"a human agent. Acknowledge the customer's need, explain what happens next and mention " +
		"support@cobcompany.com and 1-800-COB-HELP as alternatives.",
	RoleFallback: "Acknowledge the customer's message, offer assistance and suggest what you can help " +
		"with: company information, appointment scheduling or reaching a human agent.",
}

func classifyPrompt(text string, hint Hint) string {
	var b strings.Builder
	b.WriteString(classifyInstruction)
	b.WriteString("\n\nConversation state:\n")
	if hint.CurrentAction != "" {
		fmt.Fprintf(&b, "- in-progress task: %s\n", hint.CurrentAction)
	} else {
		b.WriteString("- in-progress task: none\n")
	}
	if len(hint.MissingSlots) > 0 {
		fmt.Fprintf(&b, "- still needed from the customer: %s\n", strings.Join(hint.MissingSlots, ", "))
	}
	if hint.AwaitingConfirmation {
		b.WriteString("- waiting for the customer to confirm an appointment summary\n")
	}
	if recent := formatHistory(hint.History, 3); recent != "" {
		b.WriteString("\nRecent conversation:\n")
		b.WriteString(recent)
	}
	fmt.Fprintf(&b, "\nMessage: %q", text)
	return b.String()
}

func extractPrompt(text string) string {
	return fmt.Sprintf("%s\n\nMessage: %q", extractInstruction, text)
}

func roleSystemPrompt(role Role) string {
	instruction, ok := roleInstructions[role]
	if !ok {
		instruction = roleInstructions[RoleFallback]
	}
	return SystemPrompt + "\n\n" + instruction
}

func formatHistory(history []types.HistoryTurn, limit int) string {
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	var b strings.Builder
	for _, h := range history {
		fmt.Fprintf(&b, "Customer: %s\nAssistant: %s\n", h.User, h.Bot)
	}
	return b.String()
}
