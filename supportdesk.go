// Package supportdesk provides a conversational customer-support orchestrator as a Go library.
//
// Every user message is classified by a language oracle, routed to the matching
// handler (knowledge answers, appointment booking, greetings, hand-off) and answered
// with a reply, follow-up suggestions and an escalation flag. Conversation state is
// kept per session; turns of one session are serialized while different sessions
// run in parallel.
//
// supportdesk can be used in two modes:
//   - Library Mode: Import and call Client.ProcessTurn directly
//   - Server Mode: Run cmd/server, which exposes the same client over HTTP
//
// Basic usage:
//
//	client, err := supportdesk.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(context.Background())
//
//	res := client.ProcessTurn(ctx, "", "I'd like to book a demo", "")
//	fmt.Println(res.Reply, res.TaskState)
package supportdesk

import (
	"github.com/blueberrycongee/supportdesk/internal/conversation"
	"github.com/blueberrycongee/supportdesk/internal/knowledge"
	"github.com/blueberrycongee/supportdesk/internal/session"
	"github.com/blueberrycongee/supportdesk/pkg/types"
)

// Version is the current version of supportdesk.
const Version = "1.0.0"

// Re-export core types for convenience.
type (
	// TurnResult is the reply to one user message.
	TurnResult = types.TurnResult

	// TurnRecord is the persisted view of one turn.
	TurnRecord = types.TurnRecord

	// Intent is the classified purpose of a message.
	Intent = types.Intent

	// Entities are the slot values extracted from a message.
	Entities = types.Entities

	// TaskState is the phase of the in-flight scheduling task.
	TaskState = types.TaskState

	// Policy holds the escalation thresholds.
	Policy = conversation.Policy

	// Session is the full conversation state of one session.
	Session = session.Context

	// SessionSummary is the listing view of a session.
	SessionSummary = session.Summary

	// Document is one knowledge corpus entry.
	Document = knowledge.Document
)

// DefaultPolicy returns the standard escalation thresholds.
func DefaultPolicy() Policy {
	return conversation.DefaultPolicy()
}
