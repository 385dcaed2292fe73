// Package knowledge answers factual questions about COB Company from a static
// corpus of documents.
package knowledge

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is one unit of company knowledge.
type Document struct {
	Title   string   `yaml:"title" json:"title"`
	Content string   `yaml:"content" json:"content"`
	Tags    []string `yaml:"tags" json:"tags"`
}

// corpusFile is the on-disk layout of a YAML corpus.
type corpusFile struct {
	Documents []Document `yaml:"documents"`
}

// LoadCorpus reads documents from a YAML file.
func LoadCorpus(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	return ParseCorpus(data)
}

// ParseCorpus decodes a YAML corpus. Documents without a title or content are rejected.
func ParseCorpus(data []byte) ([]Document, error) {
	var file corpusFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse corpus: %w", err)
	}
	if len(file.Documents) == 0 {
		return nil, fmt.Errorf("corpus has no documents")
	}
	for i, doc := range file.Documents {
		if strings.TrimSpace(doc.Title) == "" || strings.TrimSpace(doc.Content) == "" {
			return nil, fmt.Errorf("corpus document %d: title and content are required", i)
		}
	}
	return file.Documents, nil
}

// DefaultCorpus returns the built-in COB Company facts.
func DefaultCorpus() []Document {
	docs := make([]Document, len(builtinCorpus))
	copy(docs, builtinCorpus)
	return docs
}

var builtinCorpus = []Document{
	{
		Title: "Business Hours",
		Content: "Our business hours are Monday-Friday 9:00 AM - 6:00 PM EST. Sales is available " +
			"Monday-Friday 8:00 AM - 7:00 PM EST and 24/7 emergency support is available for critical issues.",
		Tags: []string{"hours", "open", "schedule", "time", "weekend", "sales"},
	},
	{
		Title: "Appointment Booking Policy",
		Content: "Appointments are available Monday-Friday 9:00 AM - 5:00 PM EST. Please book at least " +
			"24 hours in advance. Cancellation is free up to 2 hours before the appointment.",
		Tags: []string{"appointment", "booking", "book", "cancel", "cancellation", "advance", "reschedule"},
	},
	{
		Title: "Appointment Types",
		Content: "We offer a Product Demo (30 minutes), a Technical Consultation (45 minutes), a Sales " +
			"Meeting (60 minutes) and a Support Session (30 minutes).",
		Tags: []string{"demo", "consultation", "meeting", "session", "appointment", "duration"},
	},
	{
		Title: "Software Solutions",
		Content: "COB Company offers enterprise software including CRM, ERP and project management tools " +
			"with cloud deployment, custom integrations, mobile apps and an analytics dashboard. " +
			"Contact our sales team for customized pricing.",
		Tags: []string{"services", "products", "software", "crm", "erp", "pricing", "price", "cost"},
	},
	{
		Title: "Consulting Services",
		Content: "Our consultants provide IT consulting, digital transformation strategy, cloud migration, " +
			"process automation, data analytics and cybersecurity. Engagements are project-based, " +
			"retainer or hourly.",
		Tags: []string{"services", "consulting", "cloud", "migration", "cybersecurity", "analytics"},
	},
	{
		Title: "Support Levels",
		Content: "Support is offered at three levels: Basic (business hours), Premium (24/7) and " +
			"Enterprise (dedicated team). Response targets are 1 hour for critical, 4 hours for high, " +
			"24 hours for medium and 48 hours for low priority issues.",
		Tags: []string{"support", "levels", "premium", "enterprise", "response", "sla"},
	},
	{
		Title: "Contact Information",
		Content: "Email support@cobcompany.com or call 1-800-COB-HELP. Live chat is available 24/7 on our " +
			"website. Our headquarters is at 123 Technology Boulevard, Innovation City, IC 12345.",
		Tags: []string{"contact", "email", "phone", "call", "address", "chat"},
	},
	{
		Title:   "Office Locations",
		Content: "We have offices in San Francisco, New York, Austin, London and Toronto.",
		Tags:    []string{"locations", "office", "offices", "where", "city"},
	},
	{
		Title: "Refund and Cancellation Policy",
		Content: "Full refunds are available within 30 days of purchase. Services can be cancelled with " +
			"30 days notice and monthly subscriptions carry no cancellation fee.",
		Tags: []string{"refund", "policy", "cancel", "subscription", "money"},
	},
	{
		Title: "About COB Company",
		Content: "COB Company is a technology solutions provider established in 2010, serving over 10,000 " +
			"customers worldwide with software and consulting services.",
		Tags: []string{"about", "company", "history", "who"},
	},
}
