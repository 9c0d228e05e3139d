package agent

import (
	"fmt"
	"strings"

	"github.com/cadueduardo/MAF/internal/domain"
)

// Scripted responses the generation policy falls back to. They are part of
// the prompt contract: absence of supporting context must yield these texts,
// never an invented answer.
const (
	// NotFoundMessage is returned when the context holds no answer at all.
	NotFoundMessage = "I could not find this information in the product knowledge base, but I can help with other questions about our products."
	// UnidentifiedProductMessage is returned when technical data matches but
	// cannot be tied to a named product.
	UnidentifiedProductMessage = "I found matching technical data, but I could not identify the product name associated with it."
)

// synonymPairs maps user vocabulary onto sheet vocabulary. The pairs are
// embedded verbatim in the system prompt.
var synonymPairs = [][2]string{
	{"Standards", "Automotive Specifications"},
	{"Specs", "Automotive Specifications"},
	{"Specification", "Automotive Specifications"},
}

// systemPrompt builds the grounding instruction block for answer synthesis.
// firstTurn toggles the greeting-suppression rule.
func systemPrompt(results []domain.SearchResult, firstTurn bool) string {
	var b strings.Builder
	b.WriteString("You are MAF (My Agent Friend), a specialist assistant for the company's industrial compound products.\n")
	b.WriteString("Answer questions using ONLY the technical data sheets in the context below. The context is the only source of truth.\n\n")
	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "1. If the answer is not present in the context, reply exactly: %q. Never guess, never invent values.\n", NotFoundMessage)
	fmt.Fprintf(&b, "2. Every data table in your answer must carry the product name as its FIRST column. Product names come only from the PRODUCT: field of a sheet. If technical data matches the question but cannot be tied to a PRODUCT: name inside the same sheet, reply exactly: %q. A made-up or generic product label is never acceptable.\n", UnidentifiedProductMessage)
	b.WriteString("3. Resolve follow-up references (\"it\", \"its\", \"that one\") against the most recently discussed product in the conversation history.\n")
	if firstTurn {
		b.WriteString("4. You may greet the user briefly on this first message.\n")
	} else {
		b.WriteString("4. Do not greet the user or add pleasantries; answer directly.\n")
	}
	b.WriteString("5. Render tabular data as markdown tables, never as plain-text columns.\n")
	b.WriteString("6. If the exact requested item is absent but the context contains products of the same category or with similar properties, offer them as alternatives instead of a plain miss.\n")
	b.WriteString("7. Treat these terms as synonyms when matching the question against sheet vocabulary:\n")
	for _, pair := range synonymPairs {
		fmt.Fprintf(&b, "   - %q means %q\n", pair[0], pair[1])
	}
	b.WriteString("8. Answer in the same language as the question.\n")
	b.WriteString("\nContext:\n")
	for _, r := range results {
		b.WriteString(r.Sheet.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// rewriteMessages asks the model to turn a follow-up question into a
// standalone search query using the conversation so far.
func rewriteMessages(history []domain.Message, question string) []domain.Message {
	var b strings.Builder
	b.WriteString("Given the conversation below, rewrite the final question as a fully self-contained search query in the same language as the input. ")
	b.WriteString("Replace pronouns and references with the product names they refer to. ")
	b.WriteString("Do NOT answer the question. ")
	b.WriteString("If the question is unrelated to the conversation, return it unchanged.\n\nConversation:\n")
	for _, msg := range history {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	fmt.Fprintf(&b, "\nFinal question: %s\n\nStandalone query:", question)
	return []domain.Message{{Role: domain.RoleUser, Content: b.String()}}
}

// suggestionMessages asks the model for exactly one short question about one
// sheet.
func suggestionMessages(s domain.Sheet) []domain.Message {
	var b strings.Builder
	b.WriteString("Below is one technical data sheet. Write exactly ONE short, direct question a customer might ask about this product. ")
	b.WriteString("Return only the question, with no numbering, quotes or commentary.\n\n")
	b.WriteString(s.Text)
	return []domain.Message{{Role: domain.RoleUser, Content: b.String()}}
}
