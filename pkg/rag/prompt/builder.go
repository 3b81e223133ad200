package prompt

import (
	"fmt"
	"strings"

	"zara-assistant-be/pkg/rag"
)

// GroundedBuilder builds the answer prompt that confines the model to the
// retrieved passages.
type GroundedBuilder struct {
	query     string
	passages  []rag.Passage
	dbContext string
}

// NewGroundedBuilder creates a new grounded prompt builder
func NewGroundedBuilder(query string, passages []rag.Passage) *GroundedBuilder {
	return &GroundedBuilder{
		query:    query,
		passages: passages,
	}
}

// WithDatabaseContext appends a summary of what the data store holds.
func (b *GroundedBuilder) WithDatabaseContext(summary string) *GroundedBuilder {
	b.dbContext = summary
	return b
}

func (b *GroundedBuilder) Build() string {
	var prompt strings.Builder

	b.writeInstructions(&prompt)
	b.writeContext(&prompt)
	b.writeDatabaseContext(&prompt)
	b.writeQuestion(&prompt)

	return prompt.String()
}

func (b *GroundedBuilder) writeInstructions(prompt *strings.Builder) {
	prompt.WriteString("Answer ONLY using the CONTEXT. If insufficient, say so. ")
	prompt.WriteString("Cite sources inline as [file_id p.page]. ")
	prompt.WriteString("Append a JSON array 'citations' with items {file_id,page,section}.\n\n")
}

func (b *GroundedBuilder) writeContext(prompt *strings.Builder) {
	prompt.WriteString("CONTEXT:\n")
	for i, p := range b.passages {
		if i > 0 {
			prompt.WriteString("\n\n")
		}
		fmt.Fprintf(prompt, "[%d] file_id=%s page=%d section=%s\n%s", i+1, p.FileID, p.Page, p.Section, p.Text)
	}
	prompt.WriteString("\n\n")
}

func (b *GroundedBuilder) writeDatabaseContext(prompt *strings.Builder) {
	if strings.TrimSpace(b.dbContext) == "" {
		return
	}
	prompt.WriteString("DATABASE:\n")
	prompt.WriteString(b.dbContext)
	prompt.WriteString("\n\n")
}

func (b *GroundedBuilder) writeQuestion(prompt *strings.Builder) {
	prompt.WriteString("QUESTION: ")
	prompt.WriteString(b.query)
	prompt.WriteString("\nANSWER:")
}
