package llm

import (
	"fmt"
	"strings"

	"github.com/olehluchkiv/llimpl/internal/decl"
)

// SystemPrompt frames the backend as a Go method-body generator.
const SystemPrompt = `You are a Go code generator. Return only valid Go code for method bodies.
Do not include backticks or markdown.
Follow the provided signatures exactly and do not change them.
If something is unspecified, make reasonable, deterministic choices.
Use only the standard library unless the context explicitly asks otherwise.`

// UserPrompt describes the declaration to implement: interface, receiver
// type, method signatures in order, the declaration source, and the hint
// when present.
func UserPrompt(dc decl.Context) string {
	var b strings.Builder

	b.WriteString("Implement the following Go methods.\n")
	b.WriteString("Do not change the signatures. Provide only the method bodies, without the func line.\n\n")
	b.WriteString("Context:\n")
	if dc.Interface != "" {
		b.WriteString(fmt.Sprintf("- Interface: %s\n", dc.Interface))
	} else {
		b.WriteString("- Interface: (none, implement the methods of the type itself)\n")
	}
	b.WriteString(fmt.Sprintf("- Receiver type: %s\n", dc.Type))
	b.WriteString("- Methods:\n")
	for i, m := range dc.Methods {
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, m.Signature))
	}
	if dc.Skeleton != "" {
		b.WriteString("\nDeclaration (fields and existing methods; the methods to implement have no body):\n")
		for _, line := range strings.Split(dc.Skeleton, "\n") {
			if line != "" {
				b.WriteString("    " + line)
			}
			b.WriteString("\n")
		}
	}
	if dc.Hint != "" {
		b.WriteString(fmt.Sprintf("\nAdditional hint: %s\n", dc.Hint))
	}

	return b.String()
}

// FormatInstruction tells the backend the exact shape of the answer.
func FormatInstruction(n int) string {
	return fmt.Sprintf(`Return ONLY a JSON object of the form {"bodies":["{ /* body 1 */ }","{ /* body 2 */ }"]}.
Each string must parse as a Go block for the corresponding method, in the order listed.
Return exactly %d bodies.`, n)
}

// buildMessages returns the three chat messages sent for a declaration.
func buildMessages(dc decl.Context) []chatMessage {
	return []chatMessage{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: UserPrompt(dc)},
		{Role: "user", Content: FormatInstruction(len(dc.Methods))},
	}
}
