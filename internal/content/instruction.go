package content

import (
	"fmt"
	"strings"
)

// DefaultInstruction is used when the user has no prompt text.
const DefaultInstruction = "Give me a motivational quote"

// BuildInstruction renders the generation request for prompt, listing every
// entry of avoid as text the model must not resemble.
func BuildInstruction(prompt string, avoid []string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		prompt = DefaultInstruction
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generate a response based on the user's request, which is enclosed in <user_prompt> tags: <user_prompt>%s</user_prompt>", prompt)
	if len(avoid) > 0 {
		b.WriteString("\n\nIMPORTANT: Do not generate a response similar to any of the following, which are enclosed in <avoid_list> tags:\n<avoid_list>\n")
		for i, text := range avoid {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "- %q", text)
		}
		b.WriteString("\n</avoid_list>")
	}
	return b.String()
}
