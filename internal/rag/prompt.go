package rag

import (
	"strings"

	"github.com/suPer8Hu/pdf-rag/internal/vectorstore"
)

const FallbackAnswer = "I could not find the answer in the provided document."

const instruction = `Answer the following question based only on the provided context.
If you cannot find the answer in the context, just say, "` + FallbackAnswer + `"
Provide a detailed and comprehensive answer based on the context.`

// BuildPrompt stuffs the retrieved chunks, in retrieval order, into a single
// prompt for the generator.
func BuildPrompt(question string, matches []vectorstore.Match) string {
	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		texts = append(texts, m.Text)
	}

	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\n<context>\n")
	b.WriteString(strings.Join(texts, "\n\n"))
	b.WriteString("\n</context>\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
