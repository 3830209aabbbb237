package ai

import (
	"fmt"
	"strings"
)

// StudySystem is the system instruction used for tutoring replies.
const StudySystem = "You are a helpful AI Study Buddy. Provide clear, educational responses that help students learn effectively."

// SummarySystem is the system instruction used for session summaries.
const SummarySystem = "You are a helpful assistant that summarizes study sessions."

// StudyPrompt wraps the student's input with tutoring guidance and any
// retrieved knowledge context.
func StudyPrompt(userInput, context string) string {
	return fmt.Sprintf(`
You are an AI Study Buddy designed to help students learn effectively. You provide clear, educational responses that encourage learning and understanding.

Context from previous conversations: %s

Student's question or input: %s

Please provide a helpful, educational response that:
1. Directly addresses the student's question
2. Explains concepts clearly and simply
3. Provides examples when helpful
4. Encourages further learning
5. Asks follow-up questions to deepen understanding

Response:`, context, userInput)
}

// SummaryPrompt asks for a short recap of the listed exchanges. Only the
// last ten turns are included.
func SummaryPrompt(turns []Turn) string {
	if len(turns) > 10 {
		turns = turns[len(turns)-10:]
	}
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "Student: %s\nAI: %s", t.UserInput, t.AIResponse)
	}
	return fmt.Sprintf(`
Please provide a brief summary of this study session, highlighting key topics discussed and learning points:

%s

Summary:`, b.String())
}
