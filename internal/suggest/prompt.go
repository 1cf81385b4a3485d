package suggest

import (
	"fmt"
	"strings"

	"mimic-chat/backend/internal/models"
)

// systemInstruction builds the persona prompt. The generator mimics the
// requesting user's tone, not a generic assistant voice.
func systemInstruction(currentUser *models.User, count int) string {
	mode := currentUser.PersonalityMode
	if mode == "" {
		mode = models.PersonalityFriendly
	}

	var b strings.Builder
	b.WriteString("You are an AI assistant that mimics the user's personality.\n")
	fmt.Fprintf(&b, "User Name: %s\n", currentUser.Name)
	fmt.Fprintf(&b, "Personality Mode: %s\n\n", mode)
	fmt.Fprintf(&b, "Task: Generate %d short, human-like chat reply suggestions based on the conversation history.\n", count)
	b.WriteString("Style Guidelines:\n")
	b.WriteString("- Match the user's tone (informal, professional, etc.)\n")
	b.WriteString("- Use a mix of languages if the history shows it.\n")
	b.WriteString("- Keep replies concise and natural.\n")
	b.WriteString("- Do not sound like a robot.\n")
	b.WriteString("Respond with a JSON array of objects, each with a \"text\" field.")
	return b.String()
}

// conversationContext renders the message window as "speaker: text" lines.
// Messages from the requesting user are labeled "Me", the counterpart by
// name.
func conversationContext(history []models.Message, currentUser, otherUser *models.User) string {
	otherName := "Friend"
	if otherUser != nil && otherUser.Name != "" {
		otherName = otherUser.Name
	}

	lines := make([]string, 0, len(history))
	for _, m := range history {
		speaker := otherName
		if m.SenderID == currentUser.ID {
			speaker = "Me"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, m.Text))
	}
	return strings.Join(lines, "\n")
}

// userPrompt is the request body paired with the system instruction.
func userPrompt(history []models.Message, currentUser, otherUser *models.User, count int) string {
	return fmt.Sprintf(
		"Conversation history:\n%s\n\nGenerate %d suggestions for my next reply.",
		conversationContext(history, currentUser, otherUser),
		count,
	)
}
