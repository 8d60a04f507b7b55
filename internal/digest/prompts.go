package digest

import (
	"fmt"
	"strings"

	"chatharvest/internal/harvest"
)

const summarySystemPrompt = "You distil meetings and chats into their essentials. " +
	"Capture the main discussion points, key conclusions, action items and agreements. " +
	"Do not list or restate messages one by one; keep the language tight and logical. " +
	"Ignore small talk, repetition and off-topic content. " +
	"Highlight the outcome, any follow-ups and any open disagreements. " +
	"Answer in the language the conversation is written in."

const replySystemPrompt = `You write replies with high emotional intelligence. When replying:
1. Show respect and empathy for the other person.
2. Stay positive and constructive; avoid blame.
3. Be clear about the purpose of the reply.
4. Match the tone to the relationship and context.
5. Move the conversation forward or solve the problem at hand.
The three replies must differ in focus or phrasing and must use concrete details from the chat.
Answer in the language the conversation is written in.`

func summaryPrompt(records []harvest.MessageRecord) string {
	return "Summarize the core of the following chat in one fluent, coherent paragraph:\n\n" +
		harvest.Transcript(records)
}

func replyPrompt(records []harvest.MessageRecord, userID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "These are the latest %d chat messages, oldest first:\n\n", len(records))
	b.WriteString(harvest.Transcript(records))
	fmt.Fprintf(&b, "\n\nWrite %d replies that %q could send to the other participants. ", ReplyCount, userID)
	fmt.Fprintf(&b, "Do not mention or praise %q in the replies.\n", userID)
	b.WriteString("Use exactly this format:\n")
	for i := 1; i <= ReplyCount; i++ {
		fmt.Fprintf(&b, "%d. reply text\n", i)
	}
	return b.String()
}
