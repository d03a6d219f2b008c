package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"welcome-agent/pkg/ai"
)

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"

	fallbackSubject = "Welcome!"
)

var (
	emailLine      = regexp.MustCompile(`(?im)^\s*email\s*:\s*(\S+@\S+)`)
	confidenceLine = regexp.MustCompile(`(?im)^\s*\**confidence\**\s*:\s*\**\s*(high|medium|low)\b.*$`)
	codeFence      = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	subjectPrefix  = regexp.MustCompile(`(?i)^subject\s*:\s*`)
)

const userResearchSystem = `You research people who just signed up for a business so that their welcome email can be personalized.
Report only what you can support: role, company, industry, location and interests. If you cannot find reliable information, say so plainly.
Finish with a final line of the form "CONFIDENCE: high", "CONFIDENCE: medium" or "CONFIDENCE: low" rating how sure you are that your findings describe this exact person.`

const businessResearchSystem = `You are a marketing analyst. Describe a business in a way that helps write a welcome email for someone who just signed up. Be concrete and brief.`

const bodySystem = `You write short, warm and specific welcome emails.
Return only the HTML for the email body, without <html>, <head> or <body> tags, using <p>, <ul>, <li>, <strong> and <a> elements.
Never invent facts about the recipient or the business. Do not include a subject line.`

const subjectSystem = `You write email subject lines. Return one subject line of at most 60 characters and nothing else.`

func userResearchPrompt(signupInfo, purpose string) []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: userResearchSystem},
		{Role: ai.RoleUser, Content: fmt.Sprintf(
			"Signup information:\n%s\n\nThey signed up for: %s\n\nSummarize who this person is in at most 150 words.",
			signupInfo, orNone(purpose))},
	}
}

func businessResearchPrompt(signupInfo, website, purpose, summary, additional string) []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: businessResearchSystem},
		{Role: ai.RoleUser, Content: fmt.Sprintf(
			"Website: %s\nSignup purpose: %s\nWebsite summary: %s\nAdditional context: %s\n\nThe new signup:\n%s\n\n"+
				"Summarize what the business offers and what this new signup should know first, in at most 150 words.",
			orNone(website), orNone(purpose), orNone(summary), orNone(additional), signupInfo)},
	}
}

func bodyPrompt(directive, userInfo, businessInfo, signOff string) []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: bodySystem},
		{Role: ai.RoleUser, Content: fmt.Sprintf(
			"Instructions from the business: %s\n\nAbout the recipient:\n%s\n\nAbout the business:\n%s\n\nSign the email as: %s",
			orNone(directive), userInfo, businessInfo, signOff)},
	}
}

func subjectPrompt(userInfo string) []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: subjectSystem},
		{Role: ai.RoleUser, Content: "Write a welcome subject line for this person:\n" + userInfo},
	}
}

func websitePrompt(page string) []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: businessResearchSystem},
		{Role: ai.RoleUser, Content: "Summarize this website in at most 120 words: what the business sells, to whom, and its tone.\n\n" + page},
	}
}

// recipientFrom picks the structured email when present, else the "Email: x" line of the signup text.
func recipientFrom(email, signupInfo string) string {
	if email = strings.TrimSpace(email); email != "" {
		return strings.ToLower(email)
	}
	if m := emailLine.FindStringSubmatch(signupInfo); m != nil {
		return strings.ToLower(strings.TrimRight(m[1], ".,;>)"))
	}
	return ""
}

// splitConfidence removes the CONFIDENCE line from research output and returns the level.
// A missing line counts as low.
func splitConfidence(text string) (string, string) {
	matches := confidenceLine.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(text), ConfidenceLow
	}
	level := strings.ToLower(matches[len(matches)-1][1])
	return strings.TrimSpace(confidenceLine.ReplaceAllString(text, "")), level
}

func cleanBody(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	return strings.TrimSpace(s)
}

func cleanSubject(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = subjectPrefix.ReplaceAllString(s, "")
	s = strings.Trim(strings.TrimSpace(s), `"'*`)
	return strings.TrimSpace(s)
}

func fallbackBody(signOff string) string {
	return fmt.Sprintf("<p>Hi there,</p><p>Thanks for signing up! We're glad to have you with us and will be in touch soon.</p><p>Best,<br>%s</p>", signOff)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
