package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/rxwizard/internal/catalog"
	"github.com/ppiankov/rxwizard/internal/model"
	"github.com/ppiankov/rxwizard/internal/wizard"
)

// DefaultSystemPrompt constrains the model to compliant, self-contained HTML
const DefaultSystemPrompt = `You write promotional pharmaceutical content for a regulated brand team.
Return a single self-contained HTML document and nothing else.
Every efficacy, safety or dosing claim MUST carry an inline citation as <sup>N</sup>
using ONLY the reference numbers you are given. Never invent a reference number.
Include an "Important Safety Information" section at the end of the body.`

// BuildPrompt constructs the generation prompt from the collected wizard answers
// and the approved reference list
func BuildPrompt(domain model.Domain, data map[string]string, c *catalog.Catalog) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Create %s for %s.\n\n", contentKind(domain, data), value(data, wizard.FieldProductName, c.Product()))

	b.WriteString("Brief:\n")
	for _, line := range briefLines(domain, data) {
		fmt.Fprintf(&b, "- %s\n", line)
	}

	b.WriteString("\nApproved references (cite by number only):\n")
	for _, ref := range c.References() {
		fmt.Fprintf(&b, "%d. %s\n", ref.Number, ref.Citation)
	}

	fmt.Fprintf(&b, "\nReference %d must always be cited at least once.\n", c.Base())
	b.WriteString("Do not write a references list; it is generated from your citations.\n")

	return b.String()
}

// AllowedURLs lists the source URLs of the catalog's references
func AllowedURLs(c *catalog.Catalog) []string {
	var urls []string
	for _, ref := range c.References() {
		if ref.URL != "" {
			urls = append(urls, ref.URL)
		}
	}
	return urls
}

func contentKind(domain model.Domain, data map[string]string) string {
	switch domain {
	case model.DomainHCPEmail:
		return fmt.Sprintf("an HCP email (%s)", emailTypeLabel(data[wizard.FieldEmailType]))
	case model.DomainSocialMedia:
		return fmt.Sprintf("a %s post", value(data, wizard.FieldPlatform, "social media"))
	case model.DomainVideo:
		return fmt.Sprintf("a %s video script", value(data, wizard.FieldVideoType, "short"))
	default:
		return "marketing content"
	}
}

func briefLines(domain model.Domain, data map[string]string) []string {
	var lines []string
	add := func(label, field string) {
		if v := data[field]; v != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", label, v))
		}
	}

	switch domain {
	case model.DomainHCPEmail:
		add("Target audience", wizard.FieldTargetAudience)
		add("Segment", wizard.FieldSegment)
		add("Key message", wizard.FieldKeyMessage)
		add("Emphasize", wizard.FieldEmphasis)
	case model.DomainSocialMedia:
		add("Written for", wizard.FieldTarget)
		add("Message", wizard.FieldMessage)
		if data[wizard.FieldPlatform] == "twitter" {
			lines = append(lines, "Keep the post body under 280 characters")
		}
	case model.DomainVideo:
		add("Starting image", wizard.FieldImageURL)
		add("Image to generate", wizard.FieldImagePrompt)
		add("Target audience", wizard.FieldTargetAudience)
		add("Animation and key message", wizard.FieldAnimation)
	}

	if len(lines) == 0 {
		lines = append(lines, "No further details provided")
	}
	return lines
}

func emailTypeLabel(t string) string {
	switch t {
	case "moa":
		return "mechanism of action"
	case "summary":
		return "clinical summary"
	case "dosing":
		return "dosing and administration"
	default:
		return "general"
	}
}

func value(data map[string]string, field, fallback string) string {
	if v := data[field]; v != "" {
		return v
	}
	return fallback
}
