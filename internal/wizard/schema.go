package wizard

import (
	"fmt"

	"github.com/ppiankov/rxwizard/internal/model"
)

// Field names shared with content assembly
const (
	FieldProductName    = "productName"
	FieldEmailType      = "emailType"
	FieldTargetAudience = "targetAudience"
	FieldSegment        = "segment"
	FieldKeyMessage     = "keyMessage"
	FieldEmphasis       = "emphasis"
	FieldPlatform       = "platform"
	FieldTarget         = "target"
	FieldMessage        = "message"
	FieldImageSource    = "imageSource"
	FieldImageURL       = "imageUrl"
	FieldImagePrompt    = "imagePrompt"
	FieldVideoType      = "videoType"
	FieldAnimation      = "animation"
)

// GenerateKeyword confirms generation at the final HCP email step
const GenerateKeyword = "generate"

// Field is one scripted question and the parser for its answer
type Field struct {
	Name   string
	Prompt string
	Parse  Parser

	// Variant replaces the field based on earlier answers (video image URL vs image prompt)
	Variant func(data map[string]string) Field
}

// Schema is a domain's strictly linear step list
type Schema struct {
	Domain model.Domain
	Label  string // Human name of the content produced
	Fields []Field
}

// Steps returns the number of scripted steps
func (s *Schema) Steps() int {
	return len(s.Fields)
}

// FieldAt resolves the field asked at a zero-based position, applying any variant
func (s *Schema) FieldAt(pos int, data map[string]string) (Field, bool) {
	if pos < 0 || pos >= len(s.Fields) {
		return Field{}, false
	}
	f := s.Fields[pos]
	if f.Variant != nil {
		f = f.Variant(data)
	}
	return f, true
}

func (s *Schema) generating(data map[string]string) string {
	product := data[FieldProductName]
	return fmt.Sprintf("Generating your %s for %s. This may take a moment...", s.Label, product)
}

func (s *Schema) done() string {
	return fmt.Sprintf("Your %s has already been generated. Start a new conversation to create another.", s.Label)
}

var productNameField = Field{
	Name:   FieldProductName,
	Prompt: "Let's get started. What is the product name?",
	Parse:  FreeText,
}

var hcpEmailSchema = &Schema{
	Domain: model.DomainHCPEmail,
	Label:  "HCP email",
	Fields: []Field{
		productNameField,
		{
			Name: FieldEmailType,
			Prompt: "What type of email would you like to create?\n" +
				"1. Mechanism of action (MOA)\n" +
				"2. Clinical summary\n" +
				"3. Dosing and administration",
			Parse: Choice(
				Option{Value: "moa", Keywords: []string{"moa", "mechanism"}},
				Option{Value: "summary", Keywords: []string{"summary", "clinical"}},
				Option{Value: "dosing", Keywords: []string{"dosing", "dose", "administration"}},
			),
		},
		{
			Name:   FieldTargetAudience,
			Prompt: "Who is the target audience? (for example: dermatologists, rheumatologists, nurse practitioners)",
			Parse:  FreeText,
		},
		{
			Name:   FieldSegment,
			Prompt: "Which segment should this email address? (for example: high prescribers, new to brand, lapsed writers)",
			Parse:  FreeText,
		},
		{
			Name:   FieldKeyMessage,
			Prompt: "What is the key message you want to convey?",
			Parse:  FreeText,
		},
		{
			Name:   FieldEmphasis,
			Prompt: "Anything specific to emphasize? Describe it, or type \"generate\" to create the email now.",
			Parse:  FreeTextUnless(GenerateKeyword),
		},
	},
}

var socialMediaSchema = &Schema{
	Domain: model.DomainSocialMedia,
	Label:  "social media post",
	Fields: []Field{
		productNameField,
		{
			Name: FieldPlatform,
			Prompt: "Which platform is this post for?\n" +
				"1. Facebook\n" +
				"2. Instagram\n" +
				"3. Twitter",
			Parse: Choice(
				Option{Value: "facebook", Keywords: []string{"facebook", "fb"}},
				Option{Value: "instagram", Keywords: []string{"instagram", "insta"}},
				Option{Value: "twitter", Keywords: []string{"twitter", "tweet", "x.com"}},
			),
		},
		{
			Name: FieldTarget,
			Prompt: "Who is the post for?\n" +
				"1. Patients\n" +
				"2. Caregivers\n" +
				"3. Healthcare professionals",
			Parse: ChoiceOr("patient",
				Option{Value: "patient", Keywords: []string{"patient"}},
				Option{Value: "caregiver", Keywords: []string{"caregiver", "carer", "family"}},
				Option{Value: "hcp", Keywords: []string{"hcp", "healthcare", "physician", "doctor", "professional"}},
			),
		},
		{
			Name:   FieldMessage,
			Prompt: "What message should the post convey?",
			Parse:  FreeText,
		},
	},
}

var imageURLField = Field{
	Name:   FieldImageURL,
	Prompt: "Please provide the URL of the image you uploaded.",
	Parse:  FreeText,
}

var imagePromptField = Field{
	Name:   FieldImagePrompt,
	Prompt: "Describe the image you want generated for the video.",
	Parse:  FreeText,
}

var videoSchema = &Schema{
	Domain: model.DomainVideo,
	Label:  "video",
	Fields: []Field{
		productNameField,
		{
			Name: FieldImageSource,
			Prompt: "Where should the starting image come from?\n" +
				"1. Upload my own image\n" +
				"2. Generate an image",
			Parse: Choice(
				Option{Value: "upload", Keywords: []string{"upload", "own"}},
				Option{Value: "generate", Keywords: []string{"generate", "create"}},
			),
		},
		{
			Name: FieldImageURL,
			Variant: func(data map[string]string) Field {
				if data[FieldImageSource] == "generate" {
					return imagePromptField
				}
				return imageURLField
			},
		},
		{
			Name: FieldVideoType,
			Prompt: "What type of video is this?\n" +
				"1. Patient story\n" +
				"2. Disease education\n" +
				"3. Mechanism of action\n" +
				"4. Social reel",
			Parse: Choice(
				Option{Value: "patient-story", Keywords: []string{"patient", "story", "testimonial"}},
				Option{Value: "education", Keywords: []string{"educat", "awareness"}},
				Option{Value: "mechanism", Keywords: []string{"mechanism", "moa"}},
				Option{Value: "reel", Keywords: []string{"reel", "short"}},
			),
		},
		{
			Name:   FieldTargetAudience,
			Prompt: "Who is the target audience for the video?",
			Parse:  FreeText,
		},
		{
			Name:   FieldAnimation,
			Prompt: "Describe the animation style or key message for the video.",
			Parse:  FreeText,
		},
	},
}

var schemas = map[model.Domain]*Schema{
	model.DomainHCPEmail:    hcpEmailSchema,
	model.DomainSocialMedia: socialMediaSchema,
	model.DomainVideo:       videoSchema,
}

// Lookup returns the step schema of a domain
func Lookup(domain model.Domain) (*Schema, bool) {
	s, ok := schemas[domain]
	return s, ok
}
