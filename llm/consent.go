package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clementus360/clinic-assistant/types"
)

var ErrEmptyConsentRequest = errors.New("consent form description is empty")

// GenerateConsentForm asks the model for a consent form draft for the
// described treatment and parses the JSON it returns.
func GenerateConsentForm(ctx context.Context, client Client, request string) (types.ConsentForm, error) {
	if strings.TrimSpace(request) == "" {
		return types.ConsentForm{}, ErrEmptyConsentRequest
	}

	raw, err := client.Complete(ctx, ConsentSystemPrompt, BuildConsentPrompt(request))
	if err != nil {
		return types.ConsentForm{}, fmt.Errorf("failed to generate consent form: %w", err)
	}
	return ParseConsentForm(raw)
}

// ParseConsentForm decodes a consent form from model output, falling back to
// pulling the title and content fields out of JSON too broken to decode.
func ParseConsentForm(raw string) (types.ConsentForm, error) {
	form, err := ParseStructured(raw, validateConsentForm)
	if err == nil {
		return trimConsentForm(form), nil
	}

	title, hasTitle := extractStringField(raw, "title")
	content, hasContent := extractStringField(raw, "content")
	if hasTitle && hasContent {
		partial := trimConsentForm(types.ConsentForm{Title: title, Content: content})
		if validateConsentForm(partial) == nil {
			return partial, nil
		}
	}
	return types.ConsentForm{}, fmt.Errorf("failed to parse consent form: %w", err)
}

func validateConsentForm(form types.ConsentForm) error {
	if strings.TrimSpace(form.Title) == "" {
		return fmt.Errorf("consent form title is empty")
	}
	if strings.TrimSpace(form.Content) == "" {
		return fmt.Errorf("consent form content is empty")
	}
	return nil
}

func trimConsentForm(form types.ConsentForm) types.ConsentForm {
	form.Title = strings.TrimSpace(form.Title)
	form.Content = strings.TrimSpace(form.Content)
	return form
}
