package builder

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/launchpad/api/internal/domain"
)

// Step is a wizard state.
type Step string

const (
	StepBasics    Step = "basics"
	StepContent   Step = "content"
	StepPreview   Step = "preview"
	StepCustomize Step = "customize"
	StepSuccess   Step = "success"
)

// Action is a wizard input.
type Action string

const (
	ActionNext    Action = "next"
	ActionBack    Action = "back"
	ActionPublish Action = "publish"
)

var (
	// ErrInvalidTransition indicates the action is not defined for the current step.
	ErrInvalidTransition = errors.New("builder: invalid step transition")
	// ErrPublishInProgress indicates a publish for the session has not finished yet.
	ErrPublishInProgress = errors.New("builder: publish in progress")
	// ErrSessionFinished indicates the wizard reached success and no longer accepts edits.
	ErrSessionFinished = errors.New("builder: session already published")
	// ErrSessionClosed indicates the session expired or was discarded.
	ErrSessionClosed = errors.New("builder: session closed")
	// ErrReorderUnavailable indicates fewer than three sections are active.
	ErrReorderUnavailable = errors.New("builder: reordering needs at least three active sections")
)

type transitionKey struct {
	from   Step
	action Action
}

var transitions = map[transitionKey]Step{
	{StepBasics, ActionNext}:       StepContent,
	{StepContent, ActionNext}:      StepPreview,
	{StepContent, ActionBack}:      StepBasics,
	{StepPreview, ActionNext}:      StepCustomize,
	{StepPreview, ActionBack}:      StepContent,
	{StepPreview, ActionPublish}:   StepSuccess,
	{StepCustomize, ActionBack}:    StepPreview,
	{StepCustomize, ActionPublish}: StepSuccess,
}

// Steps lists the wizard states in forward order.
func Steps() []Step {
	return []Step{StepBasics, StepContent, StepPreview, StepCustomize, StepSuccess}
}

// ParseStep normalises a raw step name.
func ParseStep(raw string) (Step, bool) {
	step := Step(strings.ToLower(strings.TrimSpace(raw)))
	for _, candidate := range Steps() {
		if candidate == step {
			return step, true
		}
	}
	return "", false
}

// Transition returns the step reached by applying action to from.
func Transition(from Step, action Action) (Step, error) {
	to, ok := transitions[transitionKey{from: from, action: action}]
	if !ok {
		return from, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, from)
	}
	return to, nil
}

// Terminal reports whether no transition leaves the step.
func (s Step) Terminal() bool {
	for key := range transitions {
		if key.from == s {
			return false
		}
	}
	return true
}

// ValidationErrors maps a field name to a user facing message.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "builder: validation failed"
	}
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v[field])
	}
	return "builder: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) orNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// ValidateBasics is the guard for basics -> content. priceInput is the raw text the seller typed.
func ValidateBasics(product domain.Product, priceInput string) ValidationErrors {
	errs := ValidationErrors{}
	if strings.TrimSpace(product.Title) == "" {
		errs["title"] = "title is required"
	}
	if strings.TrimSpace(product.Description) == "" {
		errs["description"] = "description is required"
	}
	if len(product.ActiveFeatures()) == 0 {
		errs["features"] = "add at least one feature"
	}
	if _, err := domain.ParsePrice(priceInput, product.Currency); err != nil {
		switch {
		case errors.Is(err, domain.ErrPriceNegative):
			errs["price"] = "price cannot be negative"
		case strings.TrimSpace(priceInput) == "":
			errs["price"] = "price is required"
		default:
			errs["price"] = "price must be a number"
		}
	}
	return errs
}

// ValidateContent is the guard for content -> preview.
func ValidateContent(product domain.Product) ValidationErrors {
	errs := ValidationErrors{}
	hasContent := strings.TrimSpace(product.Content) != ""
	hasVideo := strings.TrimSpace(product.Video.URL) != ""
	switch product.ContentType {
	case domain.ContentTypeVideo:
		if !hasVideo {
			errs["videoUrl"] = "a video URL is required"
		}
	case domain.ContentTypeBoth:
		if !hasContent && !hasVideo {
			errs["content"] = "add content or a video URL"
		}
	default:
		if !hasContent {
			errs["content"] = "content is required"
		}
	}
	return errs
}

// ValidatePublish checks the fields a published document must carry.
func ValidatePublish(product domain.Product, priceInput string) ValidationErrors {
	errs := ValidateBasics(product, priceInput)
	for field, msg := range ValidateContent(product) {
		errs[field] = msg
	}
	return errs
}

func guard(step Step, product domain.Product, priceInput string) error {
	switch step {
	case StepBasics:
		return ValidateBasics(product, priceInput).orNil()
	case StepContent:
		return ValidateContent(product).orNil()
	default:
		return nil
	}
}
