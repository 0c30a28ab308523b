package domain

import (
	"slices"
	"strings"
)

// ElementKind identifies one section of a sales page.
type ElementKind string

const (
	ElementHero        ElementKind = "hero"
	ElementVideo       ElementKind = "video"
	ElementUrgency     ElementKind = "urgency"
	ElementFeatures    ElementKind = "features"
	ElementTestimonial ElementKind = "testimonial"
	ElementContent     ElementKind = "content"
	ElementPurchase    ElementKind = "purchase"
)

// Direction moves an element within the active sequence.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// MinReorderableElements is the smallest active set for which reordering is offered.
const MinReorderableElements = 3

// DefaultElementOrder returns the canonical section order.
func DefaultElementOrder() []ElementKind {
	return []ElementKind{
		ElementHero,
		ElementVideo,
		ElementUrgency,
		ElementFeatures,
		ElementTestimonial,
		ElementContent,
		ElementPurchase,
	}
}

// ParseElementKind normalises a raw kind, reporting whether it is one of the fixed kinds.
func ParseElementKind(raw string) (ElementKind, bool) {
	kind := ElementKind(strings.ToLower(strings.TrimSpace(raw)))
	if slices.Contains(DefaultElementOrder(), kind) {
		return kind, true
	}
	return "", false
}

// ParseDirection normalises a raw direction.
func ParseDirection(raw string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case DirectionUp:
		return DirectionUp, true
	case DirectionDown:
		return DirectionDown, true
	}
	return "", false
}

// AlwaysActive reports whether the kind renders regardless of content.
func (k ElementKind) AlwaysActive() bool {
	return k == ElementHero || k == ElementPurchase
}

// LockedOnly reports whether the kind is a sales element hidden after purchase.
func (k ElementKind) LockedOnly() bool {
	return k == ElementUrgency || k == ElementTestimonial || k == ElementPurchase
}

// DefaultTitle is the heading used when the seller has not overridden it.
func (k ElementKind) DefaultTitle() string {
	switch k {
	case ElementVideo:
		return "Watch"
	case ElementFeatures:
		return "What you'll get"
	case ElementTestimonial:
		return "What people are saying"
	case ElementContent:
		return "Content"
	case ElementPurchase:
		return "Get instant access"
	default:
		return ""
	}
}

// NormalizeOrder coerces any stored order into a permutation of the fixed kinds.
// Unknown and duplicate entries are dropped; missing kinds are appended in default order.
func NormalizeOrder(order []ElementKind) []ElementKind {
	defaults := DefaultElementOrder()
	out := make([]ElementKind, 0, len(defaults))
	seen := make(map[ElementKind]struct{}, len(defaults))
	for _, kind := range order {
		if !slices.Contains(defaults, kind) {
			continue
		}
		if _, dup := seen[kind]; dup {
			continue
		}
		seen[kind] = struct{}{}
		out = append(out, kind)
	}
	for _, kind := range defaults {
		if _, ok := seen[kind]; !ok {
			out = append(out, kind)
		}
	}
	return out
}

// IsPermutation reports whether order contains every kind exactly once.
func IsPermutation(order []ElementKind) bool {
	defaults := DefaultElementOrder()
	if len(order) != len(defaults) {
		return false
	}
	return slices.Equal(NormalizeOrder(order), order)
}

// HasContent reports whether the product has content backing the kind.
func (p Product) HasContent(kind ElementKind) bool {
	switch kind {
	case ElementHero, ElementPurchase:
		return true
	case ElementVideo:
		return len(p.Video.URLs()) > 0
	case ElementUrgency:
		return p.Urgency.Active()
	case ElementFeatures:
		return len(p.ActiveFeatures()) > 0
	case ElementTestimonial:
		return strings.TrimSpace(p.Testimonial) != ""
	case ElementContent:
		return strings.TrimSpace(p.Content) != ""
	default:
		return false
	}
}

// ActiveElements filters the element order to kinds that currently render.
func ActiveElements(p Product) []ElementKind {
	order := NormalizeOrder(p.ElementOrder)
	out := make([]ElementKind, 0, len(order))
	for _, kind := range order {
		if p.HasContent(kind) {
			out = append(out, kind)
		}
	}
	return out
}

// CanReorder reports whether reordering controls should be offered.
func CanReorder(p Product) bool {
	return len(ActiveElements(p)) >= MinReorderableElements
}

// MoveElement swaps kind with its neighbour inside the active subsequence and reconciles the
// swap into the full order. Inactive kinds keep their slots. Boundary moves, inactive kinds and
// unknown directions return the normalised order unchanged.
func MoveElement(order []ElementKind, active []ElementKind, kind ElementKind, dir Direction) []ElementKind {
	full := NormalizeOrder(order)

	activeSet := make(map[ElementKind]struct{}, len(active))
	for _, k := range active {
		activeSet[k] = struct{}{}
	}
	sequence := make([]ElementKind, 0, len(full))
	for _, k := range full {
		if _, ok := activeSet[k]; ok {
			sequence = append(sequence, k)
		}
	}

	idx := slices.Index(sequence, kind)
	if idx < 0 {
		return full
	}
	var neighbour ElementKind
	switch dir {
	case DirectionUp:
		if idx == 0 {
			return full
		}
		neighbour = sequence[idx-1]
	case DirectionDown:
		if idx == len(sequence)-1 {
			return full
		}
		neighbour = sequence[idx+1]
	default:
		return full
	}

	i := slices.Index(full, kind)
	j := slices.Index(full, neighbour)
	full[i], full[j] = full[j], full[i]
	return full
}

// MoveElement reorders the product's element order in place.
func (p *Product) MoveElement(kind ElementKind, dir Direction) {
	p.ElementOrder = MoveElement(p.ElementOrder, ActiveElements(*p), kind, dir)
}
