package core

import (
	"context"
	"fmt"
	"strings"
)

// Provider opens isolated document contexts. Each call to NewDocument returns a
// fresh context that shares no cookies, storage or navigation state with any
// other document.
type Provider interface {
	NewDocument(ctx context.Context) (Document, error)
}

// Document is a live browser document owned by exactly one Session.
type Document interface {
	Goto(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)

	// Query returns every element matching q, in document order. An empty
	// slice with a nil error means nothing matched yet.
	Query(ctx context.Context, q Query) ([]Element, error)

	// Close releases the document context. Calling Close more than once is a no-op.
	Close() error
}

// Element is a handle to a single element of a Document.
type Element interface {
	State(ctx context.Context) (ElementState, error)
	Fill(ctx context.Context, value string) error
	Click(ctx context.Context) error
	Describe() string
}

// StrategyKind names a locator strategy.
type StrategyKind string

const (
	StrategyTestID StrategyKind = "testid"
	StrategyRole   StrategyKind = "role"
	StrategyLabel  StrategyKind = "label"
	StrategyText   StrategyKind = "text"
	StrategyCSS    StrategyKind = "css"
)

// Priority orders strategies from most to least preferred. Lower wins.
func (k StrategyKind) Priority() int {
	switch k {
	case StrategyTestID:
		return 0
	case StrategyRole:
		return 1
	case StrategyLabel:
		return 2
	case StrategyText:
		return 3
	case StrategyCSS:
		return 4
	default:
		return 5
	}
}

// Valid reports whether k is a known strategy.
func (k StrategyKind) Valid() bool {
	return k.Priority() < 5
}

// Query is one locator strategy as handed to a Document.
type Query struct {
	Kind  StrategyKind
	Value string // test id, role, label text, visible text or CSS selector
	Name  string // accessible name, role strategy only
	Exact bool
}

// String renders the query the way it appears in error messages.
func (q Query) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s=%q", q.Kind, q.Value)
	if q.Name != "" {
		fmt.Fprintf(&sb, "[name=%q]", q.Name)
	}
	if q.Exact && q.Kind != StrategyTestID && q.Kind != StrategyCSS {
		sb.WriteString(" exact")
	}
	return sb.String()
}

// ElementState is a single observation of an element's actionability.
type ElementState struct {
	Attached       bool
	Visible        bool
	Enabled        bool
	Editable       bool
	ReceivesEvents bool // hit-testing the element's center lands on it or a descendant
	Bounds         Bounds
}

// Bounds is an element's bounding box in CSS pixels.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// Empty reports whether the box has no area.
func (b Bounds) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}
