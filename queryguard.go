// Package queryguard keeps a schema-validated data object in sync with the
// query string of a URL.
//
// This is the recommended import for most applications:
//
//	import "github.com/vango-dev/queryguard"
//
// Usage:
//
//	filters := queryguard.MustSchema(
//	    queryguard.Number("page", queryguard.Int(""), queryguard.Min(1, "")),
//	    queryguard.String("q").Optional(),
//	)
//	q := queryguard.Use(queryguard.WithSchema(filters))
//	defer q.Close()
//
//	page, _ := q.Data().Int("page")
//	q.UpdateParams(queryguard.Update{"page": page + 1, "q": queryguard.Delete})
package queryguard

import (
	"github.com/vango-dev/queryguard/pkg/bridge"
	"github.com/vango-dev/queryguard/pkg/navigation"
	"github.com/vango-dev/queryguard/pkg/querycodec"
	"github.com/vango-dev/queryguard/pkg/schema"
	"github.com/vango-dev/queryguard/pkg/validate"
)

// =============================================================================
// Bridge
// =============================================================================

// Bridge is a live binding between a schema and a query string.
type Bridge = bridge.Bridge

// Snapshot is the derived state of a Bridge.
type Snapshot = bridge.Snapshot

// Option configures a Bridge.
type Option = bridge.Option

// Observer receives instrumentation events from a Bridge.
type Observer = bridge.Observer

// Use creates a Bridge bound to the default host adapter unless
// WithAdapter says otherwise. Close it when done.
func Use(opts ...Option) *Bridge {
	return bridge.New(opts...)
}

var (
	// WithSchema validates the query against a schema.
	WithSchema = bridge.WithSchema

	// WithPreprocess transforms every raw value before validation.
	WithPreprocess = bridge.WithPreprocess

	// WithAdapter sets the navigation adapter.
	WithAdapter = bridge.WithAdapter

	// WithMode selects Pick or Strict validation.
	WithMode = bridge.WithMode

	// WithLogger sets the logger.
	WithLogger = bridge.WithLogger

	// WithObserver registers instrumentation hooks.
	WithObserver = bridge.WithObserver
)

// =============================================================================
// Validation
// =============================================================================

// Mode selects the validation strategy.
type Mode = validate.Mode

const (
	// Pick validates each field independently (default).
	Pick = validate.Pick

	// Strict validates the whole object at once.
	Strict = validate.Strict
)

// Data is a validated data object.
type Data = validate.Data

// Issue describes one validation failure.
type Issue = validate.Issue

// =============================================================================
// Schema
// =============================================================================

// Schema is an ordered set of field descriptors.
type Schema = schema.Schema

// Field describes one query parameter.
type Field = schema.Field

// Rule is a field constraint.
type Rule = schema.Rule

// NewSchema builds a Schema.
func NewSchema(fields ...Field) (*Schema, error) {
	return schema.New(fields...)
}

// MustSchema builds a Schema and panics on error.
func MustSchema(fields ...Field) *Schema {
	return schema.MustNew(fields...)
}

var (
	String  = schema.String
	Number  = schema.Number
	Boolean = schema.Boolean

	Min         = schema.Min
	Max         = schema.Max
	Between     = schema.Between
	Int         = schema.Int
	Positive    = schema.Positive
	NonNegative = schema.NonNegative
	MinLength   = schema.MinLength
	MaxLength   = schema.MaxLength
	Pattern     = schema.Pattern
	OneOf       = schema.OneOf
	Email       = schema.Email
	UUID        = schema.UUID
	URL         = schema.URL
	Custom      = schema.Custom
)

// =============================================================================
// Updates
// =============================================================================

// Update is a partial change request for UpdateParams.
type Update = querycodec.Update

var (
	// Delete removes a key.
	Delete = querycodec.Delete

	// Keep leaves a key unchanged.
	Keep = querycodec.Keep
)

// =============================================================================
// Navigation
// =============================================================================

// Adapter is the host capability a Bridge reads from and writes to.
type Adapter = navigation.Adapter

// NewMemory creates an in-memory adapter, mainly for tests.
func NewMemory(initial string) *navigation.Memory {
	return navigation.NewMemory(initial)
}

// NewHistory creates a history-stack adapter starting at rawURL.
func NewHistory(rawURL string) (*navigation.History, error) {
	return navigation.NewHistory(rawURL)
}
