package errors

import "sort"

// Template defines a registered error type.
type Template struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// ============================================
	// Configuration Errors (Q100-Q199)
	// ============================================

	"Q101": {
		Category:   CategoryConfig,
		Message:    "Config file not found",
		Detail:     "The configuration file does not exist or cannot be read.",
		Suggestion: "Check the --config path, or omit it to use defaults.",
	},
	"Q102": {
		Category:   CategoryConfig,
		Message:    "Invalid config file",
		Detail:     "The configuration file is not valid JSON.",
		Suggestion: "Validate queryguard.json with a JSON linter.",
	},
	"Q103": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
		Detail:   "A configuration field holds a value outside its allowed set.",
	},

	// ============================================
	// Schema Errors (Q200-Q299)
	// ============================================

	"Q201": {
		Category:   CategorySchema,
		Message:    "Schema source not found",
		Detail:     "The schema descriptor could not be read.",
		Suggestion: "Pass --schema with a file path or s3://bucket/key.",
	},
	"Q202": {
		Category: CategorySchema,
		Message:  "Invalid schema document",
		Detail:   "The schema descriptor is not a valid field list.",
		Suggestion: "A descriptor looks like:\n" +
			"fields:\n  - name: page\n    kind: number\n    rules: [{min: 1}]",
	},
	"Q203": {
		Category: CategorySchema,
		Message:  "Unsupported schema source",
		Detail:   "Schema sources must be local paths or s3://bucket/key URIs.",
	},
	"Q204": {
		Category:   CategorySchema,
		Message:    "Schema download failed",
		Detail:     "The schema descriptor could not be fetched from object storage.",
		Suggestion: "Check the bucket, key, region and AWS credentials.",
	},

	// ============================================
	// Transport Errors (Q300-Q399)
	// ============================================

	"Q301": {
		Category: CategoryTransport,
		Message:  "Server failed",
		Detail:   "The HTTP server stopped with an error.",
	},
	"Q302": {
		Category:   CategoryTransport,
		Message:    "Invalid server URL",
		Detail:     "The initial location could not be parsed as a URL.",
		Suggestion: "Use a path such as /products?page=1 or a full URL.",
	},
	"Q303": {
		Category: CategoryTransport,
		Message:  "Tracing setup failed",
		Detail:   "The OpenTelemetry exporter could not be created.",
	},

	// ============================================
	// CLI Errors (Q400-Q499)
	// ============================================

	"Q401": {
		Category: CategoryCLI,
		Message:  "Invalid argument",
		Detail:   "A command line argument could not be parsed.",
	},
	"Q402": {
		Category:   CategoryCLI,
		Message:    "Invalid mode",
		Detail:     "Validation mode must be pick or strict; history mode must be push or replace.",
		Suggestion: "Use --mode pick or --mode strict.",
	},
	"Q403": {
		Category: CategoryCLI,
		Message:  "Query failed validation",
		Detail:   "The query does not satisfy the schema.",
	},
}

// AllCodes returns all registered error codes in order.
func AllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
