// Package errors provides structured, actionable errors for the outer
// surfaces of queryguard: configuration, schema loading, transport and the
// CLI.
//
// Library packages (bridge, validate, schema) never return these; they
// report validation failures through data and use plain sentinel errors.
//
// # Error Codes
//
// Each error has a code that maps to a registered template:
//   - Q1xx: configuration
//   - Q2xx: schema descriptors and sources
//   - Q3xx: server and transport
//   - Q4xx: command line
//
// # Usage
//
//	err := errors.New("Q201").
//	    WithDetail("open filters.yaml: no such file or directory").
//	    WithSuggestion("Pass --schema with a path or s3://bucket/key").
//	    Wrap(cause)
//
//	fmt.Fprint(os.Stderr, err.Format())
//	// ERROR Q201: Schema source not found
//	//
//	//   open filters.yaml: no such file or directory
//	//
//	//   Hint: Pass --schema with a path or s3://bucket/key
package errors
