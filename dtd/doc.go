// Package dtd serializes structured documents to chapter XML, rewrites that
// XML into the subset the RittDoc DTD accepts, and validates the packaged
// result against the DTD with file- and line-accurate diagnostics.
//
// A copy of the schema is embedded so validation works without any external
// files; an explicit DTD path always takes precedence when supplied.
package dtd
