// Package validation holds the naming rules shared by flows, nodes and variables.
//
// Flow names become file names in the flows directory, so they are restricted to
// identifier characters; a name that passes ValidateName cannot express a path.
// Variable names additionally must start with a letter so they can be referenced
// from expressions and templates.
package validation
