package app

import "github.com/kart-io/agriqa/pkg/app/cliflag"

// CliOptions abstracts configuration options for reading parameters from the
// command line.
type CliOptions interface {
	// Flags returns the flags grouped by section.
	Flags() cliflag.NamedFlagSets
	// Complete fills in defaults that depend on other fields.
	Complete() error
	// Validate checks the completed options.
	Validate() error
}
