package stitch

import "errors"

var (
	// ErrPartialTemplate is returned when the entry template is a partial (_.html, __.html).
	ErrPartialTemplate = errors.New("partial template cannot be compiled")

	// ErrAlreadyIncluded is returned when the entry template was consumed as a snippet earlier.
	ErrAlreadyIncluded = errors.New("already included as a snippet")

	// ErrSnippetNotFound is returned when a snippet source does not exist in any search root.
	ErrSnippetNotFound = errors.New("snippet not found")

	// ErrIncludeCycle is returned when a snippet includes itself, directly or not.
	ErrIncludeCycle = errors.New("snippet include cycle")

	// ErrMissingAttribute is returned when a required attribute is absent or blank.
	ErrMissingAttribute = errors.New("missing required attribute")

	// ErrBlankCondition is returned when a condition resolves to a blank value.
	ErrBlankCondition = errors.New("blank condition value")

	// ErrNotDirectory is returned when the output directory is a file.
	ErrNotDirectory = errors.New("not a directory")

	// ErrNotFile is returned when the template path is a directory.
	ErrNotFile = errors.New("not a file")
)
