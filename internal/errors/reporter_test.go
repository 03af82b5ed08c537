package errors

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorReporterFormatsUnsupportedConstruct(t *testing.T) {
	source := `branch(a, b) <+ ddt(expr);
`
	reporter := NewErrorReporter("module.mir", source)

	err := UnsupportedConstruct("reactive contribution with no ddt lowering", Position{Line: 1, Column: 1})
	formatted := reporter.FormatError(err)

	assert.Contains(t, formatted, "error["+ErrorUnsupportedConstruct+"]")
	assert.Contains(t, formatted, "unsupported construct")
	assert.Contains(t, formatted, "module.mir:1:1")
	assert.Contains(t, formatted, "help")
}

func TestUnsupportedCallbackError(t *testing.T) {
	pos := Position{File: "module.mir", Line: 4, Column: 2}

	err := UnsupportedCallback("NoiseTable", pos)
	assert.Equal(t, ErrorUnsupportedCallback, err.Code)
	assert.Contains(t, err.Message, "NoiseTable")
}

func TestMissingContributionError(t *testing.T) {
	pos := Position{File: "module.mir", Line: 9, Column: 1}

	err := MissingContribution("br0", pos)
	assert.Equal(t, ErrorMissingContribution, err.Code)
	assert.Contains(t, err.Message, "br0")
}

func TestInvariantPanics(t *testing.T) {
	defer func() {
		r := recover()
		assert.NotNil(t, r)
		assert.Contains(t, r.(string), ErrorInvariantViolation)
		assert.Contains(t, r.(string), "dangling value")
	}()
	Invariant("dangling value %d", 7)
}

func TestErrorMarkerCreation(t *testing.T) {
	source := `let variable = value;`
	reporter := NewErrorReporter("test.mir", source)

	marker := reporter.createMarker(5, 8, Error)

	spaces := strings.Count(marker, " ")
	assert.Equal(t, 4, spaces)
	carets := strings.Count(marker, "^")
	assert.Equal(t, 8, carets)
}

func TestErrorLevels(t *testing.T) {
	source := `test`
	reporter := NewErrorReporter("test.mir", source)
	pos := Position{Line: 1, Column: 1}

	errorErr := CompilerError{Level: Error, Message: "test error", Position: pos}
	warningErr := CompilerError{Level: Warning, Message: "test warning", Position: pos}

	errorFormatted := reporter.FormatError(errorErr)
	warningFormatted := reporter.FormatError(warningErr)

	assert.Contains(t, errorFormatted, "error:")
	assert.Contains(t, warningFormatted, "warning:")
}

func TestErrorCategoryRanges(t *testing.T) {
	assert.Equal(t, "Unsupported Construct", GetErrorCategory(ErrorUnsupportedConstruct))
	assert.Equal(t, "Invariant Violation", GetErrorCategory(ErrorInvariantViolation))
	assert.Equal(t, "DAE/Topology/Layout", GetErrorCategory(ErrorMissingContribution))
}
