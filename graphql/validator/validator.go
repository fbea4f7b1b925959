package validator

import (
	"fmt"

	"github.com/relay-tools/graphqlrt/graphql/ast"
	"github.com/relay-tools/graphqlrt/graphql/schema"
)

// Location represents the location of a character within a query's source text.
type Location struct {
	Line   int
	Column int
}

type Error struct {
	Message   string
	Locations []Location

	// If a validator is unable to perform its job due to an error unrelated to its purpose, it will
	// emit a secondary error. Secondary errors are always errors that should be caught by other
	// validators, so if there are any primary errors, secondary errors are discarded as they should
	// all be duplicates. If a secondary error makes it out of validation, there's probably a
	// mistake in one of the validators.
	isSecondary bool
}

func (err *Error) Error() string {
	return err.Message
}

func locationsForNodes(nodes ...ast.Node) []Location {
	var locations []Location
	for _, node := range nodes {
		if node == nil {
			continue
		}
		pos := node.Position()
		locations = append(locations, Location{Line: pos.Line, Column: pos.Column})
	}
	return locations
}

func newError(node ast.Node, message string, args ...interface{}) *Error {
	return &Error{
		Message:   fmt.Sprintf(message, args...),
		Locations: locationsForNodes(node),
	}
}

func newErrorWithNodes(nodes []ast.Node, message string, args ...interface{}) *Error {
	return &Error{
		Message:   fmt.Sprintf(message, args...),
		Locations: locationsForNodes(nodes...),
	}
}

func newSecondaryError(node ast.Node, message string, args ...interface{}) *Error {
	return &Error{
		Message:     fmt.Sprintf(message, args...),
		Locations:   locationsForNodes(node),
		isSecondary: true,
	}
}

// Rule is a single validation pass over a document. ValidateCost is the one built in to this
// package that's meant to be supplied as an additional rule; the rest run unconditionally.
type Rule func(doc *ast.Document, s *schema.Schema, typeInfo *TypeInfo) []*Error

func ValidateDocument(doc *ast.Document, s *schema.Schema, additionalRules ...Rule) []*Error {
	return ValidateDocumentWithFeatures(doc, s, nil, additionalRules...)
}

// ValidateDocumentWithFeatures is ValidateDocument, but conditionally-available schema members
// (schema.UnionType.RequiredFeatures and friends) are only considered selectable if they're a
// subset of features.
func ValidateDocumentWithFeatures(doc *ast.Document, s *schema.Schema, features schema.FeatureSet, additionalRules ...Rule) []*Error {
	typeInfo := NewTypeInfo(doc, s)
	var errs []*Error
	for _, f := range []func(*ast.Document, *schema.Schema, schema.FeatureSet, *TypeInfo) []*Error{
		validateDocument,
		validateOperations,
		validateFields,
		validateArguments,
		validateFragments,
		validateValues,
		validateDirectives,
		validateVariables,
	} {
		errs = append(errs, f(doc, s, features, typeInfo)...)
	}
	for _, rule := range additionalRules {
		errs = append(errs, rule(doc, s, typeInfo)...)
	}
	var primary []*Error
	for _, err := range errs {
		if !err.isSecondary {
			primary = append(primary, err)
		}
	}
	if len(primary) > 0 {
		return primary
	}
	return errs
}
