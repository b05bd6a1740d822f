package acs

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TableRoute identifies the ACS table family a variable is published
// under, which determines the API route that serves it.
type TableRoute string

const (
	RouteDetail   TableRoute = "detail"
	RouteProfile  TableRoute = "profile"
	RouteCProfile TableRoute = "cprofile"
	RouteSubject  TableRoute = "subject"
)

// Path returns the route's path segment under the acs{estimate}
// dataset root. Detail tables are served from the root itself.
func (r TableRoute) Path() string {
	switch r {
	case RouteProfile:
		return "/profile"
	case RouteCProfile:
		return "/cprofile"
	case RouteSubject:
		return "/subject"
	}
	return ""
}

// RouteForVariable determines the table family from a variable's
// alphabetic prefix: B01003_001E and C15002B_011E are detail tables,
// DP05_0015E a data profile, CP02_2014_001E a comparison profile, and
// S2503_C02_001E a subject table.
func RouteForVariable(variable string) (TableRoute, error) {
	prefix := variable
	for i, r := range variable {
		if unicode.IsDigit(r) {
			prefix = variable[:i]
			break
		}
	}
	switch prefix {
	case "B", "C":
		return RouteDetail, nil
	case "DP":
		return RouteProfile, nil
	case "CP":
		return RouteCProfile, nil
	case "S":
		return RouteSubject, nil
	}
	return "", NewValidationError("acs: variable cannot be associated with an ACS table: %s", variable)
}

// DefaultChunkSize caps variables per request below the API's limit of
// 50 get= fields, leaving room for NAME and GEO_ID.
const DefaultChunkSize = 48

// ChunkVariables splits variables into ordered chunks of at most size.
// A size of zero or less falls back to DefaultChunkSize.
func ChunkVariables(variables []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks [][]string
	for start := 0; start < len(variables); start += size {
		end := start + size
		if end > len(variables) {
			end = len(variables)
		}
		chunks = append(chunks, variables[start:end])
	}
	return chunks
}

// TidyVariableLabel rewrites a raw variable label for legibility. The
// API separates label segments with !! and prefixes most labels with
// an Estimate marker that adds nothing once values sit in a table.
func TidyVariableLabel(label string) string {
	label = strings.TrimPrefix(label, "Estimate!!")
	return strings.ReplaceAll(label, "!!", " - ")
}

// TitleizeConcept converts an all-caps concept string such as
// "HOUSEHOLD INCOME" to title case.
func TitleizeConcept(concept string) string {
	if concept == "" {
		return ""
	}
	return cases.Title(language.AmericanEnglish).String(strings.ToLower(concept))
}
