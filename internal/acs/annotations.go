package acs

// Annotations maps the sentinel values the ACS publishes in place of
// suppressed or special-meaning estimates to their annotation symbols.
// Annotated values become null in query output, with the symbol
// carried in a separate column.
var Annotations = map[float64]string{
	-999999999: "N",
	-888888888: "(X)",
	-666666666: "-",
	-555555555: "*****",
	-333333333: "***",
	-222222222: "**",
}

// Annotation returns the annotation symbol for a sentinel value. ok is
// false for ordinary estimates.
func Annotation(value float64) (string, bool) {
	symbol, ok := Annotations[value]
	return symbol, ok
}
