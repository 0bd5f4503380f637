package validator

// Validator validates request payloads against their declared rules.
type Validator interface {
	Validate(data any) error
}
