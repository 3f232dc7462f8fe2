package model

// IdentityAssertion is a claim from an external identity provider presented
// in lieu of a local password. The provider, not this service, has
// authenticated the subject.
type IdentityAssertion struct {
	UID       string
	Email     string
	FirstName string
	LastName  string
	Picture   string
	Locale    string
}
