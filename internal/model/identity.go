package model

// Identity is a verified identity supplied by the external authentication
// provider. It carries facts only; mapping it to a User is done elsewhere.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// HasEmail reports whether the identity can be resolved to a local user.
func (i *Identity) HasEmail() bool {
	return i != nil && i.Email != ""
}
