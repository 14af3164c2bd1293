package core

// Credentials is an explicit object-storage credential set.
// It is built once by the caller and injected into the engine adapter and
// the storage handles; nothing below the CLI reads the process environment.
type Credentials struct {
	KeyID        string
	Secret       string
	SessionToken string
	Region       string
	Endpoint     string
	URLStyle     string
	UseSSL       *bool
}

// IsZero reports whether no key material was supplied.
func (c *Credentials) IsZero() bool {
	return c == nil || (c.KeyID == "" && c.Secret == "")
}

// String redacts the secret parts so credentials can be logged safely.
func (c *Credentials) String() string {
	if c.IsZero() {
		return "credentials(none)"
	}
	id := c.KeyID
	if len(id) > 4 {
		id = id[:4] + "****"
	}
	return "credentials(key_id=" + id + ", region=" + c.Region + ")"
}
