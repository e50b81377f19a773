package memledger

import (
	"crypto/x509"
	"fmt"
)

// ClientIdentity implements cid.ClientIdentity for in-process invocations.
// The principal is asserted by the surrounding runtime (the gateway's JWT
// middleware); the contracts trust it, per the execution model.
type ClientIdentity struct {
	id    string
	mspID string
	attrs map[string]string
}

// NewClientIdentity creates a client identity for the given principal
func NewClientIdentity(id, mspID string) *ClientIdentity {
	return &ClientIdentity{id: id, mspID: mspID, attrs: make(map[string]string)}
}

// SetAttribute sets a certificate attribute on the identity
func (c *ClientIdentity) SetAttribute(name, value string) { c.attrs[name] = value }

// GetID returns the principal
func (c *ClientIdentity) GetID() (string, error) { return c.id, nil }

// GetMSPID returns the MSP the identity belongs to
func (c *ClientIdentity) GetMSPID() (string, error) { return c.mspID, nil }

// GetAttributeValue looks up a certificate attribute
func (c *ClientIdentity) GetAttributeValue(attrName string) (string, bool, error) {
	v, ok := c.attrs[attrName]
	return v, ok, nil
}

// AssertAttributeValue errors unless the attribute has the given value
func (c *ClientIdentity) AssertAttributeValue(attrName, attrValue string) error {
	v, ok := c.attrs[attrName]
	if !ok || v != attrValue {
		return fmt.Errorf("attribute %q does not have value %q", attrName, attrValue)
	}
	return nil
}

// GetX509Certificate returns nil: in-process identities carry no certificate
func (c *ClientIdentity) GetX509Certificate() (*x509.Certificate, error) { return nil, nil }
