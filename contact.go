package urconf

import (
	"net/url"
	"strconv"
)

// ContactType identifies an alert contact type as defined by the Uptime
// Robot API.
type ContactType int

const (
	ContactSMS        ContactType = 1
	ContactEmail      ContactType = 2
	ContactTwitterDM  ContactType = 3
	ContactBoxcar     ContactType = 4
	ContactWebhook    ContactType = 5
	ContactPushbullet ContactType = 6
	ContactPushover   ContactType = 9
)

// Contact is a single alert contact. Contacts are matched against server
// state by their value, which must be unique within a configuration.
type Contact struct {
	value        string
	ctype        ContactType
	friendlyName string

	// Assigned by the server; populated after creation or from a fetched
	// record. Kept as a string because leading zeroes are significant.
	serverID string
}

func newContact(ctype ContactType, value, friendlyName string) (*Contact, error) {
	if value == "" {
		return nil, &ValidationError{Kind: "contact", Field: "value", Reason: "required field missing"}
	}
	if ctype == 0 {
		return nil, &ValidationError{Kind: "contact", Field: "type", Reason: "required field missing"}
	}
	return &Contact{value: value, ctype: ctype, friendlyName: friendlyName}, nil
}

// contactFromRecord builds a Contact from a raw getAlertContacts record.
func contactFromRecord(rec record) (*Contact, error) {
	for _, f := range []string{"value", "type"} {
		if !rec.has(f) {
			return nil, &ValidationError{Kind: "contact", Field: f, Reason: "required field missing"}
		}
	}
	value, err := rec.str("value")
	if err != nil {
		return nil, fieldErr("contact", "value", err)
	}
	ctype, err := rec.num("type")
	if err != nil {
		return nil, fieldErr("contact", "type", err)
	}
	name, err := rec.str("friendly_name")
	if err != nil {
		return nil, fieldErr("contact", "friendly_name", err)
	}
	id, err := rec.str("id")
	if err != nil {
		return nil, fieldErr("contact", "id", err)
	}
	return &Contact{value: value, ctype: ContactType(ctype), friendlyName: name, serverID: id}, nil
}

// Identity returns the user-facing key that matches this contact against
// server state.
func (c *Contact) Identity() string { return c.value }

// ServerID returns the server-assigned id, or "" if the contact has not
// been created yet.
func (c *Contact) ServerID() string { return c.serverID }

// Type returns the contact type.
func (c *Contact) Type() ContactType { return c.ctype }

// FriendlyName returns the display name used in the Uptime Robot UI.
func (c *Contact) FriendlyName() string { return c.friendlyName }

func (c *Contact) setServerID(id string) { c.serverID = id }

func (c *Contact) typeCode() int { return int(c.ctype) }

// equal reports field-level equality. The server id is deliberately
// excluded: two contacts with identical fields are the same contact no
// matter what id the server assigned.
func (c *Contact) equal(o *Contact) bool {
	return c.value == o.value && c.ctype == o.ctype && c.friendlyName == o.friendlyName
}

// createParams builds the newAlertContact parameters. Zero and empty values
// mean "not set" and are omitted.
func (c *Contact) createParams() url.Values {
	v := url.Values{}
	setStr(v, "value", c.value)
	setInt(v, "type", int(c.ctype))
	setStr(v, "friendly_name", c.friendlyName)
	return v
}

// updateParams builds the editAlertContact parameters. The type field is
// immutable server-side and never included.
func (c *Contact) updateParams() url.Values {
	v := c.createParams()
	v.Del("type")
	return v
}

func setStr(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}

func setInt(v url.Values, key string, val int) {
	if val != 0 {
		v.Set(key, strconv.Itoa(val))
	}
}
