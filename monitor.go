package urconf

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// MonitorType identifies a monitor type as defined by the Uptime Robot API.
type MonitorType int

const (
	MonitorHTTP    MonitorType = 1
	MonitorKeyword MonitorType = 2
	MonitorPing    MonitorType = 3
	MonitorPort    MonitorType = 4
)

// Keyword check modes for keyword monitors.
const (
	keywordExists = 2
	keywordAbsent = 1
)

// portSubTypes maps well-known ports to the sub_type codes the API expects.
// Any other port uses the "custom" sub type.
var portSubTypes = map[int]int{80: 1, 443: 2, 21: 3, 25: 4, 110: 5, 143: 6}

const portSubTypeCustom = 99

// association is one (contact, threshold, recurrence) triple added via
// AddContacts. threshold is "alert after down for x minutes", recurrence is
// "then alert every y minutes".
type association struct {
	contact    *Contact
	threshold  int
	recurrence int
}

// Monitor is a single monitor definition. Monitors are matched against
// server state by friendly name, which must be unique within a
// configuration.
type Monitor struct {
	friendlyName    string
	url             string
	mtype           MonitorType
	subType         int
	keywordType     int
	keywordValue    string
	httpUsername    string
	httpPassword    string
	port            int
	interval        int // seconds
	httpAuthType    int
	httpMethod      int
	postType        int
	postValue       string
	postContentType int

	serverID string
	added    []association

	// Canonical contact string taken verbatim from a fetched record.
	// Monitors declared locally compute the string from added instead.
	fetched string
}

func newMonitor(mtype MonitorType, name, rawURL string) (*Monitor, error) {
	if name == "" {
		return nil, &ValidationError{Kind: "monitor", Field: "friendly_name", Reason: "required field missing"}
	}
	if rawURL == "" {
		return nil, &ValidationError{Kind: "monitor", Field: "url", Reason: "required field missing"}
	}
	if mtype == 0 {
		return nil, &ValidationError{Kind: "monitor", Field: "type", Reason: "required field missing"}
	}
	return &Monitor{friendlyName: name, url: rawURL, mtype: mtype}, nil
}

// monitorFromRecord builds a Monitor from a raw getMonitors record. When the
// record carries an alert_contacts list (getMonitors called with
// alert_contacts=1), the canonical contact string is derived from it.
func monitorFromRecord(rec record) (*Monitor, error) {
	for _, f := range []string{"friendly_name", "url", "type"} {
		if !rec.has(f) {
			return nil, &ValidationError{Kind: "monitor", Field: f, Reason: "required field missing"}
		}
	}

	m := &Monitor{}
	strFields := map[string]*string{
		"friendly_name": &m.friendlyName,
		"url":           &m.url,
		"keyword_value": &m.keywordValue,
		"http_username": &m.httpUsername,
		"http_password": &m.httpPassword,
		"post_value":    &m.postValue,
		"id":            &m.serverID,
	}
	for field, dst := range strFields {
		v, err := rec.str(field)
		if err != nil {
			return nil, fieldErr("monitor", field, err)
		}
		*dst = v
	}
	intFields := map[string]*int{
		"sub_type":          &m.subType,
		"keyword_type":      &m.keywordType,
		"port":              &m.port,
		"interval":          &m.interval,
		"http_auth_type":    &m.httpAuthType,
		"http_method":       &m.httpMethod,
		"post_type":         &m.postType,
		"post_content_type": &m.postContentType,
	}
	for field, dst := range intFields {
		v, err := rec.num(field)
		if err != nil {
			return nil, fieldErr("monitor", field, err)
		}
		*dst = v
	}
	mtype, err := rec.num("type")
	if err != nil {
		return nil, fieldErr("monitor", "type", err)
	}
	m.mtype = MonitorType(mtype)

	if raw, ok := rec["alert_contacts"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, &ValidationError{Kind: "monitor", Field: "alert_contacts", Reason: "expected a list"}
		}
		tokens := make([]string, 0, len(list))
		for _, item := range list {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, &ValidationError{Kind: "monitor", Field: "alert_contacts", Reason: "expected a list of objects"}
			}
			ac := record(obj)
			id, err := ac.str("id")
			if err != nil {
				return nil, fieldErr("monitor", "alert_contacts.id", err)
			}
			threshold, err := ac.num("threshold")
			if err != nil {
				return nil, fieldErr("monitor", "alert_contacts.threshold", err)
			}
			recurrence, err := ac.num("recurrence")
			if err != nil {
				return nil, fieldErr("monitor", "alert_contacts.recurrence", err)
			}
			tokens = append(tokens, associationToken(id, threshold, recurrence))
		}
		sort.Strings(tokens)
		m.fetched = strings.Join(tokens, "-")
	}

	return m, nil
}

// AddContacts associates contacts with the monitor. threshold is the "down
// for x minutes" value and recurrence the "alert every y minutes" value;
// both may be zero. Contacts must have been declared on the same
// configuration and must have resolved server ids by the time monitors are
// synced, which Sync guarantees by reconciling contacts first.
func (m *Monitor) AddContacts(threshold, recurrence int, contacts ...*Contact) error {
	for _, c := range contacts {
		if c == nil {
			return &AssociationError{Monitor: m.friendlyName, Reason: "nil contact"}
		}
		m.added = append(m.added, association{contact: c, threshold: threshold, recurrence: recurrence})
	}
	return nil
}

// Identity returns the user-facing key that matches this monitor against
// server state.
func (m *Monitor) Identity() string { return m.friendlyName }

// ServerID returns the server-assigned id, or "" if the monitor has not
// been created yet.
func (m *Monitor) ServerID() string { return m.serverID }

// Type returns the monitor type.
func (m *Monitor) Type() MonitorType { return m.mtype }

func (m *Monitor) setServerID(id string) { m.serverID = id }

func (m *Monitor) typeCode() int { return int(m.mtype) }

// contactString renders the monitor's associations in the canonical form
// used both for diffing and for the newMonitor/editMonitor payload:
// "{id}_{threshold}_{recurrence}" tokens, sorted, joined with "-". The
// sorted order makes the string independent of AddContacts call order.
func (m *Monitor) contactString() string {
	if m.fetched != "" {
		return m.fetched
	}
	tokens := make([]string, 0, len(m.added))
	for _, a := range m.added {
		tokens = append(tokens, associationToken(a.contact.serverID, a.threshold, a.recurrence))
	}
	sort.Strings(tokens)
	return strings.Join(tokens, "-")
}

func associationToken(id string, threshold, recurrence int) string {
	return fmt.Sprintf("%s_%d_%d", id, threshold, recurrence)
}

// equal reports field-level equality, including the canonical contact
// string. The server id is excluded.
func (m *Monitor) equal(o *Monitor) bool {
	return m.friendlyName == o.friendlyName &&
		m.url == o.url &&
		m.mtype == o.mtype &&
		m.subType == o.subType &&
		m.keywordType == o.keywordType &&
		m.keywordValue == o.keywordValue &&
		m.httpUsername == o.httpUsername &&
		m.httpPassword == o.httpPassword &&
		m.port == o.port &&
		m.interval == o.interval &&
		m.httpAuthType == o.httpAuthType &&
		m.httpMethod == o.httpMethod &&
		m.postType == o.postType &&
		m.postValue == o.postValue &&
		m.postContentType == o.postContentType &&
		m.contactString() == o.contactString()
}

// createParams builds the newMonitor parameters. Zero and empty values mean
// "not set" and are omitted, except alert_contacts which is always sent so
// that removed associations clear server-side.
func (m *Monitor) createParams() url.Values {
	v := url.Values{}
	setStr(v, "friendly_name", m.friendlyName)
	setStr(v, "url", m.url)
	setInt(v, "type", int(m.mtype))
	setInt(v, "sub_type", m.subType)
	setInt(v, "keyword_type", m.keywordType)
	setStr(v, "keyword_value", m.keywordValue)
	setStr(v, "http_username", m.httpUsername)
	setStr(v, "http_password", m.httpPassword)
	setInt(v, "port", m.port)
	setInt(v, "interval", m.interval)
	setInt(v, "http_auth_type", m.httpAuthType)
	setInt(v, "http_method", m.httpMethod)
	setInt(v, "post_type", m.postType)
	setStr(v, "post_value", m.postValue)
	setInt(v, "post_content_type", m.postContentType)
	v.Set("alert_contacts", m.contactString())
	return v
}

// updateParams builds the editMonitor parameters. The type field is
// immutable server-side and never included.
func (m *Monitor) updateParams() url.Values {
	v := m.createParams()
	v.Del("type")
	return v
}
