// Package urconf declaratively manages Uptime Robot monitoring
// configuration. Callers declare the alert contacts and monitors that
// should exist and call Sync; the package diffs the declarations against
// the server state and issues the create, update and delete calls needed to
// converge.
package urconf

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production Uptime Robot v2 API endpoint.
const DefaultBaseURL = "https://api.uptimerobot.com/v2"

// DefaultInterval is the monitoring interval used for monitors declared
// without an explicit Every option.
const DefaultInterval = 5 * time.Minute

type options struct {
	baseURL         string
	httpClient      *http.Client
	logger          *zap.Logger
	dryRun          bool
	defaultInterval time.Duration
	minRequestGap   time.Duration
}

// Option configures an UptimeRobot instance.
type Option func(*options)

// WithBaseURL overrides the API endpoint. Useful for tests and proxies.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets the logger. The default logger discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDryRun makes Sync compute and log the full diff without issuing any
// mutating API call. Reads still happen. Entities that would have been
// created keep an empty server id.
func WithDryRun(dryRun bool) Option {
	return func(o *options) { o.dryRun = dryRun }
}

// WithDefaultInterval sets the monitoring interval applied to monitors
// declared without an explicit Every option.
func WithDefaultInterval(d time.Duration) Option {
	return func(o *options) { o.defaultInterval = d }
}

// WithMinRequestInterval spaces API calls at least d apart. The Uptime
// Robot API throttles aggressively on free plans.
func WithMinRequestInterval(d time.Duration) Option {
	return func(o *options) { o.minRequestGap = d }
}

// UptimeRobot holds the declared configuration and syncs it to the server.
// Declare contacts and monitors first, then call Sync. Not safe for
// concurrent use.
type UptimeRobot struct {
	api             api
	logger          *zap.Logger
	dryRun          bool
	defaultInterval time.Duration

	contacts     map[string]*Contact
	contactOrder []string
	monitors     map[string]*Monitor
	monitorOrder []string
}

// New creates an UptimeRobot configuration for the given API key. The key
// must be the account-level key, not a monitor-specific one.
func New(apiKey string, opts ...Option) *UptimeRobot {
	o := options{
		baseURL:         DefaultBaseURL,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		logger:          zap.NewNop(),
		defaultInterval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if o.minRequestGap > 0 {
		limiter = rate.NewLimiter(rate.Every(o.minRequestGap), 1)
	}

	return &UptimeRobot{
		api:             newAPIClient(apiKey, o.baseURL, o.httpClient, limiter, o.logger.Named("api")),
		logger:          o.logger,
		dryRun:          o.dryRun,
		defaultInterval: o.defaultInterval,
		contacts:        make(map[string]*Contact),
		monitors:        make(map[string]*Monitor),
	}
}

// Contact declares an alert contact of an arbitrary type. The type-specific
// helpers below cover the common cases; this is useful for contact types
// the newAlertContact endpoint does not support, which then have to be
// created in the UI but can still be referenced by monitors.
func (u *UptimeRobot) Contact(ctype ContactType, value, friendlyName string) (*Contact, error) {
	c, err := newContact(ctype, value, friendlyName)
	if err != nil {
		return nil, err
	}
	if _, dup := u.contacts[c.Identity()]; dup {
		return nil, &DuplicateIdentityError{Kind: "contact", Identity: c.Identity()}
	}
	u.contacts[c.Identity()] = c
	u.contactOrder = append(u.contactOrder, c.Identity())
	u.logger.Debug("contact declared",
		zap.String("value", c.value),
		zap.Int("type", int(c.ctype)),
	)
	return c, nil
}

// EmailContact declares an email contact. If name is empty the address is
// used as the display name.
func (u *UptimeRobot) EmailContact(email, name string) (*Contact, error) {
	if name == "" {
		name = email
	}
	return u.Contact(ContactEmail, email, name)
}

// SMSContact declares an SMS contact.
func (u *UptimeRobot) SMSContact(number, name string) (*Contact, error) {
	return u.Contact(ContactSMS, number, name)
}

// TwitterDMContact declares a Twitter direct-message contact.
func (u *UptimeRobot) TwitterDMContact(value, name string) (*Contact, error) {
	return u.Contact(ContactTwitterDM, value, name)
}

// BoxcarContact declares a Boxcar contact.
func (u *UptimeRobot) BoxcarContact(key, name string) (*Contact, error) {
	return u.Contact(ContactBoxcar, key, name)
}

// WebhookContact declares a webhook contact.
func (u *UptimeRobot) WebhookContact(value, name string) (*Contact, error) {
	return u.Contact(ContactWebhook, value, name)
}

// PushbulletContact declares a Pushbullet contact.
func (u *UptimeRobot) PushbulletContact(value, name string) (*Contact, error) {
	return u.Contact(ContactPushbullet, value, name)
}

// PushoverContact declares a Pushover contact.
func (u *UptimeRobot) PushoverContact(value, name string) (*Contact, error) {
	return u.Contact(ContactPushover, value, name)
}

// MonitorOption tweaks a monitor declaration.
type MonitorOption func(*Monitor)

// Every sets the monitoring interval.
func Every(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.interval = int(d / time.Second) }
}

// BasicAuth sets HTTP basic auth credentials for HTTP and keyword monitors.
func BasicAuth(username, password string) MonitorOption {
	return func(m *Monitor) {
		m.httpUsername = username
		m.httpPassword = password
	}
}

// KeywordMustBeAbsent inverts a keyword monitor: the check fails when the
// keyword is present instead of when it is missing.
func KeywordMustBeAbsent() MonitorOption {
	return func(m *Monitor) { m.keywordType = keywordAbsent }
}

// HTTPMonitor declares a plain HTTP(S) monitor.
func (u *UptimeRobot) HTTPMonitor(name, rawURL string, opts ...MonitorOption) (*Monitor, error) {
	m, err := newMonitor(MonitorHTTP, name, rawURL)
	if err != nil {
		return nil, err
	}
	return u.declareMonitor(m, opts)
}

// KeywordMonitor declares a monitor that checks for a keyword in the
// response body. By default the keyword must be present; see
// KeywordMustBeAbsent.
func (u *UptimeRobot) KeywordMonitor(name, rawURL, keyword string, opts ...MonitorOption) (*Monitor, error) {
	if keyword == "" {
		return nil, &ValidationError{Kind: "monitor", Field: "keyword_value", Reason: "required field missing"}
	}
	m, err := newMonitor(MonitorKeyword, name, rawURL)
	if err != nil {
		return nil, err
	}
	m.keywordValue = keyword
	m.keywordType = keywordExists
	return u.declareMonitor(m, opts)
}

// PingMonitor declares an ICMP ping monitor.
func (u *UptimeRobot) PingMonitor(name, host string, opts ...MonitorOption) (*Monitor, error) {
	m, err := newMonitor(MonitorPing, name, host)
	if err != nil {
		return nil, err
	}
	return u.declareMonitor(m, opts)
}

// PortMonitor declares a TCP port monitor. Well-known ports map to their
// dedicated sub types; anything else uses the custom sub type.
func (u *UptimeRobot) PortMonitor(name, hostname string, port int, opts ...MonitorOption) (*Monitor, error) {
	if port <= 0 {
		return nil, &ValidationError{Kind: "monitor", Field: "port", Reason: "required field missing"}
	}
	m, err := newMonitor(MonitorPort, name, hostname)
	if err != nil {
		return nil, err
	}
	m.port = port
	m.subType = portSubTypeCustom
	if st, ok := portSubTypes[port]; ok {
		m.subType = st
	}
	return u.declareMonitor(m, opts)
}

func (u *UptimeRobot) declareMonitor(m *Monitor, opts []MonitorOption) (*Monitor, error) {
	m.interval = int(u.defaultInterval / time.Second)
	for _, opt := range opts {
		opt(m)
	}
	if _, dup := u.monitors[m.Identity()]; dup {
		return nil, &DuplicateIdentityError{Kind: "monitor", Identity: m.Identity()}
	}
	u.monitors[m.Identity()] = m
	u.monitorOrder = append(u.monitorOrder, m.Identity())
	u.logger.Debug("monitor declared",
		zap.String("name", m.friendlyName),
		zap.Int("type", int(m.mtype)),
	)
	return m, nil
}

// Sync converges the server state to the declared configuration. Contacts
// are reconciled strictly before monitors because monitor association
// strings embed contact server ids. The first error aborts the run; actions
// already applied are not rolled back.
func (u *UptimeRobot) Sync(ctx context.Context) (*SyncResult, error) {
	result := &SyncResult{DryRun: u.dryRun}

	if err := reconcile(ctx, u, contactResource, u.contacts, u.contactOrder, contactFromRecord, nil, &result.Contacts); err != nil {
		syncsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("sync contacts: %w", err)
	}

	// alert_contacts=1 makes getMonitors include resolved associations.
	extra := url.Values{"alert_contacts": []string{"1"}}
	if err := reconcile(ctx, u, monitorResource, u.monitors, u.monitorOrder, monitorFromRecord, extra, &result.Monitors); err != nil {
		syncsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("sync monitors: %w", err)
	}

	syncsTotal.WithLabelValues("ok").Inc()
	return result, nil
}
