// Package declfile translates the contacts and monitors sections of the
// urconf configuration file into library declarations.
package declfile

import (
	"fmt"
	"time"

	"github.com/knyar/urconf"
	"github.com/spf13/viper"
)

// File is the declarative part of the configuration file.
type File struct {
	Contacts []ContactDecl `mapstructure:"contacts"`
	Monitors []MonitorDecl `mapstructure:"monitors"`
}

// ContactDecl declares one alert contact.
type ContactDecl struct {
	Type  string `mapstructure:"type"` // sms, email, twitter_dm, boxcar, webhook, pushbullet, pushover
	Value string `mapstructure:"value"`
	Name  string `mapstructure:"name"`
}

// ContactRef attaches a declared contact to a monitor. Contact is the
// contact's name, falling back to its value if no name was given.
type ContactRef struct {
	Contact    string `mapstructure:"contact"`
	Threshold  int    `mapstructure:"threshold"`
	Recurrence int    `mapstructure:"recurrence"`
}

// MonitorDecl declares one monitor.
type MonitorDecl struct {
	Name          string        `mapstructure:"name"`
	Type          string        `mapstructure:"type"` // http, keyword, ping, port
	URL           string        `mapstructure:"url"`
	Keyword       string        `mapstructure:"keyword"`
	KeywordAbsent bool          `mapstructure:"keyword_absent"`
	Hostname      string        `mapstructure:"hostname"`
	Port          int           `mapstructure:"port"`
	Interval      time.Duration `mapstructure:"interval"`
	HTTPUsername  string        `mapstructure:"http_username"`
	HTTPPassword  string        `mapstructure:"http_password"`
	Contacts      []ContactRef  `mapstructure:"contacts"`
}

var contactTypes = map[string]urconf.ContactType{
	"sms":        urconf.ContactSMS,
	"email":      urconf.ContactEmail,
	"twitter_dm": urconf.ContactTwitterDM,
	"boxcar":     urconf.ContactBoxcar,
	"webhook":    urconf.ContactWebhook,
	"pushbullet": urconf.ContactPushbullet,
	"pushover":   urconf.ContactPushover,
}

// Parse extracts the declarative sections from loaded configuration.
func Parse(v *viper.Viper) (*File, error) {
	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("parsing declarations: %w", err)
	}
	return &f, nil
}

// Apply declares every contact and monitor from the file on the given
// configuration, resolving monitor contact references by name.
func (f *File) Apply(u *urconf.UptimeRobot) error {
	handles := make(map[string]*urconf.Contact, len(f.Contacts))
	for i, cd := range f.Contacts {
		ctype, ok := contactTypes[cd.Type]
		if !ok {
			return fmt.Errorf("contact %d: unknown type %q", i, cd.Type)
		}
		c, err := u.Contact(ctype, cd.Value, cd.Name)
		if err != nil {
			return err
		}
		key := cd.Name
		if key == "" {
			key = cd.Value
		}
		if _, dup := handles[key]; dup {
			return fmt.Errorf("contact %d: duplicate reference name %q", i, key)
		}
		handles[key] = c
	}

	for _, md := range f.Monitors {
		var opts []urconf.MonitorOption
		if md.Interval > 0 {
			opts = append(opts, urconf.Every(md.Interval))
		}
		if md.HTTPUsername != "" || md.HTTPPassword != "" {
			opts = append(opts, urconf.BasicAuth(md.HTTPUsername, md.HTTPPassword))
		}

		var m *urconf.Monitor
		var err error
		switch md.Type {
		case "http":
			m, err = u.HTTPMonitor(md.Name, md.URL, opts...)
		case "keyword":
			if md.KeywordAbsent {
				opts = append(opts, urconf.KeywordMustBeAbsent())
			}
			m, err = u.KeywordMonitor(md.Name, md.URL, md.Keyword, opts...)
		case "ping":
			m, err = u.PingMonitor(md.Name, md.Hostname, opts...)
		case "port":
			m, err = u.PortMonitor(md.Name, md.Hostname, md.Port, opts...)
		default:
			return fmt.Errorf("monitor %q: unknown type %q", md.Name, md.Type)
		}
		if err != nil {
			return err
		}

		for _, ref := range md.Contacts {
			c, ok := handles[ref.Contact]
			if !ok {
				return fmt.Errorf("monitor %q: unknown contact %q", md.Name, ref.Contact)
			}
			if err := m.AddContacts(ref.Threshold, ref.Recurrence, c); err != nil {
				return err
			}
		}
	}

	return nil
}
