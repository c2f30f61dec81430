package main

import (
	"github.com/lutendolukhele/intentorch/internal/providergw"
)

// staticConnections is the single-tenant connection resolver used by local
// runs and the dev config: every user shares the same mail/calendar/CRM
// connection, identified by the fixed connectionID "default". A multi-tenant
// deployment replaces this with a resolver backed by its own connection
// store, same as the teacher's channel adapters resolve per-workspace
// credentials from its database rather than from config.
type staticConnections struct {
	mail     providergw.MailConnectionConfig
	calendar providergw.CalConnectionConfig
	keys     []string
}

const defaultConnectionID = "default"

// ConnectedProviderKeys implements toolfilter.ConnectionLookup: every user
// is connected to every configured provider.
func (s *staticConnections) ConnectedProviderKeys(userID string) ([]string, error) {
	return s.keys, nil
}

// ResolveConnection implements orchestrator.ConnectionResolver.
func (s *staticConnections) ResolveConnection(userID, providerKey string) (string, bool) {
	for _, k := range s.keys {
		if k == providerKey {
			return defaultConnectionID, true
		}
	}
	return "", false
}

// ResolveMailConnection implements providergw.MailConnectionResolver.
func (s *staticConnections) ResolveMailConnection(connectionID string) (providergw.MailConnectionConfig, error) {
	return s.mail, nil
}

// ResolveCalConnection implements providergw.CalConnectionResolver.
func (s *staticConnections) ResolveCalConnection(connectionID string) (providergw.CalConnectionConfig, error) {
	return s.calendar, nil
}
