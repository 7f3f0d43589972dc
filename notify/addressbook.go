/*
addressbook.go - Chat address resolution and healing

PURPOSE:
  Maps deficient users to the direct-message spaces the bot can reach them
  in. Resolution is cache-first: the persisted address book is consulted by
  email, and only if it cannot cover the deficiency list does the resolver
  fall back to one batch reverse lookup against the chat platform.

ADDRESS HEALING:
  Reverse lookup yields addresses without an email (the chat platform only
  exposes display names). When a discovered address matches a deficient
  user by display name, the user's email is attached to it and the record
  is queued for persistence. Discovered addresses that match nobody are
  persisted anyway, email-less, as a negative cache - the next run finds
  them in the book and skips re-querying those spaces.
*/
package notify

import (
	"context"
	"strings"
)

// =============================================================================
// TYPES
// =============================================================================

// ChatAddress links a chat direct-message space to a user. Email stays empty
// until the record is healed.
type ChatAddress struct {
	SpaceID     string
	UserID      string
	DisplayName string
	Email       string
}

// ChatTarget is a resolved chat space messages can be sent to.
type ChatTarget struct {
	SpaceID string
	Name    string
}

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// AddressBook is the persisted space-to-user mapping. Writes are
// merge-or-insert: persisting an address that already exists updates it.
type AddressBook interface {
	FetchAll(ctx context.Context) ([]ChatAddress, error)
	PersistBatch(ctx context.Context, addresses []ChatAddress) error
}

// ChatPlatform is the messaging side of the chat service.
type ChatPlatform interface {
	// ReverseLookupBySpaceNames enumerates the bot's direct-message spaces,
	// skipping the already-known space names given, and returns one address
	// per remaining space. Discovered addresses carry no email.
	ReverseLookupBySpaceNames(ctx context.Context, knownSpaceNames []string) ([]ChatAddress, error)

	SendDirectMessage(ctx context.Context, text string, to ChatAddress) error
	SendToSpace(ctx context.Context, text string, target ChatTarget) error
	ResolveSpaceByName(ctx context.Context, name string) (*ChatTarget, error)
}

// Mailer sends one email to a batch of recipients.
type Mailer interface {
	SendBatch(ctx context.Context, subject, body string, recipients []string) error
}

// =============================================================================
// RESOLUTION
// =============================================================================

// resolvedAddresses is the outcome of one resolution round.
type resolvedAddresses struct {
	byEmail   map[string]ChatAddress // known, healed records keyed by lowercase email
	byName    map[string]ChatAddress // discovered, email-less records keyed by display name
	toPersist []ChatAddress          // every discovered record, queued for one batch write
}

// resolveAddresses loads the address book and, when it cannot cover every
// user in need, performs the single batch reverse lookup. Coverage is the
// intersection of the book's healed emails with neededEmails; healed records
// for users who are not in need never suppress the lookup.
func resolveAddresses(ctx context.Context, book AddressBook, chat ChatPlatform, neededEmails map[string]bool) (*resolvedAddresses, error) {
	stored, err := book.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	r := &resolvedAddresses{
		byEmail: make(map[string]ChatAddress),
		byName:  make(map[string]ChatAddress),
	}
	covered := 0
	knownSpaces := make([]string, 0, len(stored))
	for _, addr := range stored {
		knownSpaces = append(knownSpaces, addr.SpaceID)
		if addr.Email != "" {
			email := strings.ToLower(addr.Email)
			r.byEmail[email] = addr
			if neededEmails[email] {
				covered++
			}
		}
	}

	if covered >= len(neededEmails) {
		return r, nil
	}

	discovered, err := chat.ReverseLookupBySpaceNames(ctx, knownSpaces)
	if err != nil {
		return nil, err
	}
	for _, addr := range discovered {
		if addr.Email == "" {
			r.byName[addr.DisplayName] = addr
		}
		r.toPersist = append(r.toPersist, addr)
	}
	return r, nil
}

// lookup finds an address for a user: known record by email first, then a
// discovered record by display name, healed with the user's email and queued
// for persistence. Returns nil when the user is unreachable.
func (r *resolvedAddresses) lookup(email, displayName string) *ChatAddress {
	if addr, ok := r.byEmail[strings.ToLower(email)]; ok {
		return &addr
	}
	if addr, ok := r.byName[displayName]; ok {
		addr.Email = email
		delete(r.byName, displayName)
		for i := range r.toPersist {
			if r.toPersist[i].SpaceID == addr.SpaceID {
				r.toPersist[i].Email = email
			}
		}
		return &addr
	}
	return nil
}
