// Package notify is the boundary between the RSVP engine and whatever
// actually delivers invitations. The engine hands a fully-assembled
// Invitation (including both signed RSVP links) to a Dispatcher; choosing
// channels and wording is the dispatcher's problem.
package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/inviteq/inviteq/internal/database"
	"github.com/inviteq/inviteq/internal/engine"
	"github.com/inviteq/inviteq/internal/token"
)

// Invitation is everything a delivery channel needs to tell one invitee
// they have a spot waiting.
type Invitation struct {
	EventID     string
	EventTitle  string
	ScheduledAt time.Time

	InviteeName string
	Identity    string

	ConfirmURL string
	DeclineURL string
}

// Dispatcher delivers invitations. Implementations send email or SMS; the
// engine never waits on delivery semantics beyond the returned error.
type Dispatcher interface {
	InvitationSent(ctx context.Context, inv Invitation) error
}

// LogDispatcher writes invitations to the log instead of sending them.
// Stands in for a real email/SMS integration.
type LogDispatcher struct{}

func (LogDispatcher) InvitationSent(_ context.Context, inv Invitation) error {
	log.Printf("invitation for %q (%s) to event %s: confirm=%s decline=%s",
		inv.InviteeName, inv.Identity, inv.EventID, inv.ConfirmURL, inv.DeclineURL)
	return nil
}

// LinkBuilder mints the confirm/decline token pair for an invitee and
// embeds them in RSVP URLs under the configured base URL.
type LinkBuilder struct {
	baseURL string
	tokens  *token.Service
}

func NewLinkBuilder(baseURL string, tokens *token.Service) *LinkBuilder {
	return &LinkBuilder{baseURL: baseURL, tokens: tokens}
}

// Links mints a fresh confirm and decline link for one invitee identity.
func (b *LinkBuilder) Links(eventID, identity string) (confirmURL, declineURL string, err error) {
	confirm, err := b.tokens.Issue(eventID, identity, engine.ActionConfirm, 0)
	if err != nil {
		return "", "", fmt.Errorf("failed to issue confirm token: %w", err)
	}
	decline, err := b.tokens.Issue(eventID, identity, engine.ActionDecline, 0)
	if err != nil {
		return "", "", fmt.Errorf("failed to issue decline token: %w", err)
	}
	return b.baseURL + "/rsvp/" + confirm, b.baseURL + "/rsvp/" + decline, nil
}

// Invitation assembles the outbound notification for one invitee, minting
// both RSVP links.
func (b *LinkBuilder) Invitation(ev *database.Event, inv *database.Invitee) (Invitation, error) {
	confirmURL, declineURL, err := b.Links(ev.ID, inv.Identity())
	if err != nil {
		return Invitation{}, err
	}
	return Invitation{
		EventID:     ev.ID,
		EventTitle:  ev.Title,
		ScheduledAt: ev.ScheduledAt,
		InviteeName: inv.Name,
		Identity:    inv.Identity(),
		ConfirmURL:  confirmURL,
		DeclineURL:  declineURL,
	}, nil
}
