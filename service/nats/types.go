package nats

import (
	"time"

	"github.com/brojonat/ticketchain/service/soroban"
)

// Ticket event kinds. Each kind is published to "tickets.{kind}".
const (
	EventSubmitted = "submitted"
	EventConfirmed = "confirmed"
)

// TicketEvent represents a ticket submission event published to NATS.
type TicketEvent struct {
	Kind   string `json:"kind"`
	Hash   string `json:"hash"`
	Signer string `json:"signer,omitempty"`

	// Status is the send status for submitted events and the final
	// ledger status for confirmed events.
	Status string `json:"status"`
	Ledger uint32 `json:"ledger,omitempty"`
	Error  string `json:"error,omitempty"`

	PublishedAt time.Time `json:"published_at"`
}

// Subject returns the JetStream subject the event is published to.
func (e *TicketEvent) Subject() string {
	return SubjectPrefix + e.Kind
}

// SubmittedEvent builds the event for an accepted submission.
func SubmittedEvent(sub *soroban.Submission) *TicketEvent {
	return &TicketEvent{
		Kind:        EventSubmitted,
		Hash:        sub.Hash(),
		Signer:      sub.Signer,
		Status:      sub.Result.Status,
		PublishedAt: time.Now().UTC(),
	}
}

// ConfirmedEvent builds the event for a submission that reached a final status.
func ConfirmedEvent(status *soroban.TxStatus, signer string) *TicketEvent {
	return &TicketEvent{
		Kind:        EventConfirmed,
		Hash:        status.Hash,
		Signer:      signer,
		Status:      status.Status,
		Ledger:      status.Ledger,
		Error:       status.Error,
		PublishedAt: time.Now().UTC(),
	}
}
