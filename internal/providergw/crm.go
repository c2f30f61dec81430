package providergw

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-vcard"
)

// CRMRecord is one vCard-backed contact/lead record held in memory per
// connection. A real CRM SDK appears nowhere in the retrieval pack
// (SPEC_FULL §2), so the CRM surface is modeled as vCard contacts carrying
// custom X- properties for deal stage/amount.
type CRMRecord struct {
	ID        string
	Card      vcard.Card
	UpdatedAt time.Time
}

// CRMStore holds the in-memory contact set for one connectionID. A real
// deployment would back this with the CRM's actual sync/API surface; this
// store exists so the vCard parser has real records to exercise.
type CRMStore interface {
	ListContacts(connectionID string) ([]CRMRecord, error)
	UpsertContact(connectionID string, record CRMRecord) error
}

// CRMAdapter backs fetch_leads/create_lead-style tools by parsing and
// emitting vCard 4.0 documents (grounded on the retrieval pack's
// nugget-thane-ai-agent manifest, which wires emersion/go-vcard).
type CRMAdapter struct {
	store CRMStore

	mu sync.Mutex
}

// NewCRMAdapter builds a CRMAdapter over the given contact store.
func NewCRMAdapter(store CRMStore) *CRMAdapter {
	return &CRMAdapter{store: store}
}

// Warm lists connectionID's contacts from the local store as its identity
// check: the CRM surface here is a local vCard store with no remote
// connection to pre-open.
func (a *CRMAdapter) Warm(ctx context.Context, connectionID string) error {
	_, err := a.store.ListContacts(connectionID)
	return err
}

// FetchFromCache returns contacts/leads as FetchedEntity records. model is
// expected to be "lead" or "contact".
func (a *CRMAdapter) FetchFromCache(ctx context.Context, connectionID, model string, query FetchQuery) ([]FetchedEntity, error) {
	records, err := a.store.ListContacts(connectionID)
	if err != nil {
		return nil, err
	}

	out := make([]FetchedEntity, 0, len(records))
	for _, r := range records {
		if query.ModifiedAfter != nil && r.UpdatedAt.Unix() < *query.ModifiedAfter {
			continue
		}
		out = append(out, entityFromCRMRecord(model, r))
	}
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func entityFromCRMRecord(model string, r CRMRecord) FetchedEntity {
	name := ""
	if fields := r.Card[vcard.FieldFormattedName]; len(fields) > 0 {
		name = fields[0].Value
	}
	stage := ""
	if fields := r.Card["X-DEAL-STAGE"]; len(fields) > 0 {
		stage = fields[0].Value
	}
	amount := ""
	if fields := r.Card["X-DEAL-AMOUNT"]; len(fields) > 0 {
		amount = fields[0].Value
	}
	email := ""
	if fields := r.Card[vcard.FieldEmail]; len(fields) > 0 {
		email = fields[0].Value
	}

	return FetchedEntity{
		ID:   r.ID,
		Type: model,
		Body: map[string]any{
			"name":        name,
			"email":       email,
			"deal_stage":  stage,
			"deal_amount": amount,
		},
		UpdatedAt: r.UpdatedAt.Unix(),
	}
}

// TriggerAction supports "create_lead":
// {name, email, dealStage, dealAmount}.
func (a *CRMAdapter) TriggerAction(ctx context.Context, connectionID, actionName string, payload map[string]any) (map[string]any, error) {
	if actionName != "create_lead" {
		return nil, fmt.Errorf("crm adapter: unsupported action %q", actionName)
	}

	name, _ := payload["name"].(string)
	email, _ := payload["email"].(string)
	stage, _ := payload["dealStage"].(string)
	amount, _ := payload["dealAmount"].(string)

	card := make(vcard.Card)
	card.SetValue(vcard.FieldFormattedName, name)
	card.SetValue(vcard.FieldEmail, email)
	if stage != "" {
		card.SetValue("X-DEAL-STAGE", stage)
	}
	if amount != "" {
		card.SetValue("X-DEAL-AMOUNT", amount)
	}
	card.SetValue(vcard.FieldVersion, "4.0")

	var buf bytes.Buffer
	if err := vcard.NewEncoder(&buf).Encode(card); err != nil {
		return nil, fmt.Errorf("vcard encode: %w", err)
	}

	a.mu.Lock()
	id := strconv.FormatInt(time.Now().UnixNano(), 36)
	a.mu.Unlock()

	record := CRMRecord{ID: id, Card: card, UpdatedAt: time.Now()}
	if err := a.store.UpsertContact(connectionID, record); err != nil {
		return nil, err
	}
	return map[string]any{"id": id, "status": "created", "vcard": buf.String()}, nil
}

// TriggerSync is a no-op for the in-memory CRM store.
func (a *CRMAdapter) TriggerSync(ctx context.Context, connectionID, syncName string) error {
	return nil
}

// ParseVCard decodes a single vCard document, used when ingesting
// externally-sourced contact records.
func ParseVCard(raw []byte) (vcard.Card, error) {
	dec := vcard.NewDecoder(bytes.NewReader(raw))
	return dec.Decode()
}
