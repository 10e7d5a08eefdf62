package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Event is the minimal Stripe event envelope. Object stays raw until the
// router knows which shape to decode.
type Event struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Created  int64     `json:"created"`
	Livemode bool      `json:"livemode"`
	Data     eventData `json:"data"`
}

type eventData struct {
	Object json.RawMessage `json:"object"`
}

// ParseEvent decodes a verified webhook body.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	ev.ID = strings.TrimSpace(ev.ID)
	ev.Type = strings.TrimSpace(ev.Type)
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}
	return &ev, nil
}

// Invoice holds the invoice fields the entitlement core needs.
type Invoice struct {
	ID             string
	SubscriptionID string
	Livemode       bool
	CustomerID     string
	PeriodEndEpoch int64 // seconds; 0 when the first line item has none
}

// ExpiresAtMs is the entitlement expiry implied by the invoice period.
func (i *Invoice) ExpiresAtMs() int64 {
	return i.PeriodEndEpoch * 1000
}

// expandable accepts either a bare id string or an expanded object with an id.
type expandable string

func (e *expandable) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*e = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = expandable(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*e = expandable(obj.ID)
	return nil
}

type rawInvoice struct {
	ID           string     `json:"id"`
	Subscription expandable `json:"subscription"`
	Livemode     bool       `json:"livemode"`
	Customer     expandable `json:"customer"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription expandable `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	Lines struct {
		Data []struct {
			Period struct {
				End int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
}

// ParseInvoice decodes an invoice event object.
func ParseInvoice(object json.RawMessage) (*Invoice, error) {
	var raw rawInvoice
	if err := json.Unmarshal(object, &raw); err != nil {
		return nil, fmt.Errorf("%w: invoice: %v", ErrMalformedEvent, err)
	}

	subID := strings.TrimSpace(string(raw.Subscription))
	// newer API versions only expose the subscription under parent
	if subID == "" && raw.Parent != nil && raw.Parent.SubscriptionDetails != nil {
		subID = strings.TrimSpace(string(raw.Parent.SubscriptionDetails.Subscription))
	}

	inv := &Invoice{
		ID:             strings.TrimSpace(raw.ID),
		SubscriptionID: subID,
		Livemode:       raw.Livemode,
		CustomerID:     strings.TrimSpace(string(raw.Customer)),
	}
	if len(raw.Lines.Data) > 0 {
		inv.PeriodEndEpoch = raw.Lines.Data[0].Period.End
	}
	return inv, nil
}
