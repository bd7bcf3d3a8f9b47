package sales

import (
	"strconv"

	"github.com/gagliardetto/solana-go"
)

const (
	EventTypeSaleInitialized = "sale.initialized"
	EventTypeSaleDeposited   = "sale.deposited"
	EventTypeSalePurchased   = "sale.purchased"
	EventTypeSaleClosed      = "sale.closed"
)

// Event is a settlement state change, emitted only after the change is
// committed.
type Event struct {
	Type       string            `json:"type"`
	Sale       solana.PublicKey  `json:"sale"`
	TxID       string            `json:"tx_id,omitempty"`
	Timestamp  int64             `json:"timestamp"`
	Attributes map[string]string `json:"attributes"`
}

// Emitter broadcasts events to downstream subscribers such as the journal.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

// MultiEmitter fans an event out to every wrapped emitter in order.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(evt Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(evt)
		}
	}
}

func newSaleEvent(eventType string, sale *SaleAccount, txID solana.Signature, now int64) Event {
	attrs := map[string]string{
		"authority":         sale.Authority.String(),
		"tokenMint":         sale.TokenMint.String(),
		"paymentMint":       sale.PaymentMint.String(),
		"pricePerUnit":      strconv.FormatUint(sale.PricePerUnit, 10),
		"quantityAvailable": strconv.FormatUint(sale.QuantityAvailable, 10),
		"status":            sale.Status.String(),
	}
	evt := Event{Type: eventType, Sale: sale.Address, Timestamp: now, Attributes: attrs}
	if txID != (solana.Signature{}) {
		evt.TxID = txID.String()
	}
	return evt
}

// NewInitializedEvent returns the event for a newly created sale.
func NewInitializedEvent(sale *SaleAccount, txID solana.Signature, now int64) Event {
	evt := newSaleEvent(EventTypeSaleInitialized, sale, txID, now)
	evt.Attributes["endTime"] = strconv.FormatInt(sale.EndTime, 10)
	return evt
}

// NewDepositedEvent returns the event for a top-up of amount tokens.
func NewDepositedEvent(sale *SaleAccount, amount uint64, txID solana.Signature, now int64) Event {
	evt := newSaleEvent(EventTypeSaleDeposited, sale, txID, now)
	evt.Attributes["amount"] = strconv.FormatUint(amount, 10)
	return evt
}

// NewPurchasedEvent returns the event for a settled purchase.
func NewPurchasedEvent(sale *SaleAccount, rec *PurchaseRecord, txID solana.Signature, now int64) Event {
	evt := newSaleEvent(EventTypeSalePurchased, sale, txID, now)
	evt.Attributes["buyer"] = rec.Buyer.String()
	evt.Attributes["quantity"] = strconv.FormatUint(rec.Quantity, 10)
	evt.Attributes["cost"] = strconv.FormatUint(rec.Cost, 10)
	return evt
}

// NewClosedEvent returns the event for a closed sale; returned is the vault
// balance handed back to the authority.
func NewClosedEvent(sale *SaleAccount, returned uint64, txID solana.Signature, now int64) Event {
	evt := newSaleEvent(EventTypeSaleClosed, sale, txID, now)
	evt.Attributes["returned"] = strconv.FormatUint(returned, 10)
	return evt
}
