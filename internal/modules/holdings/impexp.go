package holdings

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cht-holly/chtholly-vault/internal/domain"
)

// ExportDocument is the portable file format for a set of holdings
type ExportDocument struct {
	Name       string          `json:"name"`
	ExportDate time.Time       `json:"exportDate"`
	Holdings   []ExportHolding `json:"holdings"`
}

// ExportHolding is one holding inside an export file
type ExportHolding struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Symbol           string     `json:"symbol"`
	Quantity         float64    `json:"quantity"`
	PurchasePrice    *float64   `json:"purchasePrice,omitempty"`
	TargetMultiplier *float64   `json:"targetMultiplier,omitempty"`
	Image            string     `json:"image,omitempty"`
	AddedDate        *time.Time `json:"addedDate,omitempty"`
}

// ErrMalformedExport is returned when an import file cannot be read
var ErrMalformedExport = errors.New("malformed export file")

func newExportDocument(name string, exportedAt time.Time, holdings []domain.Holding) ExportDocument {
	doc := ExportDocument{
		Name:       name,
		ExportDate: exportedAt,
		Holdings:   make([]ExportHolding, 0, len(holdings)),
	}
	for _, h := range holdings {
		added := h.AddedAt
		doc.Holdings = append(doc.Holdings, ExportHolding{
			ID:               h.ID,
			Name:             h.Name,
			Symbol:           h.Symbol,
			Quantity:         h.Quantity,
			PurchasePrice:    cloneFloat(h.CostBasis),
			TargetMultiplier: cloneFloat(h.TargetMultiplier),
			Image:            h.Image,
			AddedDate:        &added,
		})
	}
	return doc
}

// EncodeExport renders an export document as indented JSON
func EncodeExport(doc ExportDocument) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return data, nil
}

// DecodeExport parses an export file into holdings ready for ImportAll.
// Holdings without an addedDate get now.
func DecodeExport(data []byte, now time.Time) ([]domain.Holding, error) {
	var raw struct {
		Holdings *[]ExportHolding `json:"holdings"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedExport, err)
	}
	if raw.Holdings == nil {
		return nil, fmt.Errorf("%w: missing holdings array", ErrMalformedExport)
	}

	holdings := make([]domain.Holding, 0, len(*raw.Holdings))
	for _, eh := range *raw.Holdings {
		addedAt := now
		if eh.AddedDate != nil && !eh.AddedDate.IsZero() {
			addedAt = *eh.AddedDate
		}
		holdings = append(holdings, domain.Holding{
			ID:               eh.ID,
			Symbol:           eh.Symbol,
			Name:             eh.Name,
			Quantity:         eh.Quantity,
			CostBasis:        cloneFloat(eh.PurchasePrice),
			TargetMultiplier: cloneFloat(eh.TargetMultiplier),
			Image:            eh.Image,
			AddedAt:          addedAt,
		})
	}
	return holdings, nil
}
