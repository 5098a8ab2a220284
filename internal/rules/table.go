package rules

import (
	"strings"

	"github.com/kirinyoku/tablego/internal/domain"
)

// TablePayload carries the raw values of a table creation request. A nil
// *TablePayload means the request had no data object.
type TablePayload struct {
	Name     any
	Capacity any
}

func NewTablePayload(data map[string]any) *TablePayload {
	if data == nil {
		return nil
	}

	return &TablePayload{
		Name:     data["table_name"],
		Capacity: data["capacity"],
	}
}

// Table converts a payload that passed ValidateTable into a free table.
func (p *TablePayload) Table() domain.Table {
	capacity, _ := asInt(p.Capacity)

	return domain.Table{
		Name:     strings.TrimSpace(p.Name.(string)),
		Capacity: capacity,
	}
}

var tableChecks = []Check[*TablePayload]{
	func(p *TablePayload) error {
		if p == nil {
			return Validation("Table information required")
		}
		return nil
	},
	func(p *TablePayload) error {
		name, ok := p.Name.(string)
		if !ok || len(strings.TrimSpace(name)) < 2 {
			return Validation("table_name is required")
		}
		return nil
	},
	func(p *TablePayload) error {
		if n, ok := asInt(p.Capacity); !ok || n <= 0 {
			return Validation("capacity is required")
		}
		return nil
	},
}

func ValidateTable(p *TablePayload) error {
	return Run(p, tableChecks...)
}
