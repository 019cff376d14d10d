package ups

import (
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/nerrad567/upsdash-core/internal/nut"
)

// DeviceEntry is the last known state of one UPS served by upsd.
type DeviceEntry struct {
	// Name is the upsd identifier of the device, unique within the daemon.
	Name string `json:"name"`

	// Description is the free-text description from "LIST UPS".
	Description string `json:"description"`

	// Variables holds the values reported by "LIST VAR".
	Variables map[string]nut.Value `json:"variables"`

	// RWVariables holds the writable variables and their constraints.
	RWVariables map[string]VarDetail `json:"rw_variables"`

	// Commands is the set of supported instant command ids. It is replaced
	// wholesale on every successful command refresh.
	Commands map[string]struct{} `json:"-"`
}

// DeepCopy returns an independent copy of the entry.
func (d *DeviceEntry) DeepCopy() *DeviceEntry {
	if d == nil {
		return nil
	}

	cp := &DeviceEntry{
		Name:        d.Name,
		Description: d.Description,
		Variables:   maps.Clone(d.Variables),
		Commands:    maps.Clone(d.Commands),
	}

	if d.RWVariables != nil {
		cp.RWVariables = make(map[string]VarDetail, len(d.RWVariables))
		for name, detail := range d.RWVariables {
			cp.RWVariables[name] = cloneDetail(detail)
		}
	}

	return cp
}

// HasCommand reports whether id is in the device's command set.
func (d *DeviceEntry) HasCommand(id string) bool {
	_, ok := d.Commands[id]
	return ok
}

// CommandIDs returns the command set in sorted order.
func (d *DeviceEntry) CommandIDs() []string {
	var ids []string
	for id := range d.Commands {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// CommandsCacheEntry is one cached "LIST CMD" result. Entries are replaced,
// never mutated.
type CommandsCacheEntry struct {
	FetchedAt time.Time
	Commands  []nut.InstCmd
}

// VarDetail describes the accepted values of a writable variable. It is
// implemented only by NumberDetail, StringDetail, EnumDetail and RangeDetail.
type VarDetail interface {
	// Accept calls the visitor method matching the concrete variant.
	Accept(v Visitor)

	varDetail()
}

// Visitor handles every VarDetail variant. Adding a variant adds a method
// here, so every implementation must be updated before the code compiles.
type Visitor interface {
	VisitNumber(NumberDetail)
	VisitString(StringDetail)
	VisitEnum(EnumDetail)
	VisitRange(RangeDetail)
}

// NumberDetail accepts any numeric value.
type NumberDetail struct{}

// StringDetail accepts non-blank text of at most MaxLen bytes.
type StringDetail struct {
	MaxLen int
}

// EnumDetail accepts one of Options, in daemon order.
type EnumDetail struct {
	Options []nut.Value
}

// RangeDetail accepts a number within [Min, Max].
type RangeDetail struct {
	Min nut.Value
	Max nut.Value
}

func (d NumberDetail) Accept(v Visitor) { v.VisitNumber(d) }
func (d StringDetail) Accept(v Visitor) { v.VisitString(d) }
func (d EnumDetail) Accept(v Visitor)   { v.VisitEnum(d) }
func (d RangeDetail) Accept(v Visitor)  { v.VisitRange(d) }

func (NumberDetail) varDetail() {}
func (StringDetail) varDetail() {}
func (EnumDetail) varDetail()   {}
func (RangeDetail) varDetail()  {}

func (NumberDetail) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
	}{"NUMBER"})
}

func (d StringDetail) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string `json:"type"`
		MaxLen int    `json:"max_len"`
	}{"STRING", d.MaxLen})
}

func (d EnumDetail) MarshalJSON() ([]byte, error) {
	options := d.Options
	if options == nil {
		options = []nut.Value{}
	}
	return json.Marshal(struct {
		Type    string      `json:"type"`
		Options []nut.Value `json:"options"`
	}{"ENUM", options})
}

func (d RangeDetail) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string    `json:"type"`
		Min  nut.Value `json:"min"`
		Max  nut.Value `json:"max"`
	}{"RANGE", d.Min, d.Max})
}

// detailCloner copies the variants that hold reference types.
type detailCloner struct {
	out VarDetail
}

func (c *detailCloner) VisitNumber(d NumberDetail) { c.out = d }
func (c *detailCloner) VisitString(d StringDetail) { c.out = d }
func (c *detailCloner) VisitEnum(d EnumDetail)     { c.out = EnumDetail{Options: slices.Clone(d.Options)} }
func (c *detailCloner) VisitRange(d RangeDetail)   { c.out = d }

func cloneDetail(d VarDetail) VarDetail {
	if d == nil {
		return nil
	}
	var c detailCloner
	d.Accept(&c)
	return c.out
}
