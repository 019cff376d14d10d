package ups

// DescriptionPool maps command and variable ids to their human-readable
// description. Devices of the same model share ids, so each description is
// stored once regardless of how many devices report it.
//
// The pool only grows: Upsert overwrites, nothing removes. It has no lock of
// its own; Store guards it.
type DescriptionPool struct {
	entries map[string]string
}

// NewDescriptionPool returns an empty pool.
func NewDescriptionPool() *DescriptionPool {
	return &DescriptionPool{entries: make(map[string]string)}
}

// Upsert sets the description of key, replacing any previous one.
func (p *DescriptionPool) Upsert(key, desc string) {
	p.entries[key] = desc
}

// Lookup returns the description of key.
func (p *DescriptionPool) Lookup(key string) (string, bool) {
	desc, ok := p.entries[key]
	return desc, ok
}

// Len returns the number of stored descriptions.
func (p *DescriptionPool) Len() int {
	return len(p.entries)
}
