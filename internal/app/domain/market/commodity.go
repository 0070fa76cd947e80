package market

// Commodity is a tradable item type. Size is a reference quantity recorded
// when the commodity is first seen; later offers never change it. Owners
// lists every user who has ever placed an offer against the commodity — a
// derived lookup relation, not ownership of record.
type Commodity struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Size   uint64 `json:"size"`
	Owners []ID   `json:"owners"`
}

// NewCommodity returns a commodity seeded with a single owner.
func NewCommodity(id ID, name string, size uint64, owner ID) Commodity {
	c := Commodity{ID: id, Name: name, Size: size}
	if owner != NilID {
		c.Owners = append(c.Owners, owner)
	}
	return c
}

// AddOwner appends an owning user reference, keeping set semantics.
func (c *Commodity) AddOwner(userID ID) {
	for _, existing := range c.Owners {
		if existing == userID {
			return
		}
	}
	c.Owners = append(c.Owners, userID)
}

// Clone returns a deep copy safe to hand to callers.
func (c Commodity) Clone() Commodity {
	out := c
	out.Owners = append([]ID(nil), c.Owners...)
	return out
}
