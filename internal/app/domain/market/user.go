package market

// User is a market participant. Users are created on first reference to an
// unseen username and never deleted; the only mutation is appending the id
// of an offer they placed.
type User struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
	OfferIDs []ID   `json:"offer_ids"`
}

// NewUser returns a user with no offers.
func NewUser(id ID, username string) User {
	return User{ID: id, Username: username}
}

// AddOfferID appends an offer reference, keeping set semantics.
func (u *User) AddOfferID(offerID ID) {
	for _, existing := range u.OfferIDs {
		if existing == offerID {
			return
		}
	}
	u.OfferIDs = append(u.OfferIDs, offerID)
}

// Clone returns a deep copy safe to hand to callers.
func (u User) Clone() User {
	out := u
	out.OfferIDs = append([]ID(nil), u.OfferIDs...)
	return out
}
