package types

// UserID is the CRM provider's user identifier. It is the primary
// correlation key between local users and remote users.
type UserID string

func (x UserID) String() string { return string(x) }

// LocationID is the CRM provider's tenant (location) identifier
type LocationID string

func (x LocationID) String() string { return string(x) }

// ContactID is the CRM provider's contact identifier
type ContactID string

func (x ContactID) String() string { return string(x) }
