// README: Worker eligibility record, owned by external profile management.
package directory

import "housecall/internal/types"

// Medic is read-only from the core's perspective; profile management owns
// every field, including approval.
type Medic struct {
	ID             types.ID
	City           string
	Districts      []string
	Available      bool
	Approved       bool
	TelegramChatID *int64
}

// ServesDistrict reports whether the medic covers the given district.
func (m *Medic) ServesDistrict(district string) bool {
	for _, d := range m.Districts {
		if d == district {
			return true
		}
	}
	return false
}

// Eligible is the flat dispatch filter: same city, district served,
// approved, and currently available. No ranking, no distance.
func (m *Medic) Eligible(city, district string) bool {
	return m.Approved && m.Available && m.City == city && m.ServesDistrict(district)
}
