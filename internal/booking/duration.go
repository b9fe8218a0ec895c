package booking

import "ms-booking/internal/models"

// DefaultDurationMinutes is used whenever no duration rule covers the party
// size, the service has no rules, or no service was specified.
const DefaultDurationMinutes = 120

// ResolveDuration picks the booking duration for a party size from the
// service's duration rules. First matching rule wins, in rule position order,
// so gaps and overlaps between rules are tolerated rather than rejected.
func ResolveDuration(service *models.Service, partySize int) int {
	if service == nil {
		return DefaultDurationMinutes
	}
	for _, rule := range service.DurationRules {
		if rule.MinGuests <= partySize && partySize <= rule.MaxGuests {
			return rule.DurationMinutes
		}
	}
	return DefaultDurationMinutes
}
