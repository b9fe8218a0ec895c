package booking

import (
	"fmt"
	"sort"

	"ms-booking/internal/models"
	"ms-booking/internal/timeslot"
)

// MinOfferedDuration is the floor applied to MaxAvailableDuration: the venue
// never offers a slot shorter than 30 minutes. When the true gap is below the
// floor the result still reports HasConflict so callers can tell a floored
// offer from a genuinely free slot.
const MinOfferedDuration = 30

// occupancy is one time interval held against a table, either a booking or a
// block acting as a pseudo-booking.
type occupancy struct {
	id        string
	guestName string
	startTime string
	start     int
	end       int
	partySize int
}

// CheckConflicts decides whether the requested slot on the given tables is
// free, and if not, the longest duration that can be offered instead. The
// earliest overlapping occupancy (ascending by start) is the binding
// constraint.
func (s *BookingService) CheckConflicts(venueID string, tableIDs []string, date, startTime string, requestedDuration int) (*models.ConflictResult, error) {
	proposedStart, err := timeslot.TimeToMinutes(startTime)
	if err != nil {
		return nil, err
	}
	if requestedDuration <= 0 {
		return nil, fmt.Errorf("requested duration must be positive, got %d", requestedDuration)
	}
	if len(tableIDs) == 0 {
		// Unallocated bookings occupy no table, nothing to conflict with.
		return &models.ConflictResult{HasConflict: false, MaxAvailableDuration: requestedDuration}, nil
	}
	proposedEnd := proposedStart + requestedDuration

	occupancies, err := s.loadOccupancies(venueID, tableIDs, date)
	if err != nil {
		if s.failClosed {
			return nil, fmt.Errorf("availability lookup failed: %w", err)
		}
		// Fail-open: a storage error must not block the booking decision.
		s.Logger.Warn("CONFLICT", fmt.Sprintf("availability lookup failed, assuming slot free (fail-open): %v", err))
		return &models.ConflictResult{HasConflict: false, MaxAvailableDuration: requestedDuration}, nil
	}

	sort.Slice(occupancies, func(i, j int) bool {
		return occupancies[i].start < occupancies[j].start
	})

	for _, occ := range occupancies {
		if !(proposedStart < occ.end && occ.start < proposedEnd) {
			continue
		}
		gap := 0
		if occ.start > proposedStart {
			gap = occ.start - proposedStart
		}
		available := gap
		if available < MinOfferedDuration {
			available = MinOfferedDuration
		}
		return &models.ConflictResult{
			HasConflict:          true,
			MaxAvailableDuration: available,
			Conflicting: &models.ConflictingBooking{
				ID:        occ.id,
				GuestName: occ.guestName,
				StartTime: occ.startTime,
				PartySize: occ.partySize,
			},
		}, nil
	}

	return &models.ConflictResult{HasConflict: false, MaxAvailableDuration: requestedDuration}, nil
}

// loadOccupancies gathers active bookings plus blocks covering any of the
// tables, converted to minute intervals.
func (s *BookingService) loadOccupancies(venueID string, tableIDs []string, date string) ([]occupancy, error) {
	bookings, err := s.DB.GetActiveBookingsForTables(venueID, date, tableIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch bookings: %w", err)
	}
	blocks, err := s.DB.GetBlocksForDate(venueID, date)
	if err != nil {
		return nil, fmt.Errorf("fetch blocks: %w", err)
	}

	var occupancies []occupancy
	for _, b := range bookings {
		start, err := timeslot.TimeToMinutes(b.StartTime)
		if err != nil {
			s.Logger.Warn("CONFLICT", fmt.Sprintf("booking %s has unparseable start time %q, skipping", b.ID, b.StartTime))
			continue
		}
		occupancies = append(occupancies, occupancy{
			id:        b.ID,
			guestName: b.GuestName,
			startTime: b.StartTime,
			start:     start,
			end:       start + b.DurationMinutes,
			partySize: b.PartySize,
		})
	}

	for _, blk := range blocks {
		if !blockCoversAny(&blk, tableIDs) {
			continue
		}
		start, err := timeslot.TimeToMinutes(blk.StartTime)
		if err != nil {
			continue
		}
		end, err := timeslot.TimeToMinutes(blk.EndTime)
		if err != nil {
			continue
		}
		name := "Blocked"
		if blk.Reason != "" {
			name = "Blocked: " + blk.Reason
		}
		occupancies = append(occupancies, occupancy{
			id:        blk.ID,
			guestName: name,
			startTime: blk.StartTime,
			start:     start,
			end:       end,
		})
	}

	return occupancies, nil
}

func blockCoversAny(block *models.Block, tableIDs []string) bool {
	for _, id := range tableIDs {
		if block.AppliesToTable(id) {
			return true
		}
	}
	return false
}
