package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimeOfDay is a bookable slot start in 24h "HH:MM" form.
type TimeOfDay string

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	trimmed := strings.TrimSpace(s)
	if _, err := time.Parse("15:04", trimmed); err != nil {
		return "", fmt.Errorf("%w: invalid time of day %q", ErrValidation, s)
	}
	return TimeOfDay(trimmed), nil
}

func (t TimeOfDay) String() string { return string(t) }

func (t TimeOfDay) IsValid() bool {
	_, err := time.Parse("15:04", string(t))
	return err == nil
}

// Minutes returns minutes since midnight. Invalid values yield 0.
func (t TimeOfDay) Minutes() int {
	parsed, err := time.Parse("15:04", string(t))
	if err != nil {
		return 0
	}
	return parsed.Hour()*60 + parsed.Minute()
}

// At combines a calendar date with the time of day in the given location.
func (t TimeOfDay) At(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Minutes()/60, t.Minutes()%60, 0, 0, loc)
}

var weekdayNames = map[string]time.Weekday{
	"SUNDAY":    time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
}

func ParseWeekday(s string) (time.Weekday, error) {
	day, ok := weekdayNames[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: invalid weekday %q", ErrValidation, s)
	}
	return day, nil
}

// Service is the bookable policy snapshot for one offered service. It is
// treated as read-only for the duration of an availability check.
type Service struct {
	ID                      string
	Name                    string
	Active                  bool
	DurationMinutes         int
	AvailableWeekdays       []time.Weekday
	AvailableTimeSlots      []TimeOfDay
	MaxDailyBookings        *int
	CancellationPolicyHours int
	RequiresDeposit         bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func (s *Service) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: service name is required", ErrValidation)
	}
	if s.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	if len(s.AvailableWeekdays) == 0 {
		return fmt.Errorf("%w: at least one available weekday is required", ErrValidation)
	}
	if len(s.AvailableTimeSlots) == 0 {
		return fmt.Errorf("%w: at least one available time slot is required", ErrValidation)
	}
	for _, slot := range s.AvailableTimeSlots {
		if !slot.IsValid() {
			return fmt.Errorf("%w: invalid time slot %q", ErrValidation, slot)
		}
	}
	if s.MaxDailyBookings != nil && *s.MaxDailyBookings <= 0 {
		return fmt.Errorf("%w: max daily bookings must be positive when set", ErrValidation)
	}
	if s.CancellationPolicyHours < 0 {
		return fmt.Errorf("%w: cancellation policy hours cannot be negative", ErrValidation)
	}
	return nil
}

// OffersWeekday reports whether the service is offered on the given weekday.
func (s *Service) OffersWeekday(day time.Weekday) bool {
	for _, d := range s.AvailableWeekdays {
		if d == day {
			return true
		}
	}
	return false
}

// OffersSlot reports whether the given time of day is a bookable slot.
func (s *Service) OffersSlot(slot TimeOfDay) bool {
	for _, t := range s.AvailableTimeSlots {
		if t == slot {
			return true
		}
	}
	return false
}

// SortedSlots returns the available slots ordered by time of day.
func (s *Service) SortedSlots() []TimeOfDay {
	slots := make([]TimeOfDay, len(s.AvailableTimeSlots))
	copy(slots, s.AvailableTimeSlots)
	sort.Slice(slots, func(i, j int) bool { return slots[i].Minutes() < slots[j].Minutes() })
	return slots
}
