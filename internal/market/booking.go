package market

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rentatutor/rentatutor/internal/model"
)

// TimeSlots are the hourly start times offered on the booking page.
var TimeSlots = []string{"2:00 PM", "3:00 PM", "4:00 PM", "5:00 PM", "6:00 PM", "7:00 PM"}

// BookingDurations are the lengths a scheduled session can have.
var BookingDurations = []int{30, 60}

var halfHourCost = decimal.NewFromInt(8)

// BookingForm is what the student submits on the booking page.
type BookingForm struct {
	TutorID         int64
	Date            string
	Time            string
	DurationMinutes int
}

// BookingCost is a flat fee for half an hour and the hourly rate otherwise.
func BookingCost(t model.Tutor, minutes int) decimal.Decimal {
	if minutes == 30 {
		return halfHourCost
	}
	return t.HourlyRate
}

// NewBooking validates the form against the chosen tutor.
func NewBooking(studentID string, t model.Tutor, f BookingForm, now time.Time) (model.Booking, model.Notice, error) {
	date := strings.TrimSpace(f.Date)
	slot := strings.TrimSpace(f.Time)
	if date == "" || slot == "" {
		return model.Booking{}, model.Notice{}, invalid(NoticeSelectDateTime, nil)
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return model.Booking{}, model.Notice{}, invalid(NoticeSelectDateTime, nil)
	}
	if !slices.Contains(TimeSlots, slot) {
		return model.Booking{}, model.Notice{}, invalid(NoticeSelectDateTime, nil)
	}
	if !slices.Contains(BookingDurations, f.DurationMinutes) {
		return model.Booking{}, model.Notice{}, invalid(NoticeInvalidBookingLength, nil)
	}

	cost := BookingCost(t, f.DurationMinutes)
	b := model.Booking{
		StudentID:       studentID,
		TutorID:         t.ID,
		TutorName:       t.Name,
		Date:            date,
		Time:            slot,
		DurationMinutes: f.DurationMinutes,
		Cost:            cost,
		CreatedAt:       now,
	}
	notice := success(NoticeBookingConfirmed, map[string]any{
		"Tutor":    t.Name,
		"Date":     date,
		"Time":     slot,
		"Duration": strconv.Itoa(f.DurationMinutes),
		"Cost":     cost.StringFixed(2),
	})
	return b, notice, nil
}
