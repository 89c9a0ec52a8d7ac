package notify

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"
	"courtbook/internal/timeslot"
)

// WaitlistLink is the deep link that lets a notified owner book the freed slot.
func WaitlistLink(clientURL string, entry *models.WaitlistEntry) string {
	q := url.Values{}
	q.Set("waitlistId", strconv.FormatInt(entry.ID, 10))
	q.Set("token", entry.NotificationToken)
	return strings.TrimRight(clientURL, "/") + "/booking/confirm?" + q.Encode()
}

func WaitlistOffer(clientURL string, entry *models.WaitlistEntry, loc *time.Location) domain.Message {
	expires := ""
	if entry.ExpiresAt != nil {
		expires = fmt.Sprintf(" Offer expires at %s.", entry.ExpiresAt.In(loc).Format("15:04"))
	}
	return domain.Message{
		Kind: domain.NotifyWaitlistOffer,
		Text: fmt.Sprintf("The slot on %s at %s is now free.%s",
			timeslot.FormatDate(entry.DesiredDate), entry.DesiredStart, expires),
		Link: WaitlistLink(clientURL, entry),
	}
}

func Reminder(res *models.Reservation) domain.Message {
	return domain.Message{
		Kind: domain.NotifyReminder,
		Text: fmt.Sprintf("Reminder: your court booking today starts at %s and ends at %s.",
			res.StartTime, res.EndTime),
	}
}

func Confirmation(res *models.Reservation) domain.Message {
	return domain.Message{
		Kind: domain.NotifyConfirmation,
		Text: fmt.Sprintf("Your booking on %s %s is confirmed. Total: %s.",
			timeslot.FormatDate(res.Date), res.Interval(), FormatAmount(res.TotalPrice)),
	}
}

// ManualPayment tells the owner where to transfer funds for an offline payment.
func ManualPayment(res *models.Reservation, bankAlias string) domain.Message {
	text := fmt.Sprintf("Booking on %s %s reserved. Transfer %s",
		timeslot.FormatDate(res.Date), res.Interval(), FormatAmount(res.TotalPrice))
	if bankAlias != "" {
		text += " to alias " + bankAlias
	}
	return domain.Message{Kind: domain.NotifyPaymentPending, Text: text + "."}
}

func Cancellation(res *models.Reservation) domain.Message {
	return domain.Message{
		Kind: domain.NotifyCancellation,
		Text: fmt.Sprintf("Your booking on %s %s was cancelled.",
			timeslot.FormatDate(res.Date), res.Interval()),
	}
}

// FormatAmount renders minor units as a decimal amount.
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
