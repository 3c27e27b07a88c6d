package service

import (
	"fmt"

	"hygienix/backend/internal/notify"
)

func notifyOTP(phone, code string) notify.Message {
	return notify.Message{
		Event: EventOTPIssued,
		Phone: phone,
		Body:  fmt.Sprintf("Your Hygienix login code is %s. It expires in a few minutes; do not share it.", code),
	}
}

func notifyPasswordReset(email, link string) notify.Message {
	return notify.Message{
		Event:   EventPasswordReset,
		Email:   email,
		Subject: "Reset your Hygienix password",
		Body:    "Use this link to choose a new password: " + link,
	}
}
