package config

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/twilio/twilio-go"
	verify "github.com/twilio/twilio-go/rest/verify/v2"
)

var (
	twilioOnce   sync.Once
	twilioClient *twilio.RestClient
)

// GetTwilioClient returns the shared Twilio REST client, creating it on first
// use from TWILIO_ACCOUNT_SID / TWILIO_AUTH_TOKEN.
func GetTwilioClient() *twilio.RestClient {
	twilioOnce.Do(func() {
		accountSid := strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
		authToken := strings.TrimSpace(os.Getenv("TWILIO_AUTH_TOKEN"))
		if accountSid == "" || authToken == "" {
			return
		}
		twilioClient = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSid,
			Password: authToken,
		})
	})
	return twilioClient
}

// VerifyOTP checks a one-time code against a mobile number via Twilio Verify.
// Returns (false, nil) for a wrong or expired code; errors mean the verifier
// itself could not be reached or is misconfigured.
func VerifyOTP(mobileNumber string, code string) (bool, error) {
	client := GetTwilioClient()
	if client == nil {
		return false, errors.New("twilio credentials are not configured")
	}
	serviceSid := strings.TrimSpace(os.Getenv("TWILIO_SERVICE_SID"))
	if serviceSid == "" {
		return false, errors.New("TWILIO_SERVICE_SID is required")
	}

	params := &verify.CreateVerificationCheckParams{}
	params.SetTo(mobileNumber)
	params.SetCode(code)

	resp, err := client.VerifyV2.CreateVerificationCheck(serviceSid, params)
	if err != nil {
		return false, err
	}
	if resp.Status == nil || *resp.Status != "approved" {
		return false, nil
	}
	return true, nil
}
