// services/gateway.go
package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Gateway error kinds. Invalid number and opted out are permanent; the rest
// are retried on a later tick or reconciled by the delivery callback.
const (
	GatewayInvalidNumber = "invalid_number"
	GatewayOptedOut      = "opted_out"
	GatewayRateLimited   = "rate_limited"
	GatewayTimeout       = "timeout"
	GatewayUnavailable   = "unavailable"
)

// GatewayError classifies a failed send. Raw provider codes stay inside
// Code and are never surfaced to admin responses untranslated.
type GatewayError struct {
	Kind string
	Code int
	Err  error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s (code %d): %v", e.Kind, e.Code, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Permanent reports whether retrying the same recipient can never succeed.
func (e *GatewayError) Permanent() bool {
	return e.Kind == GatewayInvalidNumber || e.Kind == GatewayOptedOut
}

// Gateway sends one message and returns the provider message reference.
// Implementations must honor ctx cancellation.
type Gateway interface {
	Send(ctx context.Context, phone, body string) (string, error)
}

// TwilioGateway sends over SMS, or WhatsApp when the number is in E.164
// format and a WhatsApp sender is configured.
type TwilioGateway struct {
	client *twilio.RestClient
	from   string
	waFrom string
}

func NewTwilioGateway() *TwilioGateway {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")

	return &TwilioGateway{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSid,
			Password: authToken,
		}),
		from:   os.Getenv("TWILIO_PHONE_NUMBER"),
		waFrom: os.Getenv("TWILIO_WHATSAPP_NUMBER"),
	}
}

func (g *TwilioGateway) Send(ctx context.Context, phone, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetBody(body)

	if g.waFrom != "" && strings.HasPrefix(phone, "+") {
		params.SetTo("whatsapp:" + phone)
		params.SetFrom("whatsapp:" + g.waFrom)
	} else {
		params.SetTo(phone)
		params.SetFrom(g.from)
	}

	type sendResult struct {
		sid string
		err error
	}
	done := make(chan sendResult, 1)
	go func() {
		resp, err := g.client.Api.CreateMessage(params)
		if err != nil {
			done <- sendResult{err: classifyTwilioError(err)}
			return
		}
		sid := ""
		if resp.Sid != nil {
			sid = *resp.Sid
		}
		done <- sendResult{sid: sid}
	}()

	select {
	case <-ctx.Done():
		// The HTTP call keeps running; its outcome is ambiguous and is
		// reconciled by the delivery-status callback.
		return "", &GatewayError{Kind: GatewayTimeout, Err: ctx.Err()}
	case res := <-done:
		return res.sid, res.err
	}
}

func classifyTwilioError(err error) error {
	var restErr *twilioclient.TwilioRestError
	if !errors.As(err, &restErr) {
		return &GatewayError{Kind: GatewayUnavailable, Err: err}
	}
	kind := GatewayUnavailable
	switch restErr.Code {
	case 21211, 21614: // invalid 'To' number, not a mobile number
		kind = GatewayInvalidNumber
	case 21610: // recipient unsubscribed
		kind = GatewayOptedOut
	case 20429: // too many requests
		kind = GatewayRateLimited
	}
	return &GatewayError{Kind: kind, Code: restErr.Code, Err: err}
}
