package services

import (
	"errors"
	"testing"

	twilioclient "github.com/twilio/twilio-go/client"
)

func TestClassifyTwilioError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantKind      string
		wantPermanent bool
	}{
		{
			name:          "invalid to number",
			err:           &twilioclient.TwilioRestError{Code: 21211},
			wantKind:      GatewayInvalidNumber,
			wantPermanent: true,
		},
		{
			name:          "not a mobile number",
			err:           &twilioclient.TwilioRestError{Code: 21614},
			wantKind:      GatewayInvalidNumber,
			wantPermanent: true,
		},
		{
			name:          "recipient unsubscribed",
			err:           &twilioclient.TwilioRestError{Code: 21610},
			wantKind:      GatewayOptedOut,
			wantPermanent: true,
		},
		{
			name:     "rate limited",
			err:      &twilioclient.TwilioRestError{Code: 20429},
			wantKind: GatewayRateLimited,
		},
		{
			name:     "other provider error",
			err:      &twilioclient.TwilioRestError{Code: 30001},
			wantKind: GatewayUnavailable,
		},
		{
			name:     "transport error",
			err:      errors.New("connection refused"),
			wantKind: GatewayUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyTwilioError(tt.err)
			var gwErr *GatewayError
			if !errors.As(got, &gwErr) {
				t.Fatalf("expected GatewayError, got %T", got)
			}
			if gwErr.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", gwErr.Kind, tt.wantKind)
			}
			if gwErr.Permanent() != tt.wantPermanent {
				t.Errorf("Permanent = %v, want %v", gwErr.Permanent(), tt.wantPermanent)
			}
		})
	}
}
