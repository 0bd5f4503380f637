package entity

import "testing"

func TestStateIsTerminal(t *testing.T) {
	cases := []struct {
		state State
		want  bool
	}{
		{StateUnknown, false},
		{StateIssued, false},
		{StateVerified, false},
		{StateConsumed, true},
		{StateExpired, true},
		{StateExhausted, true},
		{StateSuperseded, true},
	}

	for _, tc := range cases {
		if got := tc.state.IsTerminal(); got != tc.want {
			t.Errorf("IsTerminal(%s) = %v, want %v", tc.state, got, tc.want)
		}
	}
}

func TestPurposeFromString(t *testing.T) {
	cases := []struct {
		in   string
		want Purpose
	}{
		{"PASSWORD_RESET", PurposePasswordReset},
		{"password_reset", PurposePasswordReset},
		{"  PHONE_VERIFY  ", PurposePhoneVerify},
		{"", PurposeUnknown},
		{"LOGIN", PurposeUnknown},
	}

	for _, tc := range cases {
		if got := PurposeFromString(tc.in); got != tc.want {
			t.Errorf("PurposeFromString(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestChannelFromString(t *testing.T) {
	cases := []struct {
		in   string
		want Channel
	}{
		{"email", ChannelEmail},
		{"EMAIL", ChannelEmail},
		{" sms ", ChannelSMS},
		{"push", ChannelUnknown},
	}

	for _, tc := range cases {
		if got := ChannelFromString(tc.in); got != tc.want {
			t.Errorf("ChannelFromString(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestVerifyOutcomeString(t *testing.T) {
	cases := map[VerifyOutcome]string{
		OutcomeOK:          "OK",
		OutcomeInvalidCode: "INVALID_CODE",
		OutcomeExpired:     "EXPIRED",
		OutcomeExhausted:   "EXHAUSTED",
		OutcomeNotFound:    "NOT_FOUND",
		OutcomeUnknown:     "UNKNOWN",
	}

	for outcome, want := range cases {
		if got := outcome.String(); got != want {
			t.Errorf("VerifyOutcome(%d).String() = %q, want %q", outcome, got, want)
		}
	}
}
