package callbacks_test

import (
	"testing"

	tele "gopkg.in/telebot.v4"

	"pedidosbot/core/telegram/callbacks"
	"pedidosbot/internal/telegramtest"
)

func TestParseCallbackDataBothEncodings(t *testing.T) {
	// Telebot sends a real form feed; tests and some clients use the literal
	// two-character escape. Both must parse to the same key and payload.
	for _, data := range []string{"\forder_prod|7", `\forder_prod|7`} {
		unique, payload := callbacks.ParseCallbackData(&tele.Callback{Data: data})
		if unique != "order_prod" || payload != "7" {
			t.Fatalf("ParseCallbackData(%q) = (%q, %q)", data, unique, payload)
		}
	}
}

func TestParseCallbackDataWithoutPayload(t *testing.T) {
	unique, payload := callbacks.ParseCallbackData(&tele.Callback{Data: "\forder_done"})
	if unique != "order_done" || payload != "" {
		t.Fatalf("ParseCallbackData = (%q, %q)", unique, payload)
	}
}

func TestPayloadInt(t *testing.T) {
	c := telegramtest.NewCallback(1, "order_prod", "42")
	got, err := callbacks.PayloadInt(c)
	if err != nil || got != 42 {
		t.Fatalf("PayloadInt = (%d, %v), want 42", got, err)
	}

	c = telegramtest.NewCallback(1, "order_prod", "nope")
	if _, err := callbacks.PayloadInt(c); err == nil {
		t.Fatal("expected error for non-numeric payload")
	}
}

func TestPayloadInt64(t *testing.T) {
	c := telegramtest.NewCallback(1, "cl_zone", "9007199254740993")
	got, err := callbacks.PayloadInt64(c)
	if err != nil || got != 9007199254740993 {
		t.Fatalf("PayloadInt64 = (%d, %v)", got, err)
	}
}
