package middleware_test

import (
	"os"
	"testing"

	tele "gopkg.in/telebot.v4"

	"pedidosbot/core/logger"
	"pedidosbot/core/telegram/middleware"
	"pedidosbot/internal/telegramtest"
)

func TestMain(m *testing.M) {
	if err := logger.InitLogger(nil); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func countingHandler(calls *int) tele.HandlerFunc {
	return func(_ tele.Context) error {
		*calls++
		return nil
	}
}

func TestWithAdminCheckBlocksOtherUsers(t *testing.T) {
	var calls int
	h := middleware.WithAdminCheck(middleware.AdminOptions{AdminID: 99}, true, countingHandler(&calls))

	c := telegramtest.NewText(100, "/version")
	c.UserID = 50
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if calls != 0 {
		t.Fatal("non-admin must not reach the handler")
	}

	c = telegramtest.NewText(100, "/version")
	c.UserID = 99
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if calls != 1 {
		t.Fatal("admin must reach the handler")
	}
}

func TestWithAdminCheckPassthrough(t *testing.T) {
	var calls int

	// Not admin-only: everyone passes.
	h := middleware.WithAdminCheck(middleware.AdminOptions{AdminID: 99}, false, countingHandler(&calls))
	c := telegramtest.NewText(100, "hola")
	c.UserID = 50
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}

	// Admin-only but no admin configured: the gate cannot apply.
	h = middleware.WithAdminCheck(middleware.AdminOptions{}, true, countingHandler(&calls))
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestWithAdminCheckRejectHandler(t *testing.T) {
	var rejected bool
	h := middleware.WithAdminCheck(middleware.AdminOptions{
		AdminID: 99,
		OnReject: func(_ tele.Context) error {
			rejected = true
			return nil
		},
	}, true, func(_ tele.Context) error { return nil })

	c := telegramtest.NewText(100, "/version")
	c.UserID = 50
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !rejected {
		t.Fatal("expected the reject handler to run")
	}
}
