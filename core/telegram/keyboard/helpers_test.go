package keyboard

import "testing"

func TestInlineButtonsNPerRow(t *testing.T) {
	btns := []InlineBtn{
		{Text: "a", Unique: "k", Data: "1"},
		{Text: "b", Unique: "k", Data: "2"},
		{Text: "c", Unique: "k", Data: "3"},
		{Text: "d", Unique: "k", Data: "4"},
		{Text: "e", Unique: "k", Data: "5"},
	}

	markup := InlineButtonsNPerRow(btns, 2)
	rows := markup.InlineKeyboard
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if len(rows[0]) != 2 || len(rows[1]) != 2 || len(rows[2]) != 1 {
		t.Fatalf("row sizes = %d/%d/%d, want 2/2/1", len(rows[0]), len(rows[1]), len(rows[2]))
	}
	if rows[0][0].Text != "a" || rows[2][0].Text != "e" {
		t.Fatal("button order not preserved")
	}
}

func TestInlineButtonsNPerRowOnePerRow(t *testing.T) {
	btns := []InlineBtn{{Text: "a", Unique: "k"}, {Text: "b", Unique: "k"}}
	markup := InlineButtonsNPerRow(btns, 0)
	if len(markup.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want one per button", len(markup.InlineKeyboard))
	}
}

func TestReplyButtons(t *testing.T) {
	markup := ReplyButtons([]string{"x", "y"}, []string{"z"})
	if !markup.ResizeKeyboard {
		t.Fatal("expected resizable keyboard")
	}
	if len(markup.ReplyKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(markup.ReplyKeyboard))
	}
	if markup.ReplyKeyboard[0][0].Text != "x" || markup.ReplyKeyboard[1][0].Text != "z" {
		t.Fatal("labels not preserved")
	}
}
