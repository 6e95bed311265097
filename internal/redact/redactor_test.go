package redact

import (
	"reflect"
	"strings"
	"testing"
)

func TestRedact_Phone(t *testing.T) {
	res := Redact("제 번호는 010-1234-5678 이에요")
	if !res.Hit {
		t.Fatal("expected hit")
	}
	if !strings.Contains(res.Text, "010-****-5678") {
		t.Errorf("text = %q, want masked middle group", res.Text)
	}
	if !reflect.DeepEqual(res.Kinds, []string{"phone"}) {
		t.Errorf("kinds = %v", res.Kinds)
	}
}

func TestRedact_Email(t *testing.T) {
	res := Redact("contact me at student@campus.ac.kr please")
	if !res.Hit {
		t.Fatal("expected hit")
	}
	if !strings.Contains(res.Text, "***@campus.ac.kr") {
		t.Errorf("text = %q", res.Text)
	}
	if strings.Contains(res.Text, "student@") {
		t.Errorf("local part leaked: %q", res.Text)
	}
}

func TestRedact_LabeledIDs(t *testing.T) {
	tests := []struct {
		in   string
		kind string
	}{
		{"학번: 20231234 입니다", "student_id"},
		{"my Student ID 202312345", "student_id"},
		{"계좌 12-345678-90 로 보내줘", "account"},
		{"Account: 45-6789012-34", "account"},
	}
	for _, tt := range tests {
		res := Redact(tt.in)
		if !res.Hit {
			t.Errorf("Redact(%q): expected hit", tt.in)
			continue
		}
		found := false
		for _, k := range res.Kinds {
			if k == tt.kind {
				found = true
			}
		}
		if !found {
			t.Errorf("Redact(%q): kinds = %v, want %s", tt.in, res.Kinds, tt.kind)
		}
	}
}

func TestRedact_RuleOrderPhoneFirst(t *testing.T) {
	// A bare 10-digit number satisfies the phone pattern, and the phone rule
	// runs before the labeled-id rules. The digits must be masked either way.
	res := Redact("my Student ID 2023123456")
	if !res.Hit {
		t.Fatal("expected hit")
	}
	if !reflect.DeepEqual(res.Kinds, []string{"phone"}) {
		t.Errorf("kinds = %v, want [phone]", res.Kinds)
	}
	if strings.Contains(res.Text, "2023123456") {
		t.Errorf("digits leaked: %q", res.Text)
	}
}

func TestRedact_KindsNeverLeakContent(t *testing.T) {
	res := Redact("전화 010-1234-5678, 메일 a.b@x.com, 학번: 20231234")
	for _, k := range res.Kinds {
		if strings.ContainsAny(k, "0123456789@") {
			t.Errorf("kind %q leaks matched content", k)
		}
	}
}

func TestRedact_Idempotent(t *testing.T) {
	inputs := []string{
		"010-1234-5678",
		"me@example.com and 010-9999-8888",
		"학번: 20231234, 계좌: 12345678",
		"no pii here at all",
		"",
	}
	for _, in := range inputs {
		first := Redact(in)
		second := Redact(first.Text)
		if second.Hit {
			t.Errorf("Redact(Redact(%q)) reported a hit: %+v", in, second)
		}
		if second.Text != first.Text {
			t.Errorf("not a fixed point for %q: %q != %q", in, first.Text, second.Text)
		}
	}
}

func TestRedact_NoHit(t *testing.T) {
	res := Redact("오늘 학식 메뉴 알려줘")
	if res.Hit || len(res.Kinds) != 0 {
		t.Errorf("unexpected hit: %+v", res)
	}
	if res.Text != "오늘 학식 메뉴 알려줘" {
		t.Errorf("text changed: %q", res.Text)
	}
}
