package moderation

import "testing"

func TestRulesBlockedPattern(t *testing.T) {
	res := evaluateRules("BUY FOLLOWERS NOW CLICK HERE")
	if res.Allow {
		t.Fatal("expected block")
	}
	if res.Reason != ReasonBlockedPattern {
		t.Errorf("reason = %q, want %q", res.Reason, ReasonBlockedPattern)
	}
}

func TestRulesLinkFlooding(t *testing.T) {
	res := evaluateRules("look http://a.example http://b.example http://c.example")
	if res.Allow || res.Reason != ReasonBlockedPattern {
		t.Errorf("got %+v, want blocked pattern", res)
	}
	// Two links are fine.
	res = evaluateRules("compare http://a.example with http://b.example please")
	if !res.Allow {
		t.Errorf("two links should pass, got %+v", res)
	}
}

func TestRulesSpamPatterns(t *testing.T) {
	cases := []string{
		"first!!!!!!!!!!!!!!!!",
		"aaaaaaaaaaaaaaaaaaaa",
		"!!!###$$$%%%",
		"first",
	}
	for _, msg := range cases {
		res := evaluateRules(msg)
		if res.Allow {
			t.Errorf("%q: expected block", msg)
			continue
		}
		if res.Reason != ReasonSpamPattern {
			t.Errorf("%q: reason = %q, want %q", msg, res.Reason, ReasonSpamPattern)
		}
	}
}

func TestRulesRunLength(t *testing.T) {
	// Exactly ten identical runes blocks, nine does not.
	if res := evaluateRules("aaaaaaaaaa"); res.Allow || res.Reason != ReasonSpamPattern {
		t.Errorf("10-rune run: got %+v, want spam pattern", res)
	}
	if res := evaluateRules("aaaaaaaaa hello"); !res.Allow {
		t.Errorf("9-rune run should pass, got %+v", res)
	}
	// Runs are counted in runes, not bytes.
	if res := evaluateRules("no way 😂😂😂😂😂😂😂😂😂😂"); res.Allow || res.Reason != ReasonSpamPattern {
		t.Errorf("emoji run: got %+v, want spam pattern", res)
	}
	if res := evaluateRules("stream looks good 😂😂😂"); !res.Allow {
		t.Errorf("short emoji run should pass, got %+v", res)
	}
}

func TestRulesTooShort(t *testing.T) {
	for _, msg := range []string{"", " ", "k", "  a  "} {
		res := evaluateRules(msg)
		if res.Allow || res.Reason != ReasonTooShort {
			t.Errorf("%q: got %+v, want too short", msg, res)
		}
	}
}

func TestRulesHighlight(t *testing.T) {
	res := evaluateRules("What switcher are you using?")
	if !res.Allow {
		t.Fatalf("expected allow, got %+v", res)
	}
	if !res.Highlight {
		t.Error("expected highlight for long question")
	}
	if res.Reason != ReasonPassedRules {
		t.Errorf("reason = %q, want %q", res.Reason, ReasonPassedRules)
	}

	// Short question: no highlight.
	if res := evaluateRules("why tho?"); res.Highlight {
		t.Error("short question should not highlight")
	}
	// Long statement without a question mark: no highlight.
	if res := evaluateRules("this is a fairly long statement about things"); res.Highlight {
		t.Error("statement should not highlight")
	}
}
