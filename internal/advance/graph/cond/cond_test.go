package cond

import "testing"

func TestEval_ComparisonsAndLogic(t *testing.T) {
	vars := map[string]any{
		"monthlyNetIncome": 1200.0,
		"nextPaydayDays":   7,
	}

	ok, err := Eval(`monthlyNetIncome>=500 && nextPaydayDays<14`, vars)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("expected true")
	}
}

func TestEval_EmptyConditionIsTrue(t *testing.T) {
	ok, err := Eval("", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("expected empty condition to match")
	}
}

func TestEval_BoolVariable(t *testing.T) {
	ok, err := Eval(`hasRecurringIncome`, map[string]any{"hasRecurringIncome": false})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected false")
	}
}

func TestEval_NonBoolResultFails(t *testing.T) {
	c, err := Compile(`monthlyNetIncome`)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Eval(map[string]any{"monthlyNetIncome": 1200.0}); err == nil {
		t.Fatalf("expected error for non-bool condition")
	}
}

func TestValidate_BlocksArithmetic(t *testing.T) {
	if _, err := Eval(`x+1==2`, map[string]any{"x": 1}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidate_BlocksFunctionCall(t *testing.T) {
	if _, err := Eval(`len(x)==1`, map[string]any{"x": "a"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidate_BlocksDotAccess(t *testing.T) {
	if _, err := Eval(`account.active`, map[string]any{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidate_AllowsParenthesesAndNot(t *testing.T) {
	vars := map[string]any{"a": true, "b": false, "c": true}

	ok, err := Eval(`a && (b || c) && !b`, vars)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("expected true")
	}
}
