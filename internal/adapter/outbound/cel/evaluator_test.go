package cel

import "testing"

func TestEvaluateGuardTrue(t *testing.T) {
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	ok, err := e.EvaluateGuard(`path.startsWith("/v1/")`, map[string]any{
		"method": "GET", "host": "api.example.com", "path": "/v1/things",
	})
	if err != nil {
		t.Fatalf("EvaluateGuard: %v", err)
	}
	if !ok {
		t.Errorf("expected guard to pass")
	}
}

func TestEvaluateGuardFalse(t *testing.T) {
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	ok, err := e.EvaluateGuard(`method == "DELETE"`, map[string]any{
		"method": "GET", "host": "api.example.com", "path": "/v1/things",
	})
	if err != nil {
		t.Fatalf("EvaluateGuard: %v", err)
	}
	if ok {
		t.Errorf("expected guard to fail")
	}
}

func TestValidateExpressionRejectsTooLong(t *testing.T) {
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	long := make([]byte, maxExpressionLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if err := e.ValidateExpression(string(long)); err == nil {
		t.Errorf("expected rejection of over-length expression")
	}
}

func TestValidateExpressionRejectsInvalidSyntax(t *testing.T) {
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	if err := e.ValidateExpression(`method ===`); err == nil {
		t.Errorf("expected rejection of invalid syntax")
	}
}

func TestGuardProgramIsCached(t *testing.T) {
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	expr := `method == "GET"`
	for i := 0; i < 3; i++ {
		if _, err := e.EvaluateGuard(expr, map[string]any{"method": "GET", "host": "h", "path": "/"}); err != nil {
			t.Fatalf("EvaluateGuard iteration %d: %v", i, err)
		}
	}
	if len(e.programs) != 1 {
		t.Errorf("expected one cached program, got %d", len(e.programs))
	}
}
