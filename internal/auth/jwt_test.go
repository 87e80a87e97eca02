package auth

import (
	"context"
	"testing"
	"time"

	"groceryDelivery/internal/testutil"
)

const testSecret = "test-secret"

func TestParseFromMD_ValidBearer(t *testing.T) {
	tok := testutil.GenerateJWTHS256(t, testSecret, 7, "+919800000001", KindCustomer)
	ctx := testutil.CtxWithBearer(context.Background(), tok)
	p, err := ParseFromMD(ctx, testSecret)
	if err != nil {
		t.Fatalf("ParseFromMD: %v", err)
	}
	if p.ID != 7 || p.Name != "+919800000001" || p.Kind != KindCustomer {
		t.Fatalf("principal mismatch: %+v", p)
	}
}

func TestParseFromMD_MissingHeader(t *testing.T) {
	_, err := ParseFromMD(context.Background(), testSecret)
	if err == nil {
		t.Fatalf("expected error for missing metadata")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	tok := testutil.GenerateJWTHS256(t, testSecret, 1, "ravi", KindAgent)
	if _, err := ParseToken(tok, "wrong"); err == nil {
		t.Fatalf("expected error for wrong secret")
	}
}

func TestParseToken_ClaimsValidation(t *testing.T) {
	// Missing name/kind -> invalid
	tok := testutil.GenerateJWTHS256(t, testSecret, 1, "", "")
	if _, err := ParseToken(tok, testSecret); err == nil {
		t.Fatalf("expected invalid claims error")
	}
}

func TestIssueToken_RoundTripAndExpiry(t *testing.T) {
	tok, exp, err := IssueToken(testSecret, Principal{ID: 3, Name: "root", Kind: "ADMIN"}, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if time.Until(exp) < 59*time.Minute {
		t.Fatalf("unexpected expiry %v", exp)
	}
	p, err := ParseToken(tok, testSecret)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if p.ID != 3 || p.Kind != KindAdmin {
		t.Fatalf("principal mismatch: %+v", p)
	}

	expired, _, err := IssueToken(testSecret, Principal{ID: 3, Name: "root", Kind: KindAdmin}, -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken expired: %v", err)
	}
	if _, err := ParseToken(expired, testSecret); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
