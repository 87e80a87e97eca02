package service

import (
	"context"
	"errors"
	"testing"

	"groceryDelivery/internal/apperrors"
	"groceryDelivery/internal/auth"
	"groceryDelivery/models"
)

func TestVerifyOTP_CreatesCustomerOnce(t *testing.T) {
	e := newEnv(t, "svc_auth_otp")
	ctx := context.Background()

	code, err := e.auth.RequestOTP(ctx, "98765 43210")
	if err != nil {
		t.Fatalf("request otp: %v", err)
	}
	if len(code) != auth.OTPDigits {
		t.Fatalf("code = %q", code)
	}

	var unauth *apperrors.Unauthorized
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	if _, err := e.auth.VerifyOTP(ctx, "9876543210", wrong, ""); !errors.As(err, &unauth) {
		t.Fatalf("wrong code: got %v", err)
	}

	sess, err := e.auth.VerifyOTP(ctx, "9876543210", code, "Asha")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sess.Kind != auth.KindCustomer || sess.Name != "9876543210" {
		t.Fatalf("session = %+v", sess)
	}
	p, err := auth.ParseToken(sess.Token, "test-secret")
	if err != nil || p.ID != sess.ID {
		t.Fatalf("token principal = %+v, %v", p, err)
	}

	// The code is single use.
	if _, err := e.auth.VerifyOTP(ctx, "9876543210", code, "Asha"); !errors.As(err, &unauth) {
		t.Fatalf("reused code: got %v", err)
	}

	code, _ = e.auth.RequestOTP(ctx, "9876543210")
	again, err := e.auth.VerifyOTP(ctx, "9876543210", code, "")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if again.ID != sess.ID {
		t.Fatalf("second login created a new customer: %d != %d", again.ID, sess.ID)
	}
}

func TestPasswordLogins(t *testing.T) {
	e := newEnv(t, "svc_auth_password")
	ctx := context.Background()

	if err := e.auth.EnsureAdmin(ctx, "root", "s3cret"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	// Idempotent.
	if err := e.auth.EnsureAdmin(ctx, "root", "other"); err != nil {
		t.Fatalf("ensure admin again: %v", err)
	}
	sess, err := e.auth.AdminLogin(ctx, "root", "s3cret")
	if err != nil || sess.Kind != auth.KindAdmin {
		t.Fatalf("admin login: %+v, %v", sess, err)
	}
	var unauth *apperrors.Unauthorized
	if _, err := e.auth.AdminLogin(ctx, "root", "other"); !errors.As(err, &unauth) {
		t.Fatalf("bad admin password: got %v", err)
	}

	a, err := e.agent.Register(ctx, RegisterAgentInput{Name: "Ravi", Phone: "9000000020", Vehicle: "bike", Password: "letmein"})
	if err != nil {
		t.Fatalf("register agent: %v", err)
	}
	if a.Status != models.AgentStatusOffline {
		t.Fatalf("new agent status = %s", a.Status)
	}
	var conflict *apperrors.Conflict
	if _, err := e.agent.Register(ctx, RegisterAgentInput{Name: "Ravi", Phone: "9000000020", Password: "letmein"}); !errors.As(err, &conflict) {
		t.Fatalf("duplicate agent: got %v", err)
	}
	sess, err = e.auth.AgentLogin(ctx, "9000000020", "letmein")
	if err != nil || sess.Kind != auth.KindAgent || sess.ID != a.ID {
		t.Fatalf("agent login: %+v, %v", sess, err)
	}
	if _, err := e.auth.AgentLogin(ctx, "9000000020", "nope"); !errors.As(err, &unauth) {
		t.Fatalf("bad agent password: got %v", err)
	}
}

func TestAgentAvailability(t *testing.T) {
	e := newEnv(t, "svc_agent_availability")
	ctx := context.Background()
	agent := e.agentPrincipal(t, "9000000021", models.AgentStatusOffline)

	a, err := e.agent.SetAvailability(ctx, agent.ID, models.AgentStatusAvailable)
	if err != nil || a.Status != models.AgentStatusAvailable {
		t.Fatalf("go online: %+v, %v", a, err)
	}
	var v *apperrors.Validation
	if _, err := e.agent.SetAvailability(ctx, agent.ID, models.AgentStatusBusy); !errors.As(err, &v) {
		t.Fatalf("set busy directly: got %v", err)
	}
	if _, err := e.agents.ClaimAvailable(ctx, agent.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	var conflict *apperrors.Conflict
	if _, err := e.agent.SetAvailability(ctx, agent.ID, models.AgentStatusOffline); !errors.As(err, &conflict) {
		t.Fatalf("go offline while busy: got %v", err)
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"98765 43210":       "9876543210",
		"+91 (98765)-43210": "+919876543210",
	}
	for in, want := range cases {
		got, err := normalizePhone(in)
		if err != nil || got != want {
			t.Errorf("normalizePhone(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "12345", "98765x43210"} {
		if _, err := normalizePhone(bad); err == nil {
			t.Errorf("normalizePhone(%q) should fail", bad)
		}
	}
}
