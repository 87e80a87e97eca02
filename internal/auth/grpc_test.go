package auth

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"groceryDelivery/internal/testutil"
	"groceryDelivery/models"
)

type fakeAdmins map[string]*models.AdminUser

func (f fakeAdmins) GetByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	return f[username], nil
}

func TestRequireKind(t *testing.T) {
	ctx := WithPrincipal(context.Background(), &Principal{ID: 1, Name: "ravi", Kind: KindAgent})
	if _, err := RequireKind(ctx, KindAgent); err != nil {
		t.Fatalf("RequireKind agent: %v", err)
	}
	if _, err := RequireKind(ctx, KindCustomer, KindAdmin); status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
	if _, err := RequireKind(context.Background(), KindAgent); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated without principal, got %v", err)
	}
}

func TestRequireAdmin_AccountMustExist(t *testing.T) {
	admins := fakeAdmins{}
	pctx := WithPrincipal(context.Background(), &Principal{ID: 1, Name: "root", Kind: KindAdmin})
	if _, err := RequireAdmin(pctx, admins); status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected PermissionDenied for unknown admin, got %v", err)
	}
	admins["root"] = &models.AdminUser{ID: 1, Username: "root"}
	if _, err := RequireAdmin(pctx, admins); err != nil {
		t.Fatalf("RequireAdmin real admin: %v", err)
	}
	spoof := WithPrincipal(context.Background(), &Principal{ID: 2, Name: "root", Kind: KindAdmin})
	if _, err := RequireAdmin(spoof, admins); err == nil {
		t.Fatalf("expected rejection when token id does not match account")
	}
}

func TestUnaryAuthInterceptor(t *testing.T) {
	secret := "s3cr3t"
	// allowlisted method should bypass auth
	interceptor := NewUnaryAuthInterceptor(secret, "/grpc.health.v1.Health/Check")

	hCalled := false
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, func(ctx context.Context, req any) (any, error) {
		hCalled = true
		if _, ok := FromContext(ctx); ok {
			t.Fatalf("expected no principal on allowlisted path")
		}
		return 123, nil
	})
	if err != nil || !hCalled {
		t.Fatalf("allowlisted handler err=%v called=%v", err, hCalled)
	}

	tok := testutil.GenerateJWTHS256(t, secret, 9, "+919800000009", KindCustomer)
	ctx := testutil.CtxWithBearer(context.Background(), tok)
	_, err = interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Op"}, func(ctx context.Context, req any) (any, error) {
		p, ok := FromContext(ctx)
		if !ok || p.ID != 9 || p.Kind != KindCustomer {
			t.Fatalf("principal not injected: %+v ok=%v", p, ok)
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor auth path: %v", err)
	}

	_, err = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Op"}, func(ctx context.Context, req any) (any, error) {
		t.Fatalf("handler must not run without a token")
		return nil, nil
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *fakeStream) Context() context.Context { return s.ctx }

func TestStreamAuthInterceptor(t *testing.T) {
	secret := "s3cr3t"
	interceptor := NewStreamAuthInterceptor(secret)
	tok := testutil.GenerateJWTHS256(t, secret, 4, "ravi", KindAgent)
	ss := &fakeStream{ctx: metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+tok))}

	err := interceptor(nil, ss, &grpc.StreamServerInfo{FullMethod: "/svc/Watch"}, func(srv any, stream grpc.ServerStream) error {
		p, ok := FromContext(stream.Context())
		if !ok || p.ID != 4 {
			t.Fatalf("principal not injected into stream: %+v", p)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("stream interceptor: %v", err)
	}

	bad := &fakeStream{ctx: context.Background()}
	err = interceptor(nil, bad, &grpc.StreamServerInfo{FullMethod: "/svc/Watch"}, func(srv any, stream grpc.ServerStream) error {
		return nil
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}
